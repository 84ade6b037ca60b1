package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column is one column of a report table. Numeric columns are right aligned.
type column struct {
	title   string
	numeric bool
	// merge collapses repeated values, used for the division a stop belongs to.
	merge bool
}

// report is a rounded go-pretty table whose rows are grouped by separators.
type report struct {
	tw   table.Writer
	cols []column
	rows int
}

func newReport(title string, cols ...column) *report {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if title != "" {
		tw.SetTitle(title)
	}

	header := make(table.Row, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		header[i] = c.title
		align := text.AlignLeft
		if c.numeric {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft, AutoMerge: c.merge}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)
	return &report{tw: tw, cols: cols}
}

// add appends a row, padding missing cells.
func (r *report) add(cells ...string) {
	row := make(table.Row, len(r.cols))
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	r.tw.AppendRow(row)
	r.rows++
}

// group starts a new block of rows, unless nothing has been added yet.
func (r *report) group() {
	if r.rows > 0 {
		r.tw.AppendSeparator()
	}
}

// String renders the table, or a one-line note when it has no rows.
func (r *report) String() string {
	if r.rows == 0 {
		r.add("(none)")
	}
	return r.tw.Render()
}
