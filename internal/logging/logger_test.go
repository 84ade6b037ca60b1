package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antonijn/controlpanel/internal/faults"
)

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", slog.Int("stop", 3))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.EqualValues(t, 3, rec["stop"])
}

func TestNewAutoFallsBackToJSONForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Format: "auto", Output: &buf})
	require.NoError(t, err)

	logger.Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "{"), "expected json output, got %q", buf.String())
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestDebugForcesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "error", Format: "text", Debug: true, Output: &buf})
	require.NoError(t, err)

	logger.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "source=")
}

func TestFaultLevelsFollowClass(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Format: "json", Output: &buf})
	require.NoError(t, err)
	logger = NewComponentLogger(logger, "bridge")

	Fault(logger, "bad frame", faults.Wrap(faults.ErrProtocol, "decoder", "", "checksum", nil))
	Fault(logger, "link down", faults.Wrap(faults.ErrDevice, "decoder", "", "closed", nil))
	Fault(logger, "ignored", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "WARN", first["level"])
	assert.Equal(t, "protocol", first[FieldFaultClass])
	assert.Equal(t, "bridge", first[FieldComponent])
	assert.Equal(t, "ERROR", second["level"])
	assert.Equal(t, "device", second[FieldFaultClass])
}

func TestWithRunIDTagsRecords(t *testing.T) {
	var buf bytes.Buffer
	base, err := New(Options{Format: "json", Output: &buf})
	require.NoError(t, err)

	logger, id := WithRunID(base)
	require.NotEmpty(t, id)
	logger.Info("start")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, id, rec[FieldRunID])
}
