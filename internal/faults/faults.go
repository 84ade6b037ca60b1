// Package faults classifies bridge errors into the three classes an operator
// needs to tell apart: the console sent garbage (protocol), the console asked
// for something the layout does not have (validation), and the hardware link
// is down (device).
package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProtocol   = errors.New("protocol error")
	ErrValidation = errors.New("validation error")
	ErrDevice     = errors.New("device error")
)

// Class names used in the fault_class log field.
const (
	ClassProtocol   = "protocol"
	ClassValidation = "validation"
	ClassDevice     = "device"
	ClassUnknown    = "unknown"
)

// Wrap builds an error message that includes component context while tagging
// it with marker for later classification. marker should be one of the
// sentinels above; nil is treated as ErrDevice so unclassified failures stay
// fatal.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrDevice
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Class returns the fault class of err.
func Class(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProtocol):
		return ClassProtocol
	case errors.Is(err, ErrValidation):
		return ClassValidation
	case errors.Is(err, ErrDevice):
		return ClassDevice
	default:
		return ClassUnknown
	}
}

// IsFatal reports whether err must end the pipeline. Protocol and validation
// faults are recovered locally; everything else, including unclassified
// errors, is handed to the process supervisor.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrProtocol) && !errors.Is(err, ErrValidation)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "bridge failure"
	}
	return strings.Join(parts, ": ")
}
