// Package bridge is the boundary between the waiter and the physical
// thermal printer.
package bridge

import (
	"context"
	"errors"
	"fmt"
)

const (
	CodeBridgeUnavailable = "BRIDGE_UNAVAILABLE"
	CodePrintInProgress   = "PRINT_IN_PROGRESS"
	CodePrintFailed       = "PRINT_FAILED"
	CodePrintTimeout      = "PRINT_TIMEOUT"
	CodeUnreachable       = "PRINTER_UNREACHABLE"
)

var (
	ErrBridgeUnavailable = errors.New("printer bridge unavailable")
	ErrPrintInProgress   = errors.New("print already in progress")
	ErrPrintFailed       = errors.New("print failed")
)

// PrinterBridge sends a rendered payload to a printer. A transport level
// problem is returned as an error; a printer that answers but refuses is
// reported as Result{OK: false}.
type PrinterBridge interface {
	Print(ctx context.Context, payload string) (Result, error)
}

type Result struct {
	OK   bool   `json:"ok"`
	Code string `json:"code,omitempty"`
}

// PrintError is a failed print with the code reported by the bridge.
type PrintError struct {
	Code string
	Err  error
}

func (e *PrintError) Error() string {
	if e.Err != nil && !errors.Is(e.Err, ErrPrintFailed) {
		return fmt.Sprintf("print failed (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("print failed (%s)", e.Code)
}

func (e *PrintError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPrintFailed}
	}
	return []error{ErrPrintFailed, e.Err}
}

// Print calls b and folds the outcome into a single error. ErrBridgeUnavailable
// and ErrPrintInProgress pass through unchanged; everything else becomes a
// *PrintError.
func Print(ctx context.Context, b PrinterBridge, payload string) error {
	res, err := b.Print(ctx, payload)
	if err != nil {
		if errors.Is(err, ErrBridgeUnavailable) || errors.Is(err, ErrPrintInProgress) {
			return err
		}
		var pe *PrintError
		if errors.As(err, &pe) {
			return err
		}
		code := res.Code
		if code == "" {
			code = CodePrintFailed
		}
		return &PrintError{Code: code, Err: err}
	}
	if !res.OK {
		code := res.Code
		if code == "" {
			code = CodePrintFailed
		}
		return &PrintError{Code: code}
	}
	return nil
}

// Code extracts the failure code carried by err.
func Code(err error) string {
	var pe *PrintError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return pe.Code
	case errors.Is(err, ErrBridgeUnavailable):
		return CodeBridgeUnavailable
	case errors.Is(err, ErrPrintInProgress):
		return CodePrintInProgress
	default:
		return CodePrintFailed
	}
}

// Named is implemented by bridges that can describe themselves.
type Named interface {
	Name() string
}

func NameOf(b PrinterBridge) string {
	if n, ok := b.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", b)
}

// Null is used when no printer is configured.
type Null struct{}

func (Null) Print(context.Context, string) (Result, error) {
	return Result{Code: CodeBridgeUnavailable}, ErrBridgeUnavailable
}

func (Null) Name() string {
	return "none"
}
