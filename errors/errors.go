// Package errors provides error construction helpers that record the
// call site (file:line) of the error. Every package in this repository
// uses these instead of fmt.Errorf so that a failure deep in a tool or
// provider can be traced without a stack trace.
package errors

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// caller returns the file base name and line of the caller's caller.
func caller() (string, int) {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "???", 0
	}
	return filepath.Base(file), line
}

// New creates a new error annotated with the caller's file and line.
func New(format string, a ...interface{}) error {
	file, line := caller()
	return fmt.Errorf("[%s:%d] %s", file, line, fmt.Sprintf(format, a...))
}

// Wrapf adds context (including file and line) to an existing error,
// preserving the original for errors.Is/As. A nil error stays nil.
func Wrapf(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	file, line := caller()
	return fmt.Errorf("[%s:%d] %s: %w", file, line, fmt.Sprintf(format, a...), err)
}
