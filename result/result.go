// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package result defines the outcome codes shared by the encoders, the sense decoder and the
// retry engine.
package result

import (
	"errors"
	"fmt"
)

// Code is the single outcome reported for a call.
type Code int

const (
	Success Code = iota
	Failure
	NotSupported
	InProgress
	Aborted
	Unknown
	BadParameter
	MemoryFailure
	Timeout
	// NotAvailable means the command cannot be expressed on the active transport.
	NotAvailable
)

var codeNames = [...]string{
	Success:       "success",
	Failure:       "failure",
	NotSupported:  "not supported",
	InProgress:    "in progress",
	Aborted:       "aborted",
	Unknown:       "unknown",
	BadParameter:  "bad parameter",
	MemoryFailure: "memory failure",
	Timeout:       "timeout",
	NotAvailable:  "not available on this transport",
}

func (c Code) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}

	return fmt.Sprintf("code(%d)", int(c))
}

// Error carries a Code out of a failed call.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	s := e.Code.String()
	if e.Op != "" {
		s = e.Op + ": " + s
	}

	if e.Err != nil {
		s += ": " + e.Err.Error()
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an *Error for op with the given code.
func New(code Code, op string) error {
	return &Error{Code: code, Op: op}
}

// Newf returns an *Error whose wrapped error is built from format.
func Newf(code Code, op string, format string, args ...interface{}) error {
	return &Error{Code: code, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches code to an existing error, keeping its message.
func Wrap(code Code, op string, err error) error {
	if err == nil {
		return nil
	}

	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf reports the outcome carried by err. A nil error is Success, an error without a Code
// is a Failure.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}

	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}

	return Failure
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
