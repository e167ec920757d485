// Package bgerrors defines the structured errors returned by the generator
// and by the dispatch runtime behind generated stubs.
package bgerrors

import (
	"context"
	"errors"
	"fmt"
)

// Stage identifies which step failed.
type Stage string

const (
	StageDiscover Stage = "discover"
	StageParse    Stage = "parse"
	StageMap      Stage = "map"
	StageEmit     Stage = "emit"
	StageAssemble Stage = "assemble"
	StageWrite    Stage = "write"
	StageStage    Stage = "stage"
	StageManifest Stage = "manifest"
	StageDispatch Stage = "dispatch"
)

// Code is a stable, programmatic error identifier.
type Code string

const (
	CodeNoWorld               Code = "no_world"
	CodeReadFailed            Code = "read_failed"
	CodeWriteFailed           Code = "write_failed"
	CodeMalformedSignature    Code = "malformed_signature"
	CodeMalformedType         Code = "malformed_type"
	CodeDuplicateControlField Code = "duplicate_control_field"
	CodeFormatFailed          Code = "format_failed"
	CodeInvalidConfig         Code = "invalid_config"

	CodeTimeout        Code = "timeout"
	CodeCanceled       Code = "canceled"
	CodeOffline        Code = "offline"
	CodeDecodeFailed   Code = "decode_failed"
	CodeEncodeFailed   Code = "encode_failed"
	CodeRemoteError    Code = "remote_error"
	CodeInvalidTarget  Code = "invalid_target"
	CodeDispatchFailed Code = "dispatch_failed"
)

// Error is a structured, programmatically identifiable error.
//
// Path is the file, directory or target address the failure concerns; it may
// be empty.
type Error struct {
	Stage Stage
	Code  Code
	Path  string
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	where := string(e.Stage)
	if e.Path != "" {
		where += " " + e.Path
	}
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", where, e.Code, e.Err)
	}
	return fmt.Sprintf("%s (%s)", where, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func Wrap(stage Stage, code Code, path string, err error) error {
	return &Error{Stage: stage, Code: code, Path: path, Err: err}
}

// CodeOf returns the Code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Code, true
}

// Coder is implemented by dispatch errors that know their Code.
type Coder interface {
	DispatchCode() Code
}

// ClassifyDispatchCode maps a dispatch error to a stable Code.
func ClassifyDispatchCode(err error) Code {
	var c Coder
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.As(err, &c):
		return c.DispatchCode()
	default:
		return CodeDispatchFailed
	}
}
