package rpc

import (
	"errors"
	"fmt"
)

// Wire error codes.
const (
	CodeNotFound = 404
	CodeBadInput = 400
	CodeInternal = 500
)

// WireError is the error carried in a response envelope.
type WireError struct {
	Code    uint32 `json:"code"`
	Message string `json:"message,omitempty"`
}

// Error is returned by handlers to send a specific code and message back to
// the caller.
type Error struct {
	Code    uint32
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return "rpc error"
}

// ToWireError maps a handler error onto the wire. *Error keeps its code and
// message; anything else becomes an opaque internal error.
func ToWireError(err error) *WireError {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) && re != nil {
		code := re.Code
		if code == 0 {
			code = CodeInternal
		}
		msg := re.Message
		if msg == "" {
			msg = "rpc error"
		}
		return &WireError{Code: code, Message: msg}
	}
	return &WireError{Code: CodeInternal, Message: "internal error"}
}

// CallError is a remote error received by a client. Transport failures are
// returned as ordinary errors instead.
type CallError struct {
	Process string
	Code    uint32
	Message string
}

func (e *CallError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = "rpc error"
	}
	return fmt.Sprintf("%s: %s (code %d)", e.Process, msg, e.Code)
}

// NewCallError converts a wire error into a *CallError; nil stays nil.
func NewCallError(process string, we *WireError) error {
	if we == nil {
		return nil
	}
	return &CallError{Process: process, Code: we.Code, Message: we.Message}
}
