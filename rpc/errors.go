package rpc

import (
	"fmt"

	"github.com/ggoodman/mcp-postgres/internal/jsonrpc"
)

// Error is a protocol error a handler returns to choose the reply's error
// code and message. Any other error returned by a handler is reported to the
// peer as a generic internal error.
type Error = jsonrpc.Error

// NewError builds an *Error with the given code.
func NewError(code jsonrpc.ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// InvalidParams reports malformed or unacceptable request params.
func InvalidParams(format string, args ...any) *Error {
	return NewError(jsonrpc.ErrorCodeInvalidParams, format, args...)
}

const (
	methodNotFoundMessage = "method not found"
	internalErrorMessage  = "internal error"
)
