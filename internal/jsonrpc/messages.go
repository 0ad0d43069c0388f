package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ProtocolVersion is the supported JSON-RPC protocol version.
const ProtocolVersion = "2.0"

// MessageType classifies a decoded message by the fields it carries.
type MessageType string

const (
	// TypeRequest is a message with a method and an id; it expects a reply.
	TypeRequest MessageType = "request"
	// TypeNotification is a message with a method and no id; it is never replied to.
	TypeNotification MessageType = "notification"
	// TypeResponse is a message with an id and no method; it answers a request
	// previously sent by this process.
	TypeResponse MessageType = "response"
	// TypeUnknown is well-formed JSON that carries neither a method nor an id.
	TypeUnknown MessageType = "unknown"
)

// AnyMessage is a generic JSON-RPC message (request, notification, or response).
type AnyMessage struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Request represents a JSON-RPC request (with an ID) or notification (without ID).
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// IsNotification reports whether the request carries no id.
func (r *Request) IsNotification() bool {
	return r.ID.IsNil()
}

// Response represents a JSON-RPC response.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

var emptyObject = json.RawMessage("{}")

// NewNotification builds a notification carrying the marshalled params.
func NewNotification(method string, params any) (*Request, error) {
	n := &Request{JSONRPCVersion: ProtocolVersion, Method: method}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		n.Params = b
	}
	return n, nil
}

// NewResultResponse builds a successful JSON-RPC response object. A nil result
// is encoded as an empty object so that the reply always carries a result.
func NewResultResponse(id *RequestID, result any) (*Response, error) {
	resultBytes := emptyObject
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		if string(b) != "null" {
			resultBytes = b
		}
	}

	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Result:         resultBytes,
		ID:             id,
	}, nil
}

// NewErrorResponse builds an error JSON-RPC response with the given code.
func NewErrorResponse(id *RequestID, code ErrorCode, message string, data any) *Response {
	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
}

// ErrInvalidMessage is wrapped by every structural validation failure
// reported by AnyMessage.UnmarshalJSON.
var ErrInvalidMessage = errors.New("invalid JSON-RPC message")

// UnmarshalJSON decodes a message and rejects structurally impossible
// combinations. A missing "jsonrpc" tag is tolerated; a different one is not.
func (m *AnyMessage) UnmarshalJSON(data []byte) error {
	type rawMessage struct {
		JSONRPCVersion string          `json:"jsonrpc"`
		Method         string          `json:"method,omitempty"`
		Params         json.RawMessage `json:"params,omitempty"`
		Result         json.RawMessage `json:"result,omitempty"`
		Error          *Error          `json:"error,omitempty"`
		ID             *RequestID      `json:"id,omitempty"`
	}

	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if raw.JSONRPCVersion != "" && raw.JSONRPCVersion != ProtocolVersion {
		return fmt.Errorf("%w: expected version %q, got %q", ErrInvalidMessage, ProtocolVersion, raw.JSONRPCVersion)
	}

	hasResult := len(raw.Result) > 0
	hasError := raw.Error != nil

	if raw.Method != "" && (hasResult || hasError) {
		return fmt.Errorf("%w: request cannot have result or error fields", ErrInvalidMessage)
	}
	if hasResult && hasError {
		return fmt.Errorf("%w: response cannot have both result and error fields", ErrInvalidMessage)
	}

	m.JSONRPCVersion = raw.JSONRPCVersion
	m.Method = raw.Method
	m.Params = raw.Params
	m.Result = raw.Result
	m.Error = raw.Error
	m.ID = raw.ID

	return nil
}

// Type classifies the message. A method always wins: anything carrying one is
// dispatched. Without a method, an id marks a reply; with neither the message
// is TypeUnknown.
func (m *AnyMessage) Type() MessageType {
	switch {
	case m.Method != "" && m.ID.IsNil():
		return TypeNotification
	case m.Method != "":
		return TypeRequest
	case !m.ID.IsNil():
		return TypeResponse
	default:
		return TypeUnknown
	}
}

// AsRequest returns the message as a Request if it is a request message, otherwise nil
func (m *AnyMessage) AsRequest() *Request {
	if m.Method == "" {
		return nil
	}

	return &Request{
		JSONRPCVersion: m.JSONRPCVersion,
		Method:         m.Method,
		Params:         m.Params,
		ID:             m.ID,
	}
}

// AsResponse returns the message as a Response if it is a response message, otherwise nil
func (m *AnyMessage) AsResponse() *Response {
	if m.Method != "" {
		return nil
	}

	return &Response{
		JSONRPCVersion: m.JSONRPCVersion,
		Result:         m.Result,
		Error:          m.Error,
		ID:             m.ID,
	}
}
