package mcp

import (
	"encoding/json"
	"fmt"
)

// NewRequest builds a JSON-RPC 2.0 request envelope.
func NewRequest(id ID, method string, params interface{}) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: "2.0", ID: &id, Method: method, Params: raw}, nil
}

// NewNotification builds a JSON-RPC 2.0 notification (a request with no id).
func NewNotification(method string, params interface{}) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: "2.0", Method: method, Params: raw}, nil
}

// NewResponse builds a JSON-RPC 2.0 success response.
func NewResponse(id ID, result interface{}) (*Message, error) {
	raw, err := marshalParams(result)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: "2.0", ID: &id, Result: raw}, nil
}

// NewErrorResponse builds a JSON-RPC 2.0 error response.
func NewErrorResponse(id ID, code int, message string, data interface{}) *Message {
	return &Message{JSONRPC: "2.0", ID: &id, Error: &Error{Code: code, Message: message, Data: data}}
}

func marshalParams(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal params: %w", err)
	}
	return b, nil
}

// DecodeParams unmarshals a message's Params into target.
func DecodeParams(msg *Message, target interface{}) error {
	if len(msg.Params) == 0 {
		return nil
	}
	return json.Unmarshal(msg.Params, target)
}

// DecodeResult unmarshals a message's Result into target.
func DecodeResult(msg *Message, target interface{}) error {
	if len(msg.Result) == 0 {
		return nil
	}
	return json.Unmarshal(msg.Result, target)
}
