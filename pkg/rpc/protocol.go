// Package rpc implements the JSON-RPC 2.0 client used to talk to the monitoring
// system's management API: request envelopes, per-method timeout classes and
// transport retries with capped exponential backoff.
package rpc

import (
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC protocol version sent in every request.
const Version = "2.0"

// Request is a JSON-RPC request envelope.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int64       `json:"id"`
	Auth    string      `json:"auth,omitempty"`
}

// Response is a JSON-RPC response envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RemoteError    `json:"error,omitempty"`
	ID      int64           `json:"id"`
}

// RemoteError is the error member of a JSON-RPC response.
type RemoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Data == "" {
		return fmt.Sprintf("code %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("code %d: %s %s", e.Code, e.Message, e.Data)
}

// Validate checks that a request envelope is well formed.
func (r *Request) Validate() error {
	if r.JSONRPC != Version {
		return fmt.Errorf("unsupported jsonrpc version %q", r.JSONRPC)
	}
	if r.Method == "" {
		return fmt.Errorf("method is required")
	}
	return nil
}

// EmptyParams is sent when a method takes no parameters.
var EmptyParams = map[string]interface{}{}
