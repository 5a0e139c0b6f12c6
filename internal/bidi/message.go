// Package bidi implements the JSON command protocol in front of the
// Bluetooth emulation engine: message envelopes, method dispatch and the
// bluetooth.* command handlers.
package bidi

import (
	"encoding/json"
	"fmt"
)

// Message types on the wire.
const (
	TypeSuccess = "success"
	TypeError   = "error"
	TypeEvent   = "event"
)

// Command is an inbound request.
type Command struct {
	ID     *uint64         `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// SuccessMessage answers a command that completed.
type SuccessMessage struct {
	Type   string `json:"type"`
	ID     uint64 `json:"id"`
	Result any    `json:"result"`
}

// ErrorMessage answers a command that failed. ID is null when the command
// could not be parsed far enough to read it.
type ErrorMessage struct {
	Type    string  `json:"type"`
	ID      *uint64 `json:"id"`
	Error   string  `json:"error"`
	Message string  `json:"message"`
}

// EventMessage is an unsolicited notification.
type EventMessage struct {
	Type   string `json:"type"`
	Method string `json:"method"`
	Params any    `json:"params"`
}

// EmptyResult is the result of commands that return nothing.
type EmptyResult struct{}

// ParseCommand decodes and validates a raw command frame.
func ParseCommand(raw []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return Command{}, &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf("malformed command: %v", err)}
	}
	if cmd.ID == nil {
		return cmd, &Error{Code: CodeInvalidArgument, Message: "command id is required"}
	}
	if cmd.Method == "" {
		return cmd, &Error{Code: CodeInvalidArgument, Message: "command method is required"}
	}
	if len(cmd.Params) == 0 || string(cmd.Params) == "null" {
		cmd.Params = json.RawMessage("{}")
	}
	return cmd, nil
}

// Success builds a success response.
func Success(id uint64, result any) SuccessMessage {
	if result == nil {
		result = EmptyResult{}
	}
	return SuccessMessage{Type: TypeSuccess, ID: id, Result: result}
}

// Failure builds an error response from any error.
func Failure(id *uint64, err error) ErrorMessage {
	e := ErrorFromErr(err)
	return ErrorMessage{Type: TypeError, ID: id, Error: e.Code, Message: e.Message}
}
