package bidi

import (
	"errors"

	"github.com/shehryarbajwa/bluetooth-emulator/internal/bluetooth"
)

// Error codes on the wire.
const (
	CodeInvalidArgument = "invalid argument"
	CodeUnknownCommand  = "unknown command"
	CodeUnknownError    = "unknown error"
	CodeNoSuchPrompt    = "no such prompt"
)

// ErrUnknownCommand is returned for methods without a handler.
var ErrUnknownCommand = errors.New("unknown command")

// Error is a protocol error carrying its wire code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

// ErrorFromErr maps engine and dispatch errors to wire errors.
func ErrorFromErr(err error) *Error {
	var pe *Error
	switch {
	case err == nil:
		return &Error{Code: CodeUnknownError}
	case errors.As(err, &pe):
		return pe
	case errors.Is(err, bluetooth.ErrNotEnabled):
		return &Error{Code: CodeUnknownError, Message: bluetooth.ErrNotEnabled.Error()}
	case errors.Is(err, bluetooth.ErrUnknownPrompt):
		return &Error{Code: CodeNoSuchPrompt, Message: err.Error()}
	case errors.Is(err, bluetooth.ErrInvalidArgument):
		return &Error{Code: CodeInvalidArgument, Message: err.Error()}
	case errors.Is(err, ErrUnknownCommand):
		return &Error{Code: CodeUnknownCommand, Message: err.Error()}
	default:
		return &Error{Code: CodeUnknownError, Message: err.Error()}
	}
}
