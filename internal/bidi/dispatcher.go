package bidi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shehryarbajwa/bluetooth-emulator/internal/tracer"
)

// Handler executes one command method.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Dispatcher routes commands to registered handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register adds or replaces the handler for method.
func (d *Dispatcher) Register(method string, h Handler) {
	d.mu.Lock()
	d.handlers[method] = h
	d.mu.Unlock()
}

// Methods lists registered methods, sorted.
func (d *Dispatcher) Methods() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, 0, len(d.handlers))
	for m := range d.handlers {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Dispatch runs cmd inside a span named after its method.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[cmd.Method]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Method)
	}

	ctx, span := tracer.StartSpan(ctx, "bidi."+cmd.Method)
	defer span.End()
	span.SetAttributes(tracer.StringAttr("bidi.method", cmd.Method))

	result, err := h(ctx, cmd.Params)
	if err != nil {
		tracer.RecordError(span, err)
		d.logger.Debug("command failed", "method", cmd.Method, "error", err)
		return nil, err
	}
	tracer.SetOK(span)
	return result, nil
}

// Respond dispatches cmd and wraps the outcome in a response message.
func (d *Dispatcher) Respond(ctx context.Context, cmd Command) any {
	result, err := d.Dispatch(ctx, cmd)
	if err != nil {
		return Failure(cmd.ID, err)
	}
	return Success(*cmd.ID, result)
}

// decodeParams unmarshals params into v, reporting failures as invalid
// argument.
func decodeParams(params json.RawMessage, v any) error {
	if err := json.Unmarshal(params, v); err != nil {
		return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}
