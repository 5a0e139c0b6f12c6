package transport

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/shehryarbajwa/bluetooth-emulator/internal/bidi"
	"github.com/shehryarbajwa/bluetooth-emulator/internal/bluetooth"
)

// Session command names handled per connection.
const (
	MethodSubscribe   = "session.subscribe"
	MethodUnsubscribe = "session.unsubscribe"
	MethodStatus      = "session.status"
)

const bluetoothModule = "bluetooth"

var knownEvents = map[string]bool{
	bluetooth.EventRequestDevicePromptUpdated: true,
}

type subscribeParams struct {
	Events   []string `json:"events"`
	Contexts []string `json:"contexts,omitempty"`
}

type subscribeResult struct {
	Subscription string `json:"subscription"`
}

type statusResult struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
}

// subscriptions tracks which events a connection wants.
type subscriptions struct {
	names    map[string]struct{}
	contexts map[string]struct{}
}

func newSubscriptions() *subscriptions {
	return &subscriptions{
		names:    make(map[string]struct{}),
		contexts: make(map[string]struct{}),
	}
}

func validateEventNames(names []string) error {
	if len(names) == 0 {
		return &bidi.Error{Code: bidi.CodeInvalidArgument, Message: "events must not be empty"}
	}
	for _, n := range names {
		if n != bluetoothModule && !knownEvents[n] {
			return &bidi.Error{Code: bidi.CodeInvalidArgument, Message: fmt.Sprintf("unknown event %q", n)}
		}
	}
	return nil
}

func (s *subscriptions) subscribe(raw json.RawMessage) (any, error) {
	var p subscribeParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &bidi.Error{Code: bidi.CodeInvalidArgument, Message: err.Error()}
	}
	if err := validateEventNames(p.Events); err != nil {
		return nil, err
	}
	for _, n := range p.Events {
		s.names[n] = struct{}{}
	}
	for _, c := range p.Contexts {
		s.contexts[c] = struct{}{}
	}
	return subscribeResult{Subscription: uuid.NewString()}, nil
}

func (s *subscriptions) unsubscribe(raw json.RawMessage) (any, error) {
	var p subscribeParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &bidi.Error{Code: bidi.CodeInvalidArgument, Message: err.Error()}
	}
	if err := validateEventNames(p.Events); err != nil {
		return nil, err
	}
	for _, n := range p.Events {
		if _, ok := s.names[n]; !ok {
			return nil, &bidi.Error{Code: bidi.CodeInvalidArgument, Message: fmt.Sprintf("not subscribed to %q", n)}
		}
	}
	for _, n := range p.Events {
		delete(s.names, n)
	}
	if len(s.names) == 0 {
		s.contexts = make(map[string]struct{})
	}
	return bidi.EmptyResult{}, nil
}

// wants reports whether ev matches the connection's subscriptions.
func (s *subscriptions) wants(ev bluetooth.Event) bool {
	method := ev.Method()
	_, byName := s.names[method]
	_, byModule := s.names[strings.SplitN(method, ".", 2)[0]]
	if !byName && !byModule {
		return false
	}
	if len(s.contexts) == 0 {
		return true
	}
	_, ok := s.contexts[string(ev.ContextID())]
	return ok
}
