// Package api exposes the emulator over HTTP: context inspection,
// device-request injection and the WebSocket command endpoint.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/bluetooth-emulator/internal/bidi"
	"github.com/shehryarbajwa/bluetooth-emulator/internal/bluetooth"
	"github.com/shehryarbajwa/bluetooth-emulator/pkg/models"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	engine *bluetooth.Engine
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(engine *bluetooth.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// SubmitDeviceRequest handles POST /v1/contexts/{id}/bluetooth/device-requests.
// It plays the part of page script calling requestDevice(). With
// ?wait=true the response carries the outcome once the prompt settles.
func (h *Handler) SubmitDeviceRequest(w http.ResponseWriter, r *http.Request) {
	id := bluetooth.ContextID(mux.Vars(r)["id"])

	wait := false
	if v := r.URL.Query().Get("wait"); v != "" {
		var err error
		if wait, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, errors.New("wait must be a boolean"))
			return
		}
	}

	var body models.RequestDeviceOptions
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body: "+err.Error()))
		return
	}
	opts, err := bidi.RequestOptionsFromModel(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	req := bluetooth.NewDeviceRequest(id, opts)
	if err := h.engine.Submit(r.Context(), req); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	h.logger.Debug("device request submitted", "context", id, "wait", wait)

	if !wait {
		writeJSON(w, http.StatusAccepted, models.RequestDeviceOutcome{Context: string(id)})
		return
	}

	// The outcome may take longer than the server's write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Warn("cannot clear write deadline for waiting device request", "context", id, "error", err)
	}

	select {
	case out := <-req.Reply:
		writeJSON(w, http.StatusOK, bidi.OutcomeModel(out))
	case <-r.Context().Done():
		h.logger.Debug("device request waiter went away", "context", id)
	}
}
