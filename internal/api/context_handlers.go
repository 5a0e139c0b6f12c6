package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/bluetooth-emulator/internal/bidi"
	"github.com/shehryarbajwa/bluetooth-emulator/internal/bluetooth"
	"github.com/shehryarbajwa/bluetooth-emulator/pkg/models"
)

// ListContexts handles GET /v1/contexts
func (h *Handler) ListContexts(w http.ResponseWriter, r *http.Request) {
	ids := h.engine.Contexts()
	out := models.ContextList{Contexts: make([]string, 0, len(ids))}
	for _, id := range ids {
		out.Contexts = append(out.Contexts, string(id))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetBluetooth handles GET /v1/contexts/{id}/bluetooth
func (h *Handler) GetBluetooth(w http.ResponseWriter, r *http.Request) {
	id := bluetooth.ContextID(mux.Vars(r)["id"])

	snap, err := h.engine.Snapshot(r.Context(), id)
	if errors.Is(err, bluetooth.ErrNotEnabled) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, bidi.SnapshotModel(snap))
}

// DisableBluetooth handles DELETE /v1/contexts/{id}/bluetooth
func (h *Handler) DisableBluetooth(w http.ResponseWriter, r *http.Request) {
	id := bluetooth.ContextID(mux.Vars(r)["id"])

	h.engine.DisableSimulation(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}
