package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/bluetooth-emulator/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes. session serves the WebSocket
// command protocol.
func (h *Handler) SetupRoutes(session http.Handler, rateLimiter *ratelimit.Limiter, trustClientHeader bool) *mux.Router {
	r := mux.NewRouter()

	// Commands over the socket are limited per connection.
	r.Handle("/session", session).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	if rateLimiter != nil {
		api.Use(RateLimitMiddleware(rateLimiter, trustClientHeader))
	}

	api.HandleFunc("/contexts", h.ListContexts).Methods("GET")
	api.HandleFunc("/contexts/{id}/bluetooth", h.GetBluetooth).Methods("GET")
	api.HandleFunc("/contexts/{id}/bluetooth", h.DisableBluetooth).Methods("DELETE")
	api.HandleFunc("/contexts/{id}/bluetooth/device-requests", h.SubmitDeviceRequest).Methods("POST", "OPTIONS")

	r.Use(corsMiddleware)

	return r
}
