package rpcserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/R3E-Network/credible-commitment-machine/platform/os"
)

// HTTPServer is the HTTP compatibility shim for clients that would rather
// speak plain POST/JSON than open a raw socket to Bridge.
type HTTPServer struct {
	handler *Handler
	logger  os.Logger
	server  *http.Server
}

// NewHTTPServer builds an HTTPServer bound to addr with a single POST /rpc
// route, a liveness probe at GET /healthz, and, when metricsHandler is
// non-nil, a GET /metrics scrape endpoint.
func NewHTTPServer(addr string, handler *Handler, logger os.Logger, metricsHandler http.Handler) *HTTPServer {
	router := mux.NewRouter()
	h := &HTTPServer{handler: handler, logger: logger}
	router.HandleFunc("/rpc", h.serveRPC).Methods(http.MethodPost)
	router.HandleFunc("/healthz", h.serveHealthz).Methods(http.MethodGet)
	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}

	h.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return h
}

// ListenAndServe blocks serving HTTP until the server is closed.
func (h *HTTPServer) ListenAndServe() error {
	return h.server.ListenAndServe()
}

// Handler exposes the underlying mux, letting callers (tests, mainly)
// drive it through httptest without binding a real port.
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// Shutdown gracefully stops the HTTP server.
func (h *HTTPServer) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

func (h *HTTPServer) serveHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.handler.service.Health(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *HTTPServer) serveRPC(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, &Response{
			JSONRPC: "2.0",
			Error:   errorf(codeParseError, "invalid JSON-RPC envelope: %v", err),
		})
		return
	}

	resp := h.handler.Dispatch(r.Context(), &req)
	h.logger.Debug("rpc request", "requestId", requestID, "method", req.Method, "error", resp.Error != nil)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
