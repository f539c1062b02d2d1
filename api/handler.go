// Package api exposes the gateway's session operations over HTTP/JSON. It
// is a thin adapter: validation and status mapping live here, everything
// else is delegated to the session registry.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tailored-agentic-units/gateway/observability"
	"github.com/tailored-agentic-units/gateway/sessions"
)

// EventRequest is emitted for every handled request.
const EventRequest observability.EventType = "api.request"

type server struct {
	registry *sessions.Registry
	observer observability.Observer
}

// NewHandler builds the HTTP surface over a session registry:
//
//	POST   /sessions                    create or reuse a session
//	GET    /sessions                    list sessions
//	GET    /sessions/{number}           session status
//	GET    /sessions/{number}/code      pairing code
//	POST   /sessions/{number}/messages  send a message
//	DELETE /sessions/{number}           delete a session
func NewHandler(registry *sessions.Registry, observer observability.Observer) http.Handler {
	s := &server{registry: registry, observer: observer}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", s.create)
	mux.HandleFunc("GET /sessions", s.list)
	mux.HandleFunc("GET /sessions/{number}", s.get)
	mux.HandleFunc("GET /sessions/{number}/code", s.pairingCode)
	mux.HandleFunc("POST /sessions/{number}/messages", s.send)
	mux.HandleFunc("DELETE /sessions/{number}", s.remove)
	return mux
}

type createRequest struct {
	Number string `json:"number"`
}

type sendRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type codeResponse struct {
	Number      string `json:"number"`
	PairingCode string `json:"pairing_code"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Number == "" {
		writeError(w, http.StatusBadRequest, "body must be JSON with a non-empty number")
		return
	}

	_, existed := s.registry.Get(req.Number)

	snap, err := s.registry.Create(r.Context(), req.Number)
	if err != nil {
		switch {
		case errors.Is(err, sessions.ErrCapacityExceeded):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, sessions.ErrBadIdentity):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	s.logRequest(r, "create", snap.Identity)

	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	writeJSON(w, status, snap)
}

func (s *server) list(w http.ResponseWriter, r *http.Request) {
	s.logRequest(r, "list", "")
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *server) get(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	snap, ok := s.registry.Get(number)
	if !ok {
		writeError(w, http.StatusNotFound, "no session for "+number)
		return
	}
	s.logRequest(r, "get", snap.Identity)
	writeJSON(w, http.StatusOK, snap)
}

func (s *server) pairingCode(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	snap, ok := s.registry.Get(number)
	if !ok {
		writeError(w, http.StatusNotFound, "no session for "+number)
		return
	}
	if snap.Status != sessions.StatusPairing || snap.PairingCode == "" {
		writeError(w, http.StatusConflict, "session is not awaiting pairing")
		return
	}
	s.logRequest(r, "code", snap.Identity)
	writeJSON(w, http.StatusOK, codeResponse{Number: snap.Identity, PairingCode: snap.PairingCode})
}

func (s *server) send(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.To == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "body must be JSON with non-empty to and text")
		return
	}

	if err := s.registry.Send(r.Context(), number, req.To, req.Text); err != nil {
		switch {
		case errors.Is(err, sessions.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, sessions.ErrNotConnected):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	s.logRequest(r, "send", number)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) remove(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	if err := s.registry.Remove(r.Context(), number); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logRequest(r, "remove", number)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) logRequest(r *http.Request, op, identity string) {
	observability.Emit(r.Context(), s.observer, EventRequest, observability.LevelVerbose,
		"api.server", map[string]any{"op": op, "identity": identity, "method": r.Method, "path": r.URL.Path})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
