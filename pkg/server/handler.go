package server

import (
	"encoding/json"
	"net/http"

	wireerrors "github.com/vango-dev/eventwire/internal/errors"
	"github.com/vango-dev/eventwire/pkg/route"
)

// EventResponse is the reply to POST /api/events.
type EventResponse struct {
	Outcomes []OutcomeView `json:"outcomes"`
	// Document is the rendered document after the event, when ?render=1.
	Document string `json:"document,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Stats(),
	})
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	e, err := s.factory(r.Context())
	if err != nil {
		s.writeError(w, wireerrors.New("E343").Wrap(err))
		return
	}
	routes := []route.Entry{}
	if reg := e.Routes(); reg != nil {
		routes = append(routes, reg.Routes()...)
	}
	writeJSON(w, http.StatusOK, routes)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	body := http.MaxBytesReader(w, r.Body, s.config.Session.MaxMessageSize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, wireerrors.New("E341").Wrap(err))
		return
	}

	e, err := s.factory(r.Context())
	if err != nil {
		s.writeError(w, wireerrors.New("E343").Wrap(err))
		return
	}

	outs, err := Fire(r.Context(), e, req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := EventResponse{Outcomes: Views(outs)}
	if r.URL.Query().Get("render") == "1" {
		resp.Document = e.Document().String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch wireerrors.CodeOf(err) {
	case "E340":
		status = http.StatusNotFound
	case "E341":
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Code: wireerrors.CodeOf(err), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
