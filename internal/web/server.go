// Package web provides the HTTP API for flowboard: a thin wrapper over the
// board that parses input, delegates, and translates board errors to status
// codes. Board logic is never duplicated here.
package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tverenko/flowboard/internal/board"
	"github.com/tverenko/flowboard/internal/model"
)

const maxTitleLen = 120

// Server provides the HTTP handlers and state.
type Server struct {
	board *board.Board
}

// NewServer creates a new API server over b.
func NewServer(b *board.Board) *Server {
	return &Server{board: b}
}

// Routes returns the router for the API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks", s.handleCreateTask)
	mux.HandleFunc("GET /tasks", s.handleListTasks)
	mux.HandleFunc("GET /tasks/{id}", s.handleGetTask)
	mux.HandleFunc("POST /tasks/{id}/start", s.handleStart)
	mux.HandleFunc("POST /tasks/{id}/review", s.handleReview)
	mux.HandleFunc("POST /tasks/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /tasks/{id}/reject", s.handleReject)
	mux.HandleFunc("GET /board", s.handleBoard)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

type createTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DependsOn   []string `json:"depends_on"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || len(req.Title) > maxTitleLen {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "title is required and must be at most 120 characters"})
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "description is required"})
		return
	}

	task, err := s.board.Create(r.Context(), req.Title, req.Description, req.DependsOn)
	if err != nil {
		writeBoardError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("stage"); raw != "" {
		stage, err := model.ParseStage(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, s.board.ByStage(stage))
		return
	}
	writeJSON(w, http.StatusOK, s.board.List())
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.board.Get(r.PathValue("id"))
	if err != nil {
		writeBoardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	task, err := s.board.Start(r.Context(), r.PathValue("id"))
	if err != nil {
		writeBoardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	task, err := s.board.Review(r.Context(), r.PathValue("id"))
	if err != nil {
		writeBoardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	task, err := s.board.Approve(r.Context(), r.PathValue("id"))
	if err != nil {
		writeBoardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "reason is required"})
		return
	}
	task, err := s.board.Reject(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		writeBoardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.board.View())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeBoardError maps domain errors to status codes.
func writeBoardError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case model.IsNotFound(err):
		status = http.StatusNotFound
	case model.IsWIPLimit(err):
		status = http.StatusTooManyRequests
	case model.IsDependencyBlocked(err):
		status = http.StatusConflict
	case model.IsInvalidTransition(err):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write response")
	}
}
