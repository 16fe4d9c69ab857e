package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/memory"
	"github.com/habiliai/memoryd/record"
)

const maxBodyBytes = 1 << 20

type (
	// Service is the part of memory.Service the HTTP surface binds to.
	Service interface {
		Get(ctx context.Context, id string) (*record.Record, error)
		List(ctx context.Context, opts memory.ListOptions) ([]*record.Record, error)
		Search(ctx context.Context, message string, opts memory.SearchOptions) ([]record.Scored, error)
		Add(ctx context.Context, req memory.AddRequest) (*record.Record, bool, error)
		Update(ctx context.Context, id, text string) (*record.Record, error)
		Delete(ctx context.Context, id string) error
		DeleteAll(ctx context.Context, userID string) (int, error)
	}

	server struct {
		svc    Service
		logger *slog.Logger
	}

	addRequest struct {
		Text      string         `json:"text"`
		Namespace string         `json:"namespace"`
		UserID    string         `json:"user_id,omitempty"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}

	searchRequest struct {
		Message           string `json:"message"`
		Limit             int    `json:"limit,omitempty"`
		UserID            string `json:"user_id,omitempty"`
		IncludeRestricted *bool  `json:"include_restricted,omitempty"`
	}

	updateRequest struct {
		Text string `json:"text"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}
)

var _ Service = (*memory.Service)(nil)

// NewHandler mounts the memory API with CORS and panic recovery.
func NewHandler(svc Service, logger *slog.Logger, corsOrigins []string) http.Handler {
	s := &server{svc: svc, logger: logger}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	memories := router.PathPrefix("/api/memories").Subrouter()
	memories.HandleFunc("", s.list).Methods(http.MethodGet)
	memories.HandleFunc("", s.add).Methods(http.MethodPost)
	memories.HandleFunc("", s.deleteAll).Methods(http.MethodDelete)
	memories.HandleFunc("/search", s.search).Methods(http.MethodPost)
	memories.HandleFunc("/{id}", s.get).Methods(http.MethodGet)
	memories.HandleFunc("/{id}", s.update).Methods(http.MethodPut)
	memories.HandleFunc("/{id}", s.delete).Methods(http.MethodDelete)

	cors := handlers.CORS(
		handlers.AllowedOrigins(corsOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	recovery := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true), handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)))

	return cors(recovery(router))
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := s.svc.List(r.Context(), memory.ListOptions{
		UserID:    q.Get("user_id"),
		Namespace: q.Get("namespace"),
		Order:     q.Get("order"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []*record.Record{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"memories": records})
}

func (s *server) add(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if !s.decode(w, r, &req) {
		return
	}

	meta := record.MetadataFromMap(req.Metadata)
	if meta.Source == "" {
		meta.Source = record.SourceAPI
	}
	rec, created, err := s.svc.Add(r.Context(), memory.AddRequest{
		UserID:    req.UserID,
		Namespace: req.Namespace,
		Text:      req.Text,
		Metadata:  meta,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, rec)
}

func (s *server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}

	results, err := s.svc.Search(r.Context(), req.Message, memory.SearchOptions{
		Limit:             req.Limit,
		UserID:            req.UserID,
		IncludeRestricted: req.IncludeRestricted,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if results == nil {
		results = []record.Scored{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"memories": results})
}

func (s *server) get(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *server) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !s.decode(w, r, &req) {
		return
	}

	rec, err := s.svc.Update(r.Context(), mux.Vars(r)["id"], req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *server) delete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) deleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.DeleteAll(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		s.writeError(w, r, errors.Validationf("invalid request body: %v", err))
		return false
	}
	return true
}

// writeError answers 4xx with the specific message and 5xx with a generic one;
// the full error only goes to the log.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := http.StatusInternalServerError, "internal error"
	switch errors.Kind(err) {
	case errors.ErrValidation:
		status, message = http.StatusBadRequest, err.Error()
	case errors.ErrNotFound:
		status, message = http.StatusNotFound, err.Error()
	case errors.ErrProvider:
		status, message = http.StatusBadGateway, "embedding provider unavailable"
	case errors.ErrStore:
		message = "memory store unavailable"
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "status", strconv.Itoa(status), "err", err)
	}
}
