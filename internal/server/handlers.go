package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/chriscorrea/related/internal/recommend"
)

// errorResponse is the body of every non-200 response.
type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status    string     `json:"status"`
	Documents int        `json:"documents"`
	TrainedAt *time.Time `json:"trained_at,omitempty"`
}

// handleHealth describes the index that answered the last query.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if idx := s.serving.Load(); idx != nil {
		trainedAt := idx.TrainedAt()
		resp.Documents = idx.Len()
		resp.TrainedAt = &trainedAt
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	status := http.StatusOK
	defer func() {
		QueriesTotal.WithLabelValues(strconv.Itoa(status)).Inc()
		QueryDuration.Observe(time.Since(started).Seconds())
	}()

	id := chi.URLParam(r, "id")

	start, err := queryInt(r, "start", 0)
	if err != nil {
		status = http.StatusBadRequest
		s.respondError(w, status, err)
		return
	}
	size, err := queryInt(r, "size", s.pageSize)
	if err != nil {
		status = http.StatusBadRequest
		s.respondError(w, status, err)
		return
	}

	idx, err := s.Index(r.Context())
	if err != nil {
		status = http.StatusInternalServerError
		var verr *recommend.ValidationError
		if errors.As(err, &verr) {
			s.logger.Error("Corpus rejected", "reason", verr.Reason, "index", verr.Index, "id", verr.ID)
		} else {
			s.logger.Error("Query failed", "id", id, "error", err)
		}
		s.respondError(w, status, errors.New("index unavailable"))
		return
	}

	s.respondJSON(w, status, idx.SimilarDocuments(id, start, size))
}

// queryInt parses a non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s should be a non-negative integer, got %q", name, raw)
	}
	return n, nil
}

// respondJSON sends a JSON response with proper headers
func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("Failed to write JSON response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	s.respondJSON(w, status, errorResponse{Error: err.Error()})
}
