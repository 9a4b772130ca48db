package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/facetgo"
	"github.com/hupe1980/facetgo/facet"
)

type server struct {
	m      *facetgo.Manager
	cfg    SearchConfig
	logger *slog.Logger
}

type indexStatus struct {
	Name       string `json:"name"`
	Generation uint64 `json:"generation"`
	Ready      bool   `json:"ready"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func newHandler(m *facetgo.Manager, cfg SearchConfig, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	s := &server{m: m, cfg: cfg, logger: logger.With("component", "http")}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", s.search)
	mux.HandleFunc("GET /api/v1/indexes", s.indexes)
	mux.HandleFunc("POST /api/v1/indexes/{name}/rebuild", s.rebuild)
	mux.HandleFunc("GET /health/live", s.live)
	mux.HandleFunc("GET /health/ready", s.ready)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	name := q.Get("index")
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "query parameter 'index' is required")
		return
	}

	limit := s.cfg.DefaultLimit
	if v := q.Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	limit = min(limit, s.cfg.MaxLimit)

	var refinements []facet.Refinement
	for _, v := range q["refine"] {
		ref, err := parseRefinement(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		refinements = append(refinements, ref)
	}

	res, err := s.m.SearchWithFacets(r.Context(), name, q.Get("q"), limit, refinements...)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *server) indexes(w http.ResponseWriter, _ *http.Request) {
	names := s.m.Registered()
	out := make([]indexStatus, 0, len(names))
	for _, name := range names {
		gen, err := s.m.Generation(name)
		out = append(out, indexStatus{Name: name, Generation: gen, Ready: err == nil})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *server) rebuild(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.m.CreateIndex(r.Context(), name); err != nil {
		s.writeFailure(w, err)
		return
	}
	gen, _ := s.m.Generation(name)
	s.writeJSON(w, http.StatusOK, indexStatus{Name: name, Generation: gen, Ready: true})
}

func (s *server) live(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "up"})
}

func (s *server) ready(w http.ResponseWriter, _ *http.Request) {
	var missing []string
	for _, name := range s.m.Registered() {
		if _, err := s.m.Generation(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "down", "missing": missing})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "up"})
}

// parseRefinement parses "facet=value".
func parseRefinement(v string) (facet.Refinement, error) {
	id, value, ok := strings.Cut(v, "=")
	if !ok || id == "" {
		return facet.Refinement{}, errors.New("refine must have the form facet=value")
	}
	return facet.Refinement{FacetID: facet.ID(id), Value: value}, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, facetgo.ErrIndexNotFound):
		return http.StatusNotFound
	case errors.Is(err, facetgo.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, facetgo.ErrFacetsNotBuilt), errors.Is(err, facetgo.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeError(w, status, err.Error())
}

func (s *server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
