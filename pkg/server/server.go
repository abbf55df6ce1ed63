// Package server exposes the skill router over a local HTTP API so agent
// hosts can query routing decisions without linking the Go packages.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillrouter/pkg/loader"
	"github.com/jingkaihe/skillrouter/pkg/logger"
	"github.com/jingkaihe/skillrouter/pkg/presenter"
	"github.com/jingkaihe/skillrouter/pkg/registry"
	"github.com/jingkaihe/skillrouter/pkg/router"
)

// Config holds the configuration for the HTTP server
type Config struct {
	Host string
	Port int
	// DefaultBudget is the routing budget in characters used when a
	// request does not override it
	DefaultBudget int
	// RouteTimeout bounds a single route/load call; on expiry the best
	// partial result is returned
	RouteTimeout time.Duration
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.DefaultBudget <= 0 {
		return errors.Errorf("default budget must be positive, got %d", c.DefaultBudget)
	}
	return nil
}

// Server serves routing queries against the current registry snapshot
type Server struct {
	mux    *mux.Router
	store  *registry.Store
	routes *router.Router
	config *Config
	server *http.Server
}

// New creates the HTTP server
func New(store *registry.Store, routes *router.Router, config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}

	s := &Server{
		mux:    mux.NewRouter(),
		store:  store,
		routes: routes,
		config: config,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	api := s.mux.PathPrefix("/api").Subrouter()
	api.HandleFunc("/skills", s.handleListSkills).Methods("GET")
	api.HandleFunc("/skills/{id}", s.handleGetSkill).Methods("GET")
	api.HandleFunc("/route", s.handleRoute).Methods("POST")
	api.HandleFunc("/reload", s.handleReload).Methods("POST")

	s.mux.HandleFunc("/healthz", s.handleHealthz).Methods("GET")

	s.mux.Use(s.requestIDMiddleware)
	s.mux.Use(s.loggingMiddleware)
}

// requestIDMiddleware tags every request with an id for log correlation
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		w.Header().Set("X-Request-ID", requestID)

		entry := logger.G(r.Context()).WithField("request_id", requestID)
		next.ServeHTTP(w, r.WithContext(logger.WithLogger(r.Context(), entry)))
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: 200}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rw.statusCode,
			"duration": time.Since(start),
		}).Info("HTTP request")
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

type skillSummary struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	ParentID      string   `json:"parentId,omitempty"`
	UserInvocable bool     `json:"userInvocable"`
	Path          string   `json:"path"`
	Size          int      `json:"size"`
	References    []string `json:"references,omitempty"`
}

// handleListSkills handles GET /api/skills
func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	reg := s.store.Registry()

	includeAll := r.URL.Query().Get("all") == "true"

	summaries := []skillSummary{}
	for _, desc := range reg.All() {
		if !desc.UserInvocable && !includeAll {
			continue
		}
		summaries = append(summaries, skillSummary{
			ID:            desc.ID,
			Name:          desc.Name,
			Description:   desc.Description,
			ParentID:      desc.ParentID,
			UserInvocable: desc.UserInvocable,
			Path:          desc.FilePath,
			Size:          desc.ContentSize,
			References:    desc.SubReferences,
		})
	}

	s.writeJSON(w, map[string]interface{}{"skills": summaries})
}

// handleGetSkill handles GET /api/skills/{id}
func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	reg := s.store.Registry()
	id := mux.Vars(r)["id"]

	desc, ok := reg.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("skill %q not found", id), nil)
		return
	}

	s.writeJSON(w, skillSummary{
		ID:            desc.ID,
		Name:          desc.Name,
		Description:   desc.Description,
		ParentID:      desc.ParentID,
		UserInvocable: desc.UserInvocable,
		Path:          desc.FilePath,
		Size:          desc.ContentSize,
		References:    desc.SubReferences,
	})
}

type routeRequest struct {
	Query  string `json:"query"`
	Budget int    `json:"budget,omitempty"`
	Load   bool   `json:"load,omitempty"`
	Refs   bool   `json:"refs,omitempty"`
}

type routeResponse struct {
	Decision  *router.Decision `json:"decision"`
	Documents *loader.Result   `json:"documents,omitempty"`
}

// handleRoute handles POST /api/route
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Query == "" {
		s.writeError(w, http.StatusBadRequest, "query is required", nil)
		return
	}

	budget := req.Budget
	if budget <= 0 {
		budget = s.config.DefaultBudget
	}

	ctx := r.Context()
	if s.config.RouteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RouteTimeout)
		defer cancel()
	}

	reg := s.store.Registry()
	decision := s.routes.Route(ctx, reg, req.Query, budget)

	resp := routeResponse{Decision: decision}
	if req.Load {
		resp.Documents = loader.Load(ctx, reg, decision, req.Refs)
	}

	s.writeJSON(w, resp)
}

// handleReload handles POST /api/reload
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Reload(r.Context()); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "registry reload failed", err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"skills": s.store.Registry().Len()})
}

// handleHealthz handles GET /healthz
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status": "ok",
		"skills": s.store.Registry().Len(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.L.WithError(err).Error("failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		logger.L.WithError(err).Error(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  message,
		"status": statusCode,
	})
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler { return s.mux }

// Start runs the server until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:    address,
		Handler: s.mux,
	}

	presenter.Info(fmt.Sprintf("Starting skill router API on http://%s", address))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.G(ctx).WithError(err).Error("HTTP server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}
