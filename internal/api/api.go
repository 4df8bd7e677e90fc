package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/ndrandal/marketsim/internal/engine"
	"github.com/ndrandal/marketsim/internal/session"
)

// Server provides REST API endpoints for the simulator.
type Server struct {
	eng      *engine.Engine
	mgr      *session.Manager
	validate *validator.Validate
	log      zerolog.Logger
	startAt  time.Time
	now      func() time.Time
}

// NewServer creates a new API server.
func NewServer(eng *engine.Engine, mgr *session.Manager, log zerolog.Logger) *Server {
	return &Server{
		eng:      eng,
		mgr:      mgr,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.With().Str("component", "api").Logger(),
		startAt:  time.Now(),
		now:      time.Now,
	}
}

// Register attaches API routes to the given mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/instruments", s.handleInstruments)
	mux.HandleFunc("GET /api/instruments/{symbol}", s.handleInstrument)
	mux.HandleFunc("GET /api/indices", s.handleIndices)
	mux.HandleFunc("GET /api/history/{symbol}", s.handleHistory)
	mux.HandleFunc("DELETE /api/history/{symbol}", s.handleInvalidateHistory)
	mux.HandleFunc("GET /api/selected", s.handleSelected)
	mux.HandleFunc("PUT /api/selected", s.handleSetSelected)
	mux.HandleFunc("GET /api/regime", s.handleRegime)
	mux.HandleFunc("GET /api/regime/events", s.handleEvents)
	mux.HandleFunc("POST /api/regime/trigger/{kind}", s.handleTrigger)
	mux.HandleFunc("POST /api/simulation/start", s.handleStart)
	mux.HandleFunc("POST /api/simulation/stop", s.handleStop)
	mux.HandleFunc("GET /api/news", s.handleNews)
	mux.HandleFunc("GET /api/market", s.handleMarket)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /health", s.handleHealth)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

const maxBodyBytes = 4 << 10

// decodeBody reads a JSON body into v and validates it.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}
