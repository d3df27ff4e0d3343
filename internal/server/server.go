// Package server exposes the pricing core over HTTP.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DuKro90/draftcraft/internal/benchmark"
	"github.com/DuKro90/draftcraft/internal/catalog"
	"github.com/DuKro90/draftcraft/internal/engine"
	"github.com/DuKro90/draftcraft/internal/explain"
	"github.com/DuKro90/draftcraft/internal/model"
	"github.com/DuKro90/draftcraft/internal/pricing"
	"github.com/DuKro90/draftcraft/internal/rule"
	"github.com/DuKro90/draftcraft/internal/store"
)

// Options bounds request throughput.
type Options struct {
	RateLimitPerSec float64
	RateBurst       int
}

// Server holds the wired collaborators behind the HTTP boundary.
type Server struct {
	engine    *engine.Engine
	store     store.Store
	benchmark *benchmark.Aggregator
}

// New creates a Server.
func New(e *engine.Engine, st store.Store, agg *benchmark.Aggregator) *Server {
	return &Server{engine: e, store: st, benchmark: agg}
}

// Router builds the chi router with middleware and all routes mounted.
func (s *Server) Router(opts Options) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if opts.RateLimitPerSec > 0 {
		r.Use(throttle(rate.NewLimiter(rate.Limit(opts.RateLimitPerSec), opts.RateBurst)))
	}

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/calculate", s.handleCalculate)
		r.Route("/calculations/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetCalculation)
			r.Get("/explanation", s.handleExplanation)
		})
		r.Get("/benchmarks/{projectType}", s.handleBenchmark)
	})

	return r
}

// throttle rejects requests above the configured rate with 429.
func throttle(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body unreadable or too large")
		return
	}

	var req engine.Request
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON request")
		return
	}

	result, err := s.engine.Calculate(r.Context(), req)
	if err != nil {
		s.writeCalculationError(w, err)
		return
	}

	if err := s.store.SaveResult(r.Context(), result); err != nil {
		zap.L().Error("server: persist calculation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to persist calculation")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetCalculation(w http.ResponseWriter, r *http.Request) {
	result, err := s.store.GetResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrResultNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "calculation not found")
			return
		}
		zap.L().Error("server: get calculation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to load calculation")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExplanation(w http.ResponseWriter, r *http.Request) {
	result, err := s.store.GetResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrResultNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "calculation not found")
			return
		}
		zap.L().Error("server: get calculation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to load calculation")
		return
	}

	explanation, err := explain.Build(result)
	if err != nil {
		zap.L().Error("server: build explanation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to build explanation")
		return
	}

	out := map[string]any{"explanation": explanation}
	if r.URL.Query().Get("deviation") == "true" {
		dev, err := s.benchmark.ExplainDeviation(r.Context(), result)
		if err != nil {
			zap.L().Error("server: deviation", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal", "failed to compute deviation")
			return
		}
		out["deviation"] = dev
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	business := r.URL.Query().Get("business")
	if business == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "business query parameter is required")
		return
	}

	b, err := s.benchmark.Benchmark(r.Context(), business, chi.URLParam(r, "projectType"))
	if err != nil {
		zap.L().Error("server: benchmark", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "failed to compute benchmark")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// writeCalculationError maps pipeline failures onto status codes. Structural
// problems with the request are 400; a request referencing unknown catalog
// keys or missing rule context is well-formed but unprocessable, 422.
func (s *Server) writeCalculationError(w http.ResponseWriter, err error) {
	var (
		emptyErr    *engine.EmptyCalculationError
		factorErr   *catalog.UnknownFactorError
		baseRateErr *pricing.UnknownBaseRateError
		fieldErr    *rule.MissingContextFieldError
		validateErr *model.ValidationError
		depthErr    *rule.InvalidRuleDepthError
	)
	switch {
	case errors.As(err, &emptyErr):
		writeError(w, http.StatusBadRequest, "empty_calculation", emptyErr.Error())
	case errors.As(err, &validateErr):
		writeError(w, http.StatusBadRequest, "invalid_request", validateErr.Error())
	case errors.As(err, &depthErr):
		writeError(w, http.StatusBadRequest, "invalid_rule", depthErr.Error())
	case errors.As(err, &factorErr):
		writeError(w, http.StatusUnprocessableEntity, "unknown_factor", factorErr.Error())
	case errors.As(err, &baseRateErr):
		writeError(w, http.StatusUnprocessableEntity, "unknown_base_rate", baseRateErr.Error())
	case errors.As(err, &fieldErr):
		writeError(w, http.StatusUnprocessableEntity, "missing_context_field", fieldErr.Error())
	default:
		zap.L().Error("server: calculate", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "calculation failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
