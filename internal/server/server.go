// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"leadrouter/internal/common/errors"
	"leadrouter/internal/common/logger"
	"leadrouter/internal/common/validation"
	"leadrouter/internal/models"
	"leadrouter/internal/routing/recommend"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type actorKey struct{}

// ActorFromContext returns the request-scoped actor identity, if any.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}

// Server exposes the one synchronous API of the routing core: the
// request-scoring entry point. Top-N truncation happens here because
// capping is a presentation concern, not a service concern.
type Server struct {
	recommender *recommend.Service
	maxResults  int
	logger      logger.Logger
}

func New(recommender *recommend.Service, maxResults int, log logger.Logger) *Server {
	return &Server{
		recommender: recommender,
		maxResults:  maxResults,
		logger:      log.WithFields(map[string]interface{}{"component": "http-server"}),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.actorContext)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/v1/recommendations", s.handleRecommend)

	return r
}

// actorContext replaces ambient session state with an explicit
// request-scoped identity carried on the context.
func (s *Server) actorContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := r.Header.Get("X-Actor-Id"); actor != "" {
			r = r.WithContext(context.WithValue(r.Context(), actorKey{}, actor))
		}
		next.ServeHTTP(w, r)
	})
}

type recommendRequest struct {
	ServiceType     string `json:"service_type"`
	Urgency         string `json:"urgency,omitempty"`
	ExcludeVendorID string `json:"exclude_vendor_id,omitempty"`
}

type recommendResponse struct {
	Recommendations    []models.ScoredVendor `json:"recommendations"`
	NoVendorsAvailable bool                  `json:"no_vendors_available,omitempty"`
	Message            string                `json:"message,omitempty"`
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	result, err := validation.ValidateRecommendationRequest(body)
	if err != nil || !result.Valid {
		s.logger.Warn("invalid recommendation request", map[string]interface{}{
			"actor":  ActorFromContext(r.Context()),
			"errors": result,
		})
		s.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   string(errors.ErrCodeInvalidRequestContext),
			"details": result,
		})
		return
	}

	var req recommendRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed JSON payload")
		return
	}

	reqCtx := models.RequestContext{
		ServiceType: req.ServiceType,
		Urgency:     models.ParseUrgency(req.Urgency),
	}

	ranked, err := s.recommender.Recommend(r.Context(), reqCtx, req.ExcludeVendorID)
	if err != nil {
		// An empty vendor roster is a reportable condition, not an error
		// page: the caller gets a clearly flagged empty result.
		if errors.IsCode(err, errors.ErrCodeNoVendorsAvailable) {
			s.writeJSON(w, http.StatusOK, recommendResponse{
				Recommendations:    []models.ScoredVendor{},
				NoVendorsAvailable: true,
				Message:            "no active vendors available, retry later or escalate manually",
			})
			return
		}
		if errors.IsCode(err, errors.ErrCodeInvalidRequestContext) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("recommendation failed", map[string]interface{}{
			"actor": ActorFromContext(r.Context()),
			"error": err,
		})
		s.writeError(w, http.StatusInternalServerError, "recommendation unavailable")
		return
	}

	if len(ranked) > s.maxResults {
		ranked = ranked[:s.maxResults]
	}
	s.writeJSON(w, http.StatusOK, recommendResponse{Recommendations: ranked})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("response encode failed", map[string]interface{}{"error": err})
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
