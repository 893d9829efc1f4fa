// File: internal/infra/web/server.go
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"contentforge/internal/domain"
	"contentforge/internal/domain/ports/repository"
	ports "contentforge/internal/domain/ports/usecase"
	"contentforge/internal/infra/broadcast"
	"contentforge/internal/infra/logging"
)

// Server exposes the public HTTP surface: chat admission, batch jobs, and
// the per-topic progress stream.
type Server struct {
	chat      ports.ChatService
	batch     ports.BatchService
	artifacts repository.ArtifactRepository
	hub       *broadcast.Hub
	secret    []byte
	dev       bool
	log       *zerolog.Logger
}

func NewServer(
	chat ports.ChatService,
	batch ports.BatchService,
	artifacts repository.ArtifactRepository,
	hub *broadcast.Hub,
	jwtSecret string,
	dev bool,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		chat:      chat,
		batch:     batch,
		artifacts: artifacts,
		hub:       hub,
		secret:    []byte(jwtSecret),
		dev:       dev,
		log:       logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLog)
	r.Use(s.recover)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth)
		r.Post("/chat", s.handleChat)
		r.Post("/jobs", s.handleCreateJob)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/topics/{id}/artifacts", s.handleTopicArtifacts)
		r.Get("/subscribe/{topic}", s.handleSubscribe)
	})
	return r
}

// ===== middleware =====

type ctxKey string

const ctxAccount ctxKey = "account"

func accountFrom(r *http.Request) string {
	v, _ := r.Context().Value(ctxAccount).(string)
	return v
}

// auth validates a Bearer JWT (HS256) and takes the account id from the
// subject claim. Dev mode accepts a plain X-Account-ID header instead.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.dev {
			if id := r.Header.Get("X-Account-ID"); id != "" {
				next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), id)))
				return
			}
		}

		hdr := r.Header.Get("Authorization")
		if !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			s.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims := &jwt.RegisteredClaims{}
		tkn, err := jwt.ParseWithClaims(strings.TrimSpace(hdr[7:]), claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return s.secret, nil
		})
		if err != nil || !tkn.Valid || claims.Subject == "" {
			s.writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), claims.Subject)))
	})
}

func withAccount(ctx context.Context, id string) context.Context {
	return context.WithValue(logging.WithAccountID(ctx, id), ctxAccount, id)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		logging.With(r.Context(), s.log).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.status).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	})
}

func (s *Server) recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.With(r.Context(), s.log).Error().Interface("panic", rec).Msg("panic recovered")
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// ===== handlers =====

type chatRequest struct {
	TopicID string `json:"topicId"`
	Prompt  string `json:"prompt"`
	Mode    string `json:"mode"`
}

type chatResponse struct {
	Accepted       bool   `json:"accepted"`
	TopicID        string `json:"topicId"`
	RemainingUnits int    `json:"remainingUnits"`
	Unlimited      bool   `json:"unlimited"`
	Overage        bool   `json:"overage,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed json body")
		return
	}
	ack, err := s.chat.SubmitChatRequest(r.Context(), req.TopicID, accountFrom(r), req.Prompt, req.Mode)
	if err != nil {
		s.mapError(w, err)
		return
	}
	status := http.StatusAccepted
	if !ack.Accepted {
		status = http.StatusTooManyRequests
	}
	s.writeJSON(w, status, chatResponse{
		Accepted:       ack.Accepted,
		TopicID:        ack.TopicID,
		RemainingUnits: ack.RemainingUnits,
		Unlimited:      ack.Unlimited,
		Overage:        ack.Overage,
		Reason:         ack.Reason,
	})
}

type createJobRequest struct {
	Name          string   `json:"name"`
	Keywords      []string `json:"keywords"`
	TargetCountry string   `json:"targetCountry"`
	ContentLength int      `json:"contentLength"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed json body")
		return
	}
	job, err := s.batch.SubmitBatchJob(r.Context(), ports.BatchSubmission{
		AccountID:     accountFrom(r),
		Name:          req.Name,
		Keywords:      req.Keywords,
		TargetCountry: req.TargetCountry,
		ContentLength: req.ContentLength,
	})
	if err != nil {
		s.mapError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.batch.GetJobStatus(r.Context(), accountFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		s.mapError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.batch.ListJobs(r.Context(), accountFrom(r), 0)
	if err != nil {
		s.mapError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleTopicArtifacts(w http.ResponseWriter, r *http.Request) {
	arts, err := s.artifacts.ListByTopic(r.Context(), repository.NoTX, chi.URLParam(r, "id"))
	if err != nil {
		s.mapError(w, err)
		return
	}
	account := accountFrom(r)
	for _, a := range arts {
		if a.AccountID != account {
			s.writeError(w, http.StatusNotFound, "not found")
			return
		}
	}
	s.writeJSON(w, http.StatusOK, arts)
}

// ===== helpers =====

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("failed to write json response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidArgument):
		s.writeError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, domain.ErrLockNotAcquired):
		s.writeError(w, http.StatusTooManyRequests, "busy, retry shortly")
	default:
		s.log.Error().Err(err).Msg("request failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
