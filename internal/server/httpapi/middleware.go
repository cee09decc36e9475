package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/common"
	"github.com/dmitrijs2005/mailvault/internal/server/metrics"
	"github.com/dmitrijs2005/mailvault/internal/server/services"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type contextKey string

const (
	contextKeyRequestID contextKey = "requestID"
	contextKeyEmail     contextKey = "email"
)

// RequestIDFrom returns the id assigned to the request carried by ctx.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

func emailFrom(ctx context.Context) string {
	email, _ := ctx.Value(contextKeyEmail).(string)
	return email
}

// statusRecorder remembers the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(common.RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(common.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		s.logger.Info(r.Context(), "request completed",
			"request_id", RequestIDFrom(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.code(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.code())).Inc()
	})
}

// gateMiddleware resolves the session cookie to a stored credential and
// attaches it to the request context. Every session problem answers the
// same 401.
func (s *Server) gateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		email, err := s.binder.FromRequest(r)
		if err != nil {
			metrics.GateRejectionsTotal.WithLabelValues("no_session").Inc()
			s.logger.Debug(ctx, "request without a valid session", "request_id", RequestIDFrom(ctx), "path", r.URL.Path)
			s.writeServiceError(w, r, common.ErrNotAuthenticated)
			return
		}

		cred, err := s.vault.Resolve(ctx, email)
		if err != nil {
			if !errors.Is(err, common.ErrSessionInvalid) {
				s.logger.Error(ctx, "session gate failed", "request_id", RequestIDFrom(ctx), "error", err)
			}
			s.writeServiceError(w, r, err)
			return
		}

		ctx = context.WithValue(ctx, contextKeyEmail, email)
		ctx = services.WithCredential(ctx, cred)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
