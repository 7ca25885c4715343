package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"stayhub/internal/apperr"
	"stayhub/internal/metrics"
	"stayhub/internal/service"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
)

const requestIDHeader = "X-Request-ID"

type ctxKey int

const requestIDKey ctxKey = iota

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// handle registers h with access logging and latency metrics labelled by the
// route pattern.
func (s *HTTPServer) handle(method, path string, h httprouter.Handle) {
	s.router.Handle(method, path, func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(recorder, r, ps)
		dur := time.Since(start)

		metrics.ObserveHTTP(method+" "+path, recorder.status, dur.Seconds())
		s.log.Info().
			Str("request_id", requestIDFromContext(r.Context())).
			Str("method", method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

func (s *HTTPServer) rateLimit(next http.Handler) http.Handler {
	if !s.limiter.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			apperr.WriteError(w, apperr.TooManyRequests("Rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type authedHandle func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, claims *service.Claims)

// authenticated requires a valid bearer token.
func (s *HTTPServer) authenticated(h authedHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			apperr.WriteError(w, apperr.Unauthorized("Missing bearer token"))
			return
		}

		claims, err := s.svc.Auth.ParseToken(strings.TrimSpace(raw))
		if err != nil {
			apperr.WriteError(w, apperr.Unauthorized("Invalid or expired token"))
			return
		}
		h(w, r, ps, claims)
	}
}
