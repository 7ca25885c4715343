package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"stayhub/internal/apperr"
	"stayhub/internal/config"
	"stayhub/internal/models"
	"stayhub/internal/service"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

type AuthAPI interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.User, error)
	VerifyOTP(ctx context.Context, email, code string) error
	ResendOTP(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	ParseToken(raw string) (*service.Claims, error)
	Profile(ctx context.Context, userID int64) (*models.User, error)
	UpdateProfile(ctx context.Context, userID int64, in service.ProfileInput) (*models.User, error)
}

type PropertyAPI interface {
	List(ctx context.Context, filter models.PropertyFilter) ([]*models.Property, error)
	Popular(ctx context.Context) ([]*models.Property, error)
	Get(ctx context.Context, id int64) (*models.Property, error)
	Create(ctx context.Context, actor models.Actor, in service.PropertyInput) (*models.Property, error)
	Update(ctx context.Context, actor models.Actor, id int64, in service.PropertyUpdate) (*models.Property, error)
	Search(ctx context.Context, query string, limit int) ([]*models.Property, error)
}

type ReservationAPI interface {
	availabilityBackend
	CreateReservation(ctx context.Context, in service.CreateReservationInput) (*models.Reservation, error)
	UpdateReservationStatus(ctx context.Context, reservationID int64, actor models.Actor, newStatus string) (*models.Reservation, error)
	Get(ctx context.Context, actor models.Actor, id int64) (*models.Reservation, error)
	ListForActor(ctx context.Context, actor models.Actor) ([]*models.Reservation, error)
	Export(ctx context.Context, actor models.Actor, from, to time.Time) ([]byte, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Services are the operations the HTTP API exposes.
type Services struct {
	Auth         AuthAPI
	Properties   PropertyAPI
	Reservations ReservationAPI
	Store        Pinger
}

// HTTPServer serves the public JSON API and, optionally, the static frontend.
type HTTPServer struct {
	cfg     config.APIConfig
	svc     Services
	router  *httprouter.Router
	limiter *rateLimiter
	server  *http.Server
	log     zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		cfg:     cfg,
		svc:     svc,
		router:  httprouter.New(),
		limiter: newRateLimiter(cfg.RateLimit),
		log:     logger.With().Str("component", "http").Logger(),
	}
	s.routes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler is the full middleware stack around the router.
func (s *HTTPServer) Handler() http.Handler {
	var h http.Handler = s.router
	h = s.rateLimit(h)
	h = requestIDMiddleware(h)
	if len(s.cfg.HTTP.CORSOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins:   s.cfg.HTTP.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
			ExposedHeaders:   []string{requestIDHeader, "Content-Disposition"},
			AllowCredentials: true,
		}).Handler(h)
	}
	return h
}

func (s *HTTPServer) routes() {
	r := s.router
	r.PanicHandler = s.panicHandler
	r.NotFound = s.notFoundHandler()
	r.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apperr.WriteError(w, apperr.New("METHOD_NOT_ALLOWED", "Method not allowed", http.StatusMethodNotAllowed))
	})

	s.handle(http.MethodGet, "/healthz", s.health)

	s.handle(http.MethodPost, "/api/auth/register", s.register)
	s.handle(http.MethodPost, "/api/auth/verify-otp", s.verifyOTP)
	s.handle(http.MethodPost, "/api/auth/resend-otp", s.resendOTP)
	s.handle(http.MethodPost, "/api/auth/login", s.login)
	s.handle(http.MethodGet, "/api/auth/profile", s.authenticated(s.profile))
	s.handle(http.MethodGet, "/api/users/profile", s.authenticated(s.profile))
	s.handle(http.MethodPut, "/api/users/profile", s.authenticated(s.updateProfile))

	// httprouter cannot mix static and wildcard children, so /popular and
	// /search are dispatched from the :id handler.
	s.handle(http.MethodGet, "/api/properties", s.listProperties)
	s.handle(http.MethodGet, "/api/properties/:id", s.propertyByID)
	s.handle(http.MethodGet, "/api/properties/:id/availability", s.checkAvailability)
	s.handle(http.MethodPost, "/api/properties", s.authenticated(s.createProperty))
	s.handle(http.MethodPut, "/api/properties/:id", s.authenticated(s.updateProperty))

	s.handle(http.MethodPost, "/api/reservations/calculate-price", s.calculatePrice)
	s.handle(http.MethodPost, "/api/reservations", s.authenticated(s.createReservation))
	s.handle(http.MethodGet, "/api/reservations", s.authenticated(s.listReservations))
	s.handle(http.MethodGet, "/api/reservations/:id", s.authenticated(s.reservationByID))
	s.handle(http.MethodPut, "/api/reservations/:id/status", s.authenticated(s.updateReservationStatus))
}

func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.svc.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Store.PingContext(ctx); err != nil {
			s.log.Error().Err(err).Msg("health check failed")
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) notFoundHandler() http.Handler {
	var static http.Handler
	if s.cfg.HTTP.StaticDir != "" {
		static = http.FileServer(http.Dir(s.cfg.HTTP.StaticDir))
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if static == nil || strings.HasPrefix(r.URL.Path, "/api/") || r.Method != http.MethodGet {
			apperr.WriteError(w, apperr.New(apperr.CodeNotFound, "Route not found", http.StatusNotFound))
			return
		}
		static.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) panicHandler(w http.ResponseWriter, r *http.Request, rec interface{}) {
	s.log.Error().
		Interface("panic", rec).
		Str("request_id", requestIDFromContext(r.Context())).
		Str("path", r.URL.Path).
		Msg("handler panicked")
	apperr.WriteError(w, apperr.Internal("An unexpected error occurred", nil))
}

// writeError logs server-side failures and renders the error body.
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := toAppError(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		s.log.Error().
			Err(err).
			Str("request_id", requestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	apperr.WriteError(w, appErr)
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := apperr.WriteJSON(w, status, payload); err != nil {
		s.log.Warn().Err(err).Msg("failed to write response")
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}
