package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"spacebook/internal/auth"
	"spacebook/internal/config"
	"spacebook/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Pinger reports whether the backing store still answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP API routes requests to.
type Deps struct {
	Users      *service.UserService
	Spaces     *service.SpaceService
	Bookings   *service.BookingService
	Tokens     *auth.TokenManager
	DB         Pinger
	UploadsDir string
}

// HTTPServer exposes the booking API.
type HTTPServer struct {
	cfg     config.APIConfig
	deps    Deps
	server  *http.Server
	limiter *rateLimiter
	log     zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, deps Deps, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:     cfg,
		deps:    deps,
		limiter: newRateLimiter(cfg.RateLimit),
		log:     logger.With().Str("component", "http").Logger(),
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.limitBody)

	// Daraja retries anything but a 200, so the callback bypasses the limiter.
	r.Post("/mpesa-callback", s.handleMPesaCallback)

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Get("/healthz", s.handleHealth)
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.Get("/spaces", s.handleListSpaces)
		r.Handle("/uploads/*", s.uploadsHandler())

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/users", s.handleListUsers)
			r.Delete("/users/{id}", s.handleDeleteUser)

			r.Post("/spaces", s.handleCreateSpace)
			r.Get("/spaces/{id}", s.handleGetSpace)
			r.Put("/spaces/{id}", s.handleUpdateSpace)
			r.Delete("/spaces/{id}", s.handleDeleteSpace)
			r.Post("/spaces/{id}/book", s.handleBookSpace)

			r.Get("/booking/{id}/status", s.handleBookingStatus)
			r.Get("/bookings", s.handleListBookings)
			r.Get("/bookings/export", s.handleExportBookings)
		})
	})

	return r
}

// Handler returns the routed handler, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.deps.DB.Ping(ctx); err != nil {
		s.log.Warn().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) uploadsHandler() http.Handler {
	files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.deps.UploadsDir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "*")
		if name == "" || name[len(name)-1] == '/' {
			writeMessage(w, http.StatusNotFound, "File not found")
			return
		}
		files.ServeHTTP(w, r)
	})
}
