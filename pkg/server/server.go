// Package server exposes the proxy's HTTP surface: scholar detail, avatar,
// and email-image endpoints plus cache administration, health, and metrics.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ihainan/scholar-data-proxy/pkg/cache"
	"github.com/ihainan/scholar-data-proxy/pkg/logging"
	"github.com/ihainan/scholar-data-proxy/pkg/prefetch"
	"github.com/ihainan/scholar-data-proxy/pkg/resolver"
)

// Server wires the resolvers into the HTTP surface.
type Server struct {
	store   *cache.Store
	details *resolver.Detail
	avatars *resolver.Avatar
	emails  *resolver.Email
	warmer  *prefetch.Warmer
	origins []string
	logger  zerolog.Logger
}

// New creates the server.
func New(store *cache.Store, details *resolver.Detail, avatars *resolver.Avatar,
	emails *resolver.Email, warmer *prefetch.Warmer, corsOrigins []string) *Server {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	return &Server{
		store:   store,
		details: details,
		avatars: avatars,
		emails:  emails,
		warmer:  warmer,
		origins: corsOrigins,
		logger:  logging.NewLogger("server"),
	}
}

// Handler builds the configured router.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(s.requestLogger)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Signature", "X-Timestamp"},
		MaxAge:         300,
	}))

	router.Get("/health", s.health)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/aminer", func(r chi.Router) {
		r.Get("/scholar/detail", s.scholarDetail)
		r.Get("/scholar/avatar", s.scholarAvatar)
		r.Get("/scholar/email", s.scholarEmail)
		r.Post("/cache/clear", s.cacheClear)
		r.Post("/cache/warm", s.cacheWarm)
	})

	return router
}
