package http

import (
	"net/http"

	"socialnet/infrastructure/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handlers struct {
	Auth        *AuthHandler
	Post        *PostHandler
	Health      *HealthHandler
	Feed        http.Handler
	Metrics     http.Handler
	Session     *AuthMiddleware
	AuthLimiter *RateLimiter
}

// NewRouter returns a router with the common middleware stack. RemoteAddr is left as the
// peer address: forwarded headers are client controlled and would let callers pick their own
// rate limit bucket.
func NewRouter(corsOrigins []string, metrics *telemetry.Metrics) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(CORS(corsOrigins))
	return r
}

func MapHttpRoutes(r chi.Router, h Handlers) {
	r.Get("/health", h.Health.Health)
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public)
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if h.AuthLimiter != nil {
					r.Use(h.AuthLimiter.Limit)
				}
				r.Post("/register", h.Auth.Register)
				r.Post("/login", h.Auth.Login)
			})
			r.Post("/refresh", h.Auth.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(h.Session.Authenticate)
				r.Post("/logout", h.Auth.Logout)
				r.Get("/me", h.Auth.Me)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.Session.Authenticate)

			r.Route("/posts", func(r chi.Router) {
				r.Get("/", h.Post.ListPosts)
				r.Post("/", h.Post.CreatePost)
				r.Get("/{postId}", h.Post.GetPost)
				r.Post("/{postId}/comment", h.Post.AddComment)
				r.Post("/{postId}/like", h.Post.ToggleLike)
			})

			if h.Feed != nil {
				r.Handle("/ws/feed", h.Feed)
			}
		})
	})
}
