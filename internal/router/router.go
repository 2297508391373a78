package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"helixdesk/internal/config"
	"helixdesk/internal/handler"
	"helixdesk/internal/metrics"
	"helixdesk/internal/middleware"
	"helixdesk/internal/model"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	Users   *handler.UserHandler
	Admin   *handler.AdminHandler
	Tickets *handler.TicketHandler
	Uploads *handler.UploadHandler
	WS      *handler.WSHandler
	Health  *handler.HealthHandler
}

func New(
	cfg *config.Config,
	m *metrics.Metrics,
	authMiddleware *middleware.AuthMiddleware,
	h Handlers,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging(m))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Check)
	r.Handle("/metrics", m.Handler())

	staff := authMiddleware.RequireRoles(model.RoleAgent, model.RoleAdmin)
	admin := authMiddleware.RequireRoles(model.RoleAdmin)

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Get("/google", h.Auth.GoogleLogin)
			auth.Get("/google/callback", h.Auth.GoogleCallback)
			auth.Post("/register", h.Auth.Register)
			auth.Post("/verify-otp", h.Auth.VerifyOTP)
			auth.Post("/refresh-token", h.Auth.RefreshToken)
			auth.Post("/logout", h.Auth.Logout)
			auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)

			auth.Group(func(adminOnly chi.Router) {
				adminOnly.Use(authMiddleware.RequireAuth, admin)

				adminOnly.Get("/users", h.Users.List)
				adminOnly.Patch("/users/{id}/role", h.Users.UpdateRole)
				adminOnly.Post("/users/{id}/revoke-sessions", h.Users.RevokeSessions)
				adminOnly.Get("/admin/stats", h.Admin.Stats)
				adminOnly.Get("/admin/logs", h.Admin.Logs)
			})
		})

		api.Group(func(protected chi.Router) {
			protected.Use(authMiddleware.RequireAuth)

			protected.Route("/tickets", func(tickets chi.Router) {
				tickets.Post("/", h.Tickets.Create)
				tickets.Get("/my-tickets", h.Tickets.MyTickets)
				tickets.With(staff).Get("/agent-queue", h.Tickets.Queue)
				tickets.Get("/{id}", h.Tickets.Get)
				tickets.Post("/{id}/messages", h.Tickets.AddMessage)
				tickets.With(staff).Patch("/{id}/status", h.Tickets.UpdateStatus)
			})

			protected.Get("/ws", h.WS.Serve)
		})
	})

	r.With(
		authMiddleware.RequireAuth,
		middleware.TransferTimeout(cfg.TransferTimeout, cfg.TransferIdle),
	).Get("/uploads/*", h.Uploads.Download)

	return r
}
