package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"helixdesk/internal/config"
	"helixdesk/internal/database"
	"helixdesk/internal/event"
	"helixdesk/internal/handler"
	"helixdesk/internal/limiter"
	"helixdesk/internal/mailer"
	"helixdesk/internal/metrics"
	"helixdesk/internal/middleware"
	"helixdesk/internal/oauth"
	"helixdesk/internal/repository"
	"helixdesk/internal/router"
	"helixdesk/internal/service"
	"helixdesk/internal/storage"
	"helixdesk/internal/websocket"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	store, err := storage.New(storage.Options{
		Dir:          cfg.UploadsDir,
		MaxSize:      cfg.MaxUploadSize,
		AllowedTypes: cfg.AllowedMIMETypes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize attachment storage: %w", err)
	}

	slog.Info("applying database migrations")
	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	db, err := database.New(ctx, database.Options{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a := &App{cleanupFuncs: []func(){db.Close}}
	fail := func(err error) (*App, error) {
		a.cleanup()
		return nil, err
	}

	userRepo := repository.NewUserRepository(db.Pool)
	ticketRepo := repository.NewTicketRepository(db.Pool)
	auditRepo := repository.NewAuditRepository(db.Pool)

	m := metrics.New()

	tokens, err := service.NewTokenService(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize token service: %w", err))
	}

	var guard service.AttemptGuard
	if cfg.RedisAddr != "" {
		rdb, err := limiter.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return fail(fmt.Errorf("failed to connect to redis: %w", err))
		}
		a.cleanupFuncs = append(a.cleanupFuncs, func() { _ = rdb.Close() })
		guard = limiter.NewOTPGuard(rdb, limiter.Config{
			MaxAttempts: cfg.OTPMaxAttempts,
			Window:      cfg.OTPLockoutWindow,
		})
	} else {
		slog.Warn("REDIS_ADDR not set; OTP attempts are not throttled")
	}

	var mail service.Mailer
	if cfg.MailEnabled() {
		smtp, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.EmailUser,
			Password: cfg.EmailPass,
			FromName: cfg.MailFromName,
			Timeout:  cfg.MailTimeout,
		})
		if err != nil {
			return fail(fmt.Errorf("failed to initialize mailer: %w", err))
		}
		mail = smtp
	} else {
		slog.Warn("SMTP_HOST not set; verification codes are written to the log")
		mail = mailer.NewLogMailer(slog.Default())
	}

	var provider oauth.Provider
	if cfg.GoogleClientID != "" {
		google, err := oauth.NewGoogleProvider(ctx, oauth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleCallbackURL,
			Timeout:      cfg.OAuthTimeout,
		})
		if err != nil {
			return fail(fmt.Errorf("failed to initialize google sign-in: %w", err))
		}
		provider = google
	} else {
		slog.Warn("GOOGLE_CLIENT_ID not set; google sign-in is disabled")
	}

	bus := event.NewBus()
	hub := websocket.NewHub(bus, m)
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)
	a.cleanupFuncs = append(a.cleanupFuncs, stopHub)

	auditService := service.NewAuditService(auditRepo, m)
	otpService := service.NewOTPService(userRepo, mail, guard, auditService, tokens, m, service.OTPConfig{
		TTL:         cfg.OTPTTL,
		MailTimeout: cfg.MailTimeout,
	})
	identityService := service.NewIdentityService(userRepo, otpService, auditService)
	sessionService := service.NewSessionService(userRepo, tokens, auditService, m)
	ticketService := service.NewTicketService(ticketRepo, store, auditService, bus, m)
	adminService := service.NewAdminService(ticketRepo, userRepo)

	authMiddleware := middleware.NewAuthMiddleware(tokens)
	secure := !cfg.IsDevelopment()

	appRouter := router.New(cfg, m, authMiddleware, router.Handlers{
		Auth: handler.NewAuthHandler(identityService, otpService, sessionService, tokens, provider, handler.AuthConfig{
			FrontendURL:  cfg.FrontendURL,
			SecureCookie: secure,
		}),
		Users:   handler.NewUserHandler(identityService),
		Admin:   handler.NewAdminHandler(adminService, auditService),
		Tickets: handler.NewTicketHandler(ticketService, cfg.MaxUploadSize),
		Uploads: handler.NewUploadHandler(store),
		WS:      handler.NewWSHandler(hub, websocket.NewUpgrader(cfg.CORSOrigins)),
		Health:  handler.NewHealthHandler(db),
	})

	a.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      appRouter,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	slog.Info("application ready",
		"env", cfg.AppEnv,
		"uploads_dir", store.Dir(),
		"redis", cfg.RedisAddr != "",
		"smtp", cfg.MailEnabled(),
		"google", provider != nil,
	)
	return a, nil
}

func (a *App) cleanup() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serveErr:
		a.cleanup()
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		slog.Info("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.cleanup()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
