package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/veridata/consent-server-go/internal/config"
	"github.com/veridata/consent-server-go/internal/database"
	"github.com/veridata/consent-server-go/internal/handler"
	"github.com/veridata/consent-server-go/internal/httputil"
	"github.com/veridata/consent-server-go/internal/middleware"
	"github.com/veridata/consent-server-go/internal/pkce"
	"github.com/veridata/consent-server-go/internal/redis"
	"github.com/veridata/consent-server-go/internal/repository"
	"github.com/veridata/consent-server-go/internal/service"
	"github.com/veridata/consent-server-go/internal/solana"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	isProduction := os.Getenv("ENV") == "production"
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		log.Fatal().Err(err).Msg("database ping failed")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	connRepo := repository.NewConnectionRepository(db)
	categoryRepo := repository.NewDataCategoryRepository(db)
	notarizationRepo := repository.NewNotarizationRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	// Services
	pkceStore := pkce.NewRedisStore(redisClient.Client)
	notary := solana.NewNotary(cfg.SolanaRPCURL, cfg.SolanaNotaryPrivateKey, cfg.LedgerTimeout())
	rateLimiter := service.NewRateLimiter(redisClient.Client)

	sessionService := service.NewSessionService(userRepo, cfg.SessionSecret)
	oauthService := service.NewOAuthService(cfg, pkceStore)
	connectionService := service.NewConnectionService(
		connRepo, activityRepo, oauthService, service.DefaultProviderTable, cfg.EncryptionKey)
	permissionService := service.NewPermissionService(
		service.NewTxRunner(db), categoryRepo, activityRepo, notarizationRepo, notary, cfg.LedgerTimeout())

	// Handlers
	secureCookies := strings.HasPrefix(cfg.AppBaseURL, "https") || isProduction
	authHandler := handler.NewAuthHandler(sessionService, secureCookies)
	oauthHandler := handler.NewOAuthHandler(oauthService, sessionService, connectionService, cfg)
	connectionHandler := handler.NewConnectionHandler(connectionService)
	permissionHandler := handler.NewPermissionHandler(permissionService, notary.PublicKey())

	sessionMW := middleware.NewSessionMiddleware(sessionService)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(middleware.RequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.BodyLimit(config.MaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.IPRateLimit(rateLimiter, "auth",
				config.AuthRateLimitPerMin, config.AuthRateLimitWindow))

			r.Post("/email", authHandler.LoginEmail)
			r.Post("/wallet", authHandler.LoginWallet)
			r.Get("/{provider}/url", oauthHandler.AuthURL)
			r.Get("/{provider}/callback", oauthHandler.Callback)

			r.Group(func(r chi.Router) {
				r.Use(sessionMW.Handler)
				r.Get("/session", authHandler.Session)
				r.Post("/logout", authHandler.Logout)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(sessionMW.Handler)

			r.Get("/connections", connectionHandler.List)
			r.Post("/connections", connectionHandler.Connect)
			r.Delete("/connections", connectionHandler.Disconnect)
			r.Get("/activity", connectionHandler.Activity)

			r.Get("/permissions", permissionHandler.List)
			r.Patch("/permissions/{id}", permissionHandler.UpdateLevel)
			r.Post("/revoke-all", permissionHandler.RevokeAll)
			r.Get("/notary", permissionHandler.Notarizations)
		})
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Bool("notary", notary.Enabled()).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
