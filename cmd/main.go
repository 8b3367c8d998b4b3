package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"authserv/internal/caching"
	"authserv/internal/config"
	"authserv/internal/handlers"
	"authserv/internal/jobs"
	"authserv/internal/middleware"
	"authserv/internal/oauth2"
	"authserv/internal/repositories"
	"authserv/internal/services"
	"authserv/pkg/database"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	pool, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Create repositories
	userRepo := repositories.NewUserRepo(pool)
	clientRepo := repositories.NewClientRepo(pool)
	codeRepo := repositories.NewCodeRepo(pool)
	tokenRepo := repositories.NewTokenRepo(pool)

	// Create cache service
	cacheSvc := caching.NewRedisCacheService(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	// Create services
	tokenSvc := services.NewTokenService(tokenRepo, userRepo, &cfg.OAuth)
	clientSvc := services.NewClientService(clientRepo)
	sessionSvc := services.NewSessionService(userRepo, cacheSvc, cfg.SessionTTL)

	engine := oauth2.NewEngine(clientRepo, codeRepo, tokenRepo, userRepo, tokenSvc, &cfg.OAuth)
	consentSvc := services.NewConsentService(engine, sessionSvc)

	// Create handlers
	oauthHandlers := handlers.NewOAuthHandlers(engine, consentSvc, tokenSvc)
	clientHandlers := handlers.NewClientHandlers(clientSvc, sessionSvc)
	sessionHandlers := handlers.NewSessionHandlers(sessionSvc, cfg.SessionTTL)
	healthHandlers := handlers.NewHealthHandlers(pool)

	// Background cleanup jobs
	cleanup, err := jobs.NewCleanupScheduler(codeRepo, tokenRepo, cfg.OAuth.RefreshGraceMultiplier)
	if err != nil {
		log.Fatalf("Failed to create cleanup scheduler: %v", err)
	}
	cleanup.Start()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	// Health endpoints (no auth required)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)

	// Session endpoints
	e.POST("/login", sessionHandlers.Login,
		middleware.RateLimit(cacheSvc, "login", 30, time.Minute))
	e.GET("/logout", sessionHandlers.Logout)

	// Client registration (session-authenticated)
	e.POST("/clients", clientHandlers.Register)
	e.GET("/clients", clientHandlers.List)

	// OAuth2 / OIDC protocol endpoints
	oauth := e.Group("/oauth")
	oauth.GET("/authorize", oauthHandlers.AuthorizeGet)
	oauth.POST("/authorize", oauthHandlers.AuthorizePost)
	oauth.POST("/token", oauthHandlers.Token,
		middleware.RateLimit(cacheSvc, "token", 60, time.Minute))
	oauth.POST("/revoke", oauthHandlers.Revoke)
	oauth.GET("/userinfo", oauthHandlers.UserInfo,
		middleware.RequireOAuth(tokenSvc, "profile"))
	oauth.GET("/email", oauthHandlers.Email,
		middleware.RequireOAuth(tokenSvc, "profile", "email"))

	// Graceful shutdown for the scheduler
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		if err := cleanup.Stop(); err != nil {
			log.Printf("Scheduler shutdown error: %v", err)
		}
		_ = e.Close()
	}()

	log.Printf("authserv v%s starting on port %d (issuer %s)", version, cfg.Port, cfg.OAuth.Signing.Issuer)
	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", cfg.Port)))
}
