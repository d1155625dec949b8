// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "bizdir/docs" // swagger docs
	"bizdir/internal/cache"
	"bizdir/internal/config"
	"bizdir/internal/featureflags"
	"bizdir/internal/middleware"
	"bizdir/internal/models"
	"bizdir/internal/notifications"
	"bizdir/internal/rbac"
	"bizdir/internal/repository"
	"bizdir/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	rateLimits     *middleware.Limiter
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	store        repository.Store
	userRepo     repository.UserRepository
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	featureFlags *featureflags.Manager

	approvalService    *service.ApprovalService
	salespersonService *service.SalespersonService
	listingService     *service.ListingService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if db == nil {
		return nil, errors.New("database is required")
	}

	store := repository.NewStore(db)
	flags := featureflags.NewManager(cfg.FeatureFlags)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		rateLimits:     middleware.NewLimiter(redisClient, cfg.Env, cfg.RateLimitForce),
		promMiddleware: middleware.InitMetrics("bizdir-api"),
		store:          store,
		userRepo:       store.Users(),
		featureFlags:   flags,
	}

	// Notifications need Redis pub/sub; without it decisions are still
	// recorded, just not pushed.
	var publisher service.EventPublisher
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub()
		publisher = server.notifier
	}

	server.approvalService = service.NewApprovalService(store, service.ApprovalConfig{
		ReapplyDays:     cfg.ApprovalReapplyDays,
		PendingStatsTTL: time.Duration(cfg.PendingStatsTTLSeconds) * time.Second,
		Flags:           flags,
		Publisher:       publisher,
	})
	server.salespersonService = service.NewSalespersonService(store, flags, publisher)
	server.listingService = service.NewListingService(store, server.approvalService, flags)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Propagates request and user ids into the request context for logging.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Business Directory Metrics Dashboard",
	}))

	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/signup", s.rateLimits.Handler(middleware.SignupRule), s.Signup)
	auth.Post("/login", s.rateLimits.Handler(middleware.LoginRule), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Public directory
	directory := api.Group("/directory")
	directory.Get("/companies", s.GetDirectoryCompanies)
	directory.Get("/salespeople", s.GetDirectorySalespeople)

	// Registered ahead of the protected group, whose middleware would
	// otherwise consume the single-use ticket a second time.
	api.Get("/ws", s.AuthRequired(), s.WebsocketHandler())

	protected := api.Group("", s.AuthRequired())

	protected.Get("/me", s.GetMe)
	protected.Put("/me", s.UpdateMe)

	protected.Post("/ws/ticket", s.IssueWSTicket)

	salesperson := protected.Group("/salesperson")
	salesperson.Post("/apply", s.rateLimits.Handler(middleware.ApplyRule), s.ApplySalesperson)
	salesperson.Get("/status", s.GetSalespersonStatus)
	salesperson.Get("/profile", s.GetMyProfile)
	salesperson.Post("/profile", s.CreateProfile)
	salesperson.Put("/profile", s.UpdateMyProfile)
	salesperson.Delete("/profile", s.DeleteMyProfile)

	companies := protected.Group("/companies")
	companies.Get("/", s.listMine(models.ApprovableCompany))
	companies.Post("/", s.CreateCompany)
	companies.Get("/:id", s.getListing(models.ApprovableCompany))
	companies.Put("/:id", s.updateListing(models.ApprovableCompany))
	companies.Delete("/:id", s.deleteListing(models.ApprovableCompany))

	certifications := protected.Group("/certifications")
	certifications.Get("/", s.listMine(models.ApprovableCertification))
	certifications.Post("/", s.CreateCertification)
	certifications.Get("/:id", s.getListing(models.ApprovableCertification))
	certifications.Put("/:id", s.updateListing(models.ApprovableCertification))
	certifications.Delete("/:id", s.deleteListing(models.ApprovableCertification))

	experiences := protected.Group("/experiences")
	experiences.Get("/", s.listMine(models.ApprovableExperience))
	experiences.Post("/", s.CreateExperience)
	experiences.Get("/:id", s.getListing(models.ApprovableExperience))
	experiences.Put("/:id", s.updateListing(models.ApprovableExperience))
	experiences.Delete("/:id", s.deleteListing(models.ApprovableExperience))

	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	approvals := admin.Group("/approvals")
	// Static segments before /:kind/:id.
	approvals.Get("/pending", s.GetPendingApprovals)
	approvals.Get("/stats", s.GetApprovalStats)
	approvals.Post("/:kind/:id/approve", s.rateLimits.Handler(middleware.DecisionRule), s.ApproveEntry)
	approvals.Post("/:kind/:id/reject", s.rateLimits.Handler(middleware.DecisionRule), s.RejectEntry)
	approvals.Get("/:kind/:id/history", s.GetApprovalHistory)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects callers without the moderate
// capability. Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals("userID").(uint)

		user, err := s.userRepo.GetByID(c.UserContext(), userID)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Account no longer exists"))
			}
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}

		actor := rbac.ActorFromUser(user)
		if !rbac.Authorize(actor, rbac.CapabilityModerate) {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin privileges required"))
		}

		c.Locals("actor", actor)
		return c.Next()
	}
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws") && c.Path() != "/api/ws/ticket"

		// WebSocket clients cannot set headers, so they present a short-lived
		// single-use ticket instead.
		if isWSPath {
			ticket := c.Query("ticket")
			if ticket == "" || s.redis == nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("WebSocket ticket required"))
			}
			userIDStr, err := s.redis.GetDel(c.UserContext(), cache.WSTicketKey(ticket)).Result()
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			userID, err := strconv.ParseUint(userIDStr, 10, 32)
			if err != nil || userID == 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			s.setUser(c, uint(userID))
			return c.Next()
		}

		tokenString, ok := middleware.BearerToken(c.Get("Authorization"))
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := middleware.ParseToken(s.config.JWTSecret, tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		if claims.JTI != "" && s.redis != nil {
			revoked, err := s.redis.Exists(c.UserContext(), middleware.BlacklistKey(claims.JTI)).Result()
			if err == nil && revoked > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		c.Locals("claims", claims)
		s.setUser(c, claims.UserID)
		return c.Next()
	}
}

func (s *Server) setUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
	c.SetUserContext(ctx)
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := fiber.New(fiber.Config{
		AppName: "Business Directory API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	if s.notifier != nil && s.hub != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start hub wiring",
					slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
			}
		}()
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub", slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
