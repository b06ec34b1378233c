package router

import (
	"log"
	"time"

	"github.com/enrollhq/course-portal/config"
	"github.com/enrollhq/course-portal/database"
	"github.com/enrollhq/course-portal/handlers"
	admin_handlers "github.com/enrollhq/course-portal/handlers/admin"
	auth_handlers "github.com/enrollhq/course-portal/handlers/auth"
	course_handlers "github.com/enrollhq/course-portal/handlers/course"
	registration_handlers "github.com/enrollhq/course-portal/handlers/registration"
	"github.com/enrollhq/course-portal/services"
	"github.com/enrollhq/course-portal/utils/auth"
	"github.com/enrollhq/course-portal/utils/cache"
	"github.com/enrollhq/course-portal/utils/middleware"
	"github.com/gofiber/fiber/v2"
)

// Deps exposes the long-lived services the app layer needs after route
// setup (cron jobs, shutdown).
type Deps struct {
	Courses   *services.CourseService
	Feed      *services.ChangeFeedService
	Blacklist *auth.BlacklistService
	Cache     *cache.RedisCache
}

// SetupRoutes wires middleware, services, and handlers onto the app.
func SetupRoutes(app *fiber.App, store *database.GORMStore, cfg *config.EnviornmentVariable) (*Deps, error) {
	if cfg.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := cfg.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "course-portal-api"
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret:        cfg.JWT_SECRET,
		Expiry:        24 * time.Hour,
		RefreshExpiry: 7 * 24 * time.Hour,
		Issuer:        jwtIssuer,
	})

	db := store.DB()

	// Redis backs the capacity cache and brute force protection. The
	// API stays functional without it, just slower and less protected.
	redisURL := cfg.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Capacity caching and brute force protection disabled.", err)
		redisCache = nil
	}

	var bruteForceProtection *middleware.BruteForceProtection
	if redisCache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(redisCache)
	}

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Core services
	var capacityCache services.CapacityCache
	if redisCache != nil {
		capacityCache = redisCache
	}
	capacityService := services.NewCapacityService(db, capacityCache)
	feedService := services.NewChangeFeedService(db)
	registrationService := services.NewRegistrationService(db, cfg.MAX_ACTIVE_REGISTRATIONS, capacityService, feedService)
	enrollmentService := services.NewEnrollmentService(db, capacityService, feedService, cfg.ALLOW_ADMIN_OVERBOOK)
	completionService := services.NewCompletionService(db, capacityService, feedService)
	courseService := services.NewCourseService(db, capacityService, feedService)
	auditService := services.NewAuditService(db)
	blacklistService := auth.NewBlacklistService(db)

	// Handlers
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, bruteForceProtection)
	courseHandler := course_handlers.NewCourseHandler(courseService, capacityService)
	registrationHandler := registration_handlers.NewRegistrationHandler(registrationService, enrollmentService, completionService)
	adminHandler := admin_handlers.NewAdminHandler(db, registrationService, enrollmentService, completionService, feedService, auditService)

	allowedOrigins := cfg.ALLOWED_ORIGINS
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}
	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,
		RateLimitWindow:   1 * time.Minute,
	})

	// Health check endpoint (public)
	app.Get("/ping", handlers.HandleCheckHealth(store, redisCache))

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)

	// Login with brute force protection
	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}

	authGroup.Post("/refresh", authHandler.Refresh)

	// Protected auth routes
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	authGroup.Post("/change-password", authMiddleware.Required(), authHandler.ChangePassword)

	// Profile routes (protected)
	profileGroup := api.Group("/profile", authMiddleware.Required())
	profileGroup.Get("/", authHandler.GetProfile)
	profileGroup.Put("/", authHandler.UpdateProfile)

	// Course catalog
	courses := api.Group("/courses")
	courses.Get("/", courseHandler.List)                                               // Public: list active courses
	courses.Get("/:id", courseHandler.Get)                                             // Public: course with sessions
	courses.Post("/", authMiddleware.RequireAdmin(), courseHandler.Create)             // Admin only
	courses.Put("/:id", authMiddleware.RequireAdmin(), courseHandler.Update)           // Admin only
	courses.Post("/:id/sessions", authMiddleware.RequireAdmin(), courseHandler.CreateSession) // Admin only

	// Sessions
	sessions := api.Group("/sessions")
	sessions.Get("/:id/availability", courseHandler.Availability)                              // Public: live headcount
	sessions.Put("/:id", authMiddleware.RequireAdmin(), courseHandler.UpdateSession)           // Admin only
	sessions.Delete("/:id", authMiddleware.RequireAdmin(), courseHandler.ArchiveSession)       // Admin only: archive

	// Own registrations (protected)
	registrations := api.Group("/registrations", authMiddleware.Required())
	registrations.Get("/", registrationHandler.List)
	registrations.Post("/", registrationHandler.Create)
	registrations.Delete("/:course_id", registrationHandler.Delete)
	registrations.Put("/:course_id/priority", registrationHandler.Reorder)
	registrations.Put("/:course_id/session", registrationHandler.SelectSession)

	// Own completion history (protected)
	api.Get("/completions", authMiddleware.Required(), registrationHandler.Completions)

	// Admin console (admin only)
	adminGroup := api.Group("/admin", authMiddleware.RequireAdmin())
	adminGroup.Get("/users", adminHandler.ListUsers)
	adminGroup.Get("/users/:user_id/registrations", adminHandler.ListRegistrations)
	adminGroup.Post("/users/:user_id/registrations", adminHandler.CreateRegistration)
	adminGroup.Delete("/users/:user_id/registrations/:course_id", adminHandler.RemoveRegistration)
	adminGroup.Put("/users/:user_id/registrations/:course_id/invite", adminHandler.Invite)
	adminGroup.Put("/users/:user_id/registrations/:course_id/session", adminHandler.AssignSession)
	adminGroup.Post("/users/:user_id/registrations/:course_id/complete", adminHandler.Complete)
	adminGroup.Delete("/users/:user_id/registrations/:course_id/complete", adminHandler.Uncomplete)
	adminGroup.Get("/users/:user_id/completions", adminHandler.UserCompletions)
	adminGroup.Get("/changes", adminHandler.Changes)
	adminGroup.Get("/audit", adminHandler.AuditLog)

	return &Deps{
		Courses:   courseService,
		Feed:      feedService,
		Blacklist: blacklistService,
		Cache:     redisCache,
	}, nil
}
