package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-classroom-api/internal/config"
	"github.com/noah-isme/gema-classroom-api/internal/handler"
	"github.com/noah-isme/gema-classroom-api/internal/middleware"
	"github.com/noah-isme/gema-classroom-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	TaskHandler         *handler.TaskHandler
	SubmissionHandler   *handler.SubmissionHandler
	CommentHandler      *handler.CommentHandler
	NotificationHandler *handler.NotificationHandler
	GroupHandler        *handler.GroupHandler
	HealthProbes        []handler.HealthProbe
	JWTMiddleware       fiber.Handler
	// DisableMetrics skips the /metrics endpoint, mostly for tests.
	DisableMetrics bool
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))

	if !deps.DisableMetrics {
		app.Get("/metrics", observability.MetricsHandler())
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	classroom := app.Group("/api/v2/classroom", jwtMiddleware, middleware.RequireActor())
	writes := middleware.RateLimitWrites("classroom", cfg.WriteRateLimit, time.Minute)

	if deps.TaskHandler != nil {
		deps.TaskHandler.Register(classroom.Group("/tasks", writes))
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(classroom.Group("/submissions", writes))
	}
	if deps.CommentHandler != nil {
		deps.CommentHandler.Register(classroom.Group("/comments", writes))
	}
	if deps.GroupHandler != nil {
		deps.GroupHandler.Register(classroom.Group("/groups", writes))
	}
	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(classroom.Group("/notifications"))
	}
}
