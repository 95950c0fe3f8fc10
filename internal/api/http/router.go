package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketflow/internal/api/http/handlers"
	"github.com/spec-kit/ticketflow/internal/auth"
	"github.com/spec-kit/ticketflow/internal/observability"
	"github.com/spec-kit/ticketflow/internal/policy"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Files          *handlers.FilesHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	authenticated := []fiber.Handler{cfg.AuthMiddleware, auth.RequireAuthenticated()}
	staffOnly := auth.RequireStaff(policy.ActionTriage)

	tickets := api.Group("/tickets", authenticated...)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/my-tickets", cfg.Tickets.ListMine)
	tickets.Get("/assigned", staffOnly, cfg.Tickets.ListAssigned)
	tickets.Get("/all", staffOnly, cfg.Tickets.ListAll)
	tickets.Get("/search", cfg.Tickets.Search)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id/status", auth.RequireStaff(policy.ActionChangeStatus), cfg.Tickets.UpdateStatus)
	tickets.Patch("/:id/assign", auth.RequireStaff(policy.ActionAssign), cfg.Tickets.Assign)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Get("/:id/comments", cfg.Tickets.ListComments)
	tickets.Post("/:id/rate", cfg.Tickets.Rate)

	files := api.Group("/files", authenticated...)
	files.Post("/upload", cfg.Files.Upload)
	files.Get("/ticket/:ticketId", cfg.Files.ListByTicket)
	files.Get("/download/:attachmentId", cfg.Files.Download)

	users := api.Group("/users", authenticated...)
	users.Get("/support-agents", staffOnly, cfg.Users.SupportAgents)

	admin := api.Group("/admin", append(authenticated, auth.RequireAdmin(policy.ActionAdministerUser))...)
	admin.Get("/users", cfg.Admin.ListUsers)
	admin.Get("/users/:id", cfg.Admin.GetUser)
	admin.Post("/users", cfg.Admin.CreateUser)
	admin.Patch("/users/:id/role", cfg.Admin.UpdateRole)
	admin.Patch("/users/:id/toggle-status", cfg.Admin.ToggleStatus)
}

// AppOptions configures NewApp.
type AppOptions struct {
	BodyLimit int
	Timeout   time.Duration
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// NewApp builds the fiber application with middlewares and routes. Request
// values are copied out of fasthttp's buffers because services keep them
// past the request (stored ids, statuses, queued events).
func NewApp(opts AppOptions, routes RouteConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             opts.BodyLimit,
		Immutable:             true,
	})
	RegisterMiddlewares(app, opts.Logger, opts.Metrics, opts.Timeout)
	RegisterRoutes(app, routes)
	return app
}
