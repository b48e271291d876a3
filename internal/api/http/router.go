package http

import (
	nethttp "net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/qrpass-service/internal/api/http/handlers"
	"github.com/spec-kit/qrpass-service/internal/auth"
	"github.com/spec-kit/qrpass-service/internal/config"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	QR             *handlers.QRHandler
	Auth           *handlers.AuthHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        nethttp.Handler
	VerifyMode     config.VerifyMode
}

// RegisterRoutes wires HTTP routes. Exactly one redemption route is exposed,
// chosen by the deployment's verify mode.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	app.Post("/auth/operator/login", cfg.Auth.Login)

	api := app.Group("/api")

	switch cfg.VerifyMode {
	case config.VerifyModeSelfContained:
		api.Post("/qr/verify", cfg.QR.Verify)
	default:
		api.Get("/qr/scan/:tokenId", cfg.QR.Scan)
	}

	operator := cfg.AuthMiddleware.Handle

	api.Post("/users", operator, cfg.Users.Create)
	api.Get("/users", operator, cfg.Users.List)
	api.Get("/users/:id", operator, cfg.Users.Get)

	api.Post("/qr/generate", operator, cfg.QR.Generate)
	api.Get("/qr/download/:tokenId", operator, cfg.QR.Download)
	api.Post("/qr/:tokenId/revoke", operator, cfg.QR.Revoke)
	api.Get("/qr/:tokenId", operator, cfg.QR.Details)
}
