package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/renthive/booking-engine/internal/handler"    // import the handlers that implement the trigger surface
	"github.com/renthive/booking-engine/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Used by load balancers and monitoring systems to verify the service
	// is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAdmin registers the operational trigger endpoints. All of them
// require a valid access token carrying the ADMIN role: these endpoints
// run sweeps against production data and must not be reachable by
// customers.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("ADMIN"))
	// Trigger one lifecycle sweep (auto-start, auto-complete, reminders).
	g.POST("/lifecycle/run", h.RunLifecycle)
	// Trigger one expiration sweep.
	g.POST("/expiration/run", h.RunExpiration)
	// Stamp a booking's expiration clock after owner confirmation.
	g.POST("/bookings/:id/expiry", h.ScheduleExpiry)
}
