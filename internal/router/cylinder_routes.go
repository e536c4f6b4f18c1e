package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/handler"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/middleware"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
)

// RegisterCylinders registers the cylinder endpoints under
// /api/v1/cylinders.  Every route requires a valid JWT; registration,
// assignment, status updates, tamper reports and inspections are
// further restricted to dispatchers and admins.  The limiter sits on
// the scan endpoint, the hottest write path; the cache covers the
// read-only browse and history routes.
func RegisterCylinders(e *echo.Echo, h *handler.CylinderHandler, jwtSecret string, limiter, cache echo.MiddlewareFunc) {
	g := e.Group("/api/v1/cylinders", middleware.JWTAuth(jwtSecret))

	g.GET("", h.ListCylinders, cache)
	g.GET("/:id", h.GetCylinder, cache)
	g.GET("/:id/history", h.GetCylinderHistory, cache)
	g.POST("/scan", h.ScanCylinder, limiter)

	staff := middleware.RequireRole(model.RoleDispatcher, model.RoleAdmin)
	g.POST("", h.RegisterCylinder, staff)
	g.POST("/assign", h.AssignCylinder, staff)
	g.PATCH("/:id/status", h.UpdateCylinderStatus, staff)
	g.POST("/:id/tamper", h.MarkTampered, staff)
	g.POST("/:id/inspection", h.RecordInspection, staff)
}
