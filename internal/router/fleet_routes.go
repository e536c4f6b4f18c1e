package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/handler"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/middleware"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
)

// RegisterFleet registers the order, vehicle and tracking endpoints
// under /api/v1.  All routes require a valid JWT; per-record visibility
// beyond the coarse role gates is enforced inside the handlers.
func RegisterFleet(e *echo.Echo, o *handler.OrderHandler, v *handler.VehicleHandler, t *handler.TrackingHandler, jwtSecret string) {
	g := e.Group("/api/v1", middleware.JWTAuth(jwtSecret))

	staff := middleware.RequireRole(model.RoleDispatcher, model.RoleAdmin)
	fieldStaff := middleware.RequireRole(model.RoleDriver, model.RoleDispatcher, model.RoleAdmin)

	// Orders
	g.POST("/orders", o.CreateOrder, middleware.RequireRole(model.RoleCustomer))
	g.GET("/orders", o.ListOrders)
	g.GET("/orders/:id", o.GetOrder)
	g.PATCH("/orders/:id/status", o.UpdateOrderStatus, fieldStaff)
	g.POST("/orders/assign-driver", o.AssignDriver, staff)

	// Vehicles
	g.POST("/vehicles", v.CreateVehicle, staff)
	g.GET("/vehicles", v.ListVehicles)
	g.GET("/vehicles/:id", v.GetVehicle)
	g.PATCH("/vehicles/:id", v.UpdateVehicle, staff)
	g.POST("/vehicles/assign-driver", v.AssignVehicleDriver, staff)

	// Tracking
	g.POST("/tracking", t.AddTrackingLog, fieldStaff)
	g.GET("/tracking/:delivery_id", t.ListTrackingLogs)
}
