package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/repository"
)

type assignDriverReq struct {
	OrderID   uint64  `json:"order_id"`
	DriverID  *uint64 `json:"driver_id"`
	VehicleID *uint64 `json:"vehicle_id"`
	Notes     string  `json:"notes"`
}

// AssignDriver handles POST /api/v1/orders/assign-driver (dispatcher
// and admin only).  The dispatcher may name a driver (and optionally a
// vehicle); otherwise the system picks the longest-assigned active
// driver holding an ACTIVE vehicle who is not already out on a
// delivery.  The delivery row and the order's ASSIGNED status commit
// together.
func (h *OrderHandler) AssignDriver(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req assignDriverReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.OrderID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_id required"})
	}

	ctx := c.Request().Context()
	now := time.Now().UTC()

	var driverID, vehicleID uint64
	if req.DriverID != nil {
		driverID = *req.DriverID
		if _, err := h.Users.GetActiveByRole(ctx, driverID, model.RoleDriver); err != nil {
			if err == repository.ErrNotFound {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "driver not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		busy, err := h.Deliveries.HasOpenDelivery(ctx, driverID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		if busy {
			return c.JSON(http.StatusConflict, echo.Map{"error": "driver already has an open delivery"})
		}
		if req.VehicleID != nil {
			vehicleID = *req.VehicleID
			if _, err := h.Vehicles.GetActiveByID(ctx, vehicleID); err != nil {
				if err == repository.ErrNotFound {
					return c.JSON(http.StatusNotFound, echo.Map{"error": "active vehicle not found"})
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
			}
		} else {
			a, err := h.Vehicles.OpenAssignmentForDriver(ctx, driverID)
			if err != nil {
				if err == repository.ErrNotFound {
					return c.JSON(http.StatusConflict, echo.Map{"error": "driver has no assigned vehicle"})
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
			}
			vehicleID = a.VehicleID
		}
	} else {
		driverID, vehicleID, err = h.Vehicles.FindAvailableDriver(ctx)
		if err != nil {
			if err == repository.ErrNotFound {
				return c.JSON(http.StatusConflict, echo.Map{"error": "no available driver"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
	}

	tx, err := h.Orders.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	o, err := h.Orders.GetByIDForUpdateTx(ctx, tx, req.OrderID)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if o.Status != model.OrderPending {
		return c.JSON(http.StatusConflict, echo.Map{"error": "order is not pending"})
	}

	d := &model.Delivery{
		OrderID:       o.ID,
		DriverID:      driverID,
		VehicleID:     vehicleID,
		AssignedByID:  actorID,
		Status:        model.DeliveryAssigned,
		DeliveryNotes: strings.TrimSpace(req.Notes),
	}
	if err := h.Deliveries.CreateTx(ctx, tx, d); err != nil {
		if err == repository.ErrConflict {
			return c.JSON(http.StatusConflict, echo.Map{"error": "order already has a delivery"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create delivery"})
	}
	if err := h.Orders.UpdateStatusTx(ctx, tx, o.ID, model.OrderAssigned); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update order"})
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	d.AssignedAt = now
	o.Status = model.OrderAssigned
	return c.JSON(http.StatusCreated, echo.Map{
		"order":    toOrderView(&o),
		"delivery": toDeliveryView(d),
	})
}
