package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/repository"
)

type assignCylinderReq struct {
	CylinderID uint64  `json:"cylinder_id"`
	OrderID    *uint64 `json:"order_id"`
	CustomerID *uint64 `json:"customer_id"`
}

// AssignCylinder handles POST /api/v1/cylinders/assign (dispatcher and
// admin only).  Assigning to an order binds the cylinder to the order
// and its customer and forces IN_DELIVERY; assigning to a customer
// directly binds the customer and clears any order link.  Retired and
// stolen cylinders cannot be assigned.  The history entry records the
// status the cylinder had before the assignment.
func (h *CylinderHandler) AssignCylinder(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req assignCylinderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.CylinderID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cylinder_id required"})
	}
	if req.OrderID == nil && req.CustomerID == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_id or customer_id required"})
	}

	ctx := c.Request().Context()
	now := time.Now().UTC()

	tx, err := h.Cylinders.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	cyl, err := h.Cylinders.GetByIDForUpdateTx(ctx, tx, req.CylinderID)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "cylinder not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if cyl.Status == model.CylinderRetired || cyl.Status == model.CylinderStolen {
		return c.JSON(http.StatusConflict, echo.Map{"error": "cylinder cannot be assigned in status " + cyl.Status})
	}

	hist := &model.CylinderHistory{
		CylinderID:     cyl.ID,
		PreviousStatus: cyl.Status,
		PerformedByID:  &actorID,
		CreatedAt:      now,
	}

	if req.OrderID != nil {
		ord, err := h.Orders.GetByID(ctx, *req.OrderID)
		if err != nil {
			if err == repository.ErrNotFound {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		if err := h.Cylinders.AssignTx(ctx, tx, cyl.ID, ord.ID, ord.CustomerID); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to assign cylinder"})
		}
		hist.EventType = model.EventDelivered
		hist.NewStatus = model.CylinderInDelivery
		hist.OrderID = &ord.ID
		hist.CustomerID = &ord.CustomerID
		hist.Location = ord.DeliveryAddress
		hist.Notes = "Cylinder assigned to order"
	} else {
		cust, err := h.Users.GetActiveByRole(ctx, *req.CustomerID, model.RoleCustomer)
		if err != nil {
			if err == repository.ErrNotFound {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "customer not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		if err := h.Cylinders.AssignCustomerTx(ctx, tx, cyl.ID, cust.ID); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to assign cylinder"})
		}
		hist.EventType = model.EventCustomerAssigned
		hist.NewStatus = cyl.Status
		hist.CustomerID = &cust.ID
		hist.Notes = "Cylinder assigned to customer " + cust.Username
	}

	if err := h.History.InsertTx(ctx, tx, hist); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record history"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	updated, err := h.Cylinders.GetByID(ctx, cyl.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"cylinder": toCylinderView(&updated)})
}
