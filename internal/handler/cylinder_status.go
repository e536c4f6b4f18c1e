package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/queue"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/repository"
	alert_publisher "github.com/iliyamo/lpg-cylinder-tracking/internal/service"
)

type updateStatusReq struct {
	Status   string `json:"status"`
	Notes    string `json:"notes"`
	Location string `json:"location"`
}

// UpdateCylinderStatus handles PATCH /api/v1/cylinders/:id/status
// (dispatcher and admin only).  The edge must exist in the status
// machine; anything else is rejected with 409 and the row untouched.
// A move into FILLED also counts a refill.
func (h *CylinderHandler) UpdateCylinderStatus(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req updateStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	newStatus := strings.ToUpper(strings.TrimSpace(req.Status))
	if !model.IsCylinderStatus(newStatus) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
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

	cyl, err := h.Cylinders.GetByIDForUpdateTx(ctx, tx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "cylinder not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !model.CanTransitionCylinder(cyl.Status, newStatus) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error": fmt.Sprintf("cannot transition from %s to %s", cyl.Status, newStatus),
		})
	}

	location := strings.TrimSpace(req.Location)
	if err := h.Cylinders.UpdateStatusTx(ctx, tx, id, newStatus, location); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update cylinder"})
	}

	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		notes = fmt.Sprintf("Status changed from %s to %s", cyl.Status, newStatus)
	}
	hist := &model.CylinderHistory{
		CylinderID:     cyl.ID,
		EventType:      model.EventStatusChange,
		PreviousStatus: cyl.Status,
		NewStatus:      newStatus,
		CustomerID:     cyl.CurrentCustomerID,
		OrderID:        cyl.CurrentOrderID,
		PerformedByID:  &actorID,
		Location:       location,
		Notes:          notes,
		CreatedAt:      now,
	}
	if err := h.History.InsertTx(ctx, tx, hist); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record history"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	updated, err := h.Cylinders.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"cylinder": toCylinderView(&updated)})
}

type tamperReq struct {
	Notes    string `json:"notes"`
	Location string `json:"location"`
}

// MarkTampered handles POST /api/v1/cylinders/:id/tamper (dispatcher
// and admin only).  The flag is sticky: reporting again appends notes
// but nothing ever clears it.  Every report raises a security alert.
func (h *CylinderHandler) MarkTampered(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req tamperReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "notes required"})
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

	cyl, err := h.Cylinders.GetByIDForUpdateTx(ctx, tx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "cylinder not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	if err := h.Cylinders.MarkTamperedTx(ctx, tx, id, notes); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update cylinder"})
	}
	hist := &model.CylinderHistory{
		CylinderID:    cyl.ID,
		EventType:     model.EventTamperDetected,
		CustomerID:    cyl.CurrentCustomerID,
		OrderID:       cyl.CurrentOrderID,
		PerformedByID: &actorID,
		Location:      strings.TrimSpace(req.Location),
		Notes:         notes,
		CreatedAt:     now,
	}
	if err := h.History.InsertTx(ctx, tx, hist); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record history"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	ev := queue.SecurityAlertEvent{
		CylinderID:   cyl.ID,
		SerialNumber: cyl.SerialNumber,
		ScanResult:   model.ScanTampered,
		Message:      "Tamper report filed",
		IsSuspicious: true,
		Reason:       notes,
		ScannedBy:    actorID,
		Location:     hist.Location,
		OccurredAt:   now.Format(time.RFC3339),
	}
	go func() { _ = alert_publisher.PublishSecurityAlert(context.Background(), ev) }()

	updated, err := h.Cylinders.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"cylinder": toCylinderView(&updated)})
}

type inspectionReq struct {
	Passed             *bool  `json:"passed"`
	NextInspectionDate string `json:"next_inspection_date"`
	Notes              string `json:"notes"`
}

// RecordInspection handles POST /api/v1/cylinders/:id/inspection
// (dispatcher and admin only).  A failed inspection revokes the
// authenticity flag; the next inspection defaults to one year out.
func (h *CylinderHandler) RecordInspection(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req inspectionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Passed == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "passed required"})
	}
	passed := *req.Passed

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	nextDue := today.AddDate(1, 0, 0)
	if s := strings.TrimSpace(req.NextInspectionDate); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid next_inspection_date, want YYYY-MM-DD"})
		}
		if !t.After(today) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "next_inspection_date must be in the future"})
		}
		nextDue = t
	}

	ctx := c.Request().Context()
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

	cyl, err := h.Cylinders.GetByIDForUpdateTx(ctx, tx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "cylinder not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	if err := h.Cylinders.RecordInspectionTx(ctx, tx, id, today, nextDue, passed); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update cylinder"})
	}

	verdict := "passed"
	if !passed {
		verdict = "failed - authenticity revoked"
	}
	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		notes = "Inspection " + verdict
	} else {
		notes = "Inspection " + verdict + ": " + notes
	}
	hist := &model.CylinderHistory{
		CylinderID:    cyl.ID,
		EventType:     model.EventInspected,
		CustomerID:    cyl.CurrentCustomerID,
		PerformedByID: &actorID,
		Notes:         notes,
		CreatedAt:     now,
	}
	if err := h.History.InsertTx(ctx, tx, hist); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record history"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	updated, err := h.Cylinders.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"cylinder": toCylinderView(&updated)})
}
