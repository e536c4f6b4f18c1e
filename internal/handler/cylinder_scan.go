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
	"github.com/iliyamo/lpg-cylinder-tracking/internal/security"
	alert_publisher "github.com/iliyamo/lpg-cylinder-tracking/internal/service"
)

type scanReq struct {
	Code      string   `json:"code"`
	ScanType  string   `json:"scan_type"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Location  string   `json:"location"`
	OrderID   *uint64  `json:"order_id"`
}

// ScanCylinder handles POST /api/v1/cylinders/scan, the verification
// entry point for field scans.  The flow: normalize and resolve the
// code, verify authenticity, run anomaly detection, then atomically
// append the scan row, bump the cylinder's scan counters and append the
// SCANNED history row while holding the cylinder's row lock.  A scan
// that fails verification is still a 200 with verified=false; only
// malformed input and unresolvable codes are non-2xx.  Unresolvable
// codes leave both ledgers untouched.
func (h *CylinderHandler) ScanCylinder(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	role := getRole(c)

	var req scanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if len(code) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code must be at least 8 characters"})
	}
	scanType := strings.ToUpper(strings.TrimSpace(req.ScanType))
	if !model.IsScanType(scanType) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "scan_type must be QR, RFID or MANUAL"})
	}
	if req.Latitude != nil && (*req.Latitude < -90 || *req.Latitude > 90) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "latitude must be between -90 and 90"})
	}
	if req.Longitude != nil && (*req.Longitude < -180 || *req.Longitude > 180) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "longitude must be between -180 and 180"})
	}

	ctx := c.Request().Context()
	cyl, err := h.Cylinders.GetByCode(ctx, code, scanType)
	if err != nil {
		if err == repository.ErrNotFound {
			// Nothing is written for codes matching no cylinder, so the
			// ledgers cannot be polluted by typos or probing.
			return c.JSON(http.StatusNotFound, echo.Map{
				"verified":    false,
				"scan_result": model.ScanFailed,
				"message":     "Cylinder not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	now := time.Now().UTC()
	today := security.Today(now)
	ok, message := security.Verify(&cyl, code, scanType, today)
	result := security.ClassifyResult(ok, &cyl, today)

	recentCount, err := h.Scans.CountSince(ctx, cyl.ID, now.Add(-h.Detector.RapidWindow))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	var prior *model.CylinderScan
	if req.Latitude != nil && req.Longitude != nil {
		prior, err = h.Scans.LatestWithCoordinates(ctx, cyl.ID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
	}
	suspicious, reason := h.Detector.Inspect(now, recentCount, req.Latitude, req.Longitude, prior)

	authToken := ""
	if ok {
		authToken = security.GenerateAuthToken(cyl.AuthHash, now)
	}

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

	// Row lock serializes concurrent scans of this cylinder; the counter
	// update and both ledger appends commit or roll back together.
	locked, err := h.Cylinders.GetByIDForUpdateTx(ctx, tx, cyl.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to lock cylinder"})
	}

	orderRef := req.OrderID
	if orderRef == nil {
		orderRef = locked.CurrentOrderID
	}
	scan := &model.CylinderScan{
		CylinderID:       cyl.ID,
		ScannedByID:      &actorID,
		ScannedByRole:    role,
		ScanType:         scanType,
		ScanResult:       result,
		ScannedCode:      code,
		AuthToken:        authToken,
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
		LocationName:     strings.TrimSpace(req.Location),
		OrderID:          orderRef,
		IPAddress:        c.RealIP(),
		UserAgent:        c.Request().UserAgent(),
		IsSuspicious:     suspicious,
		SuspiciousReason: reason,
		Notes:            message,
		CreatedAt:        now,
	}
	if err := h.Scans.InsertTx(ctx, tx, scan); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record scan"})
	}
	if err := h.Cylinders.ApplyScanTx(ctx, tx, cyl.ID, &actorID, scan.LocationName, now); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update cylinder"})
	}

	var driverRef *uint64
	if role == model.RoleDriver {
		driverRef = &actorID
	}
	hist := &model.CylinderHistory{
		CylinderID:    cyl.ID,
		EventType:     model.EventScanned,
		OrderID:       orderRef,
		CustomerID:    locked.CurrentCustomerID,
		DriverID:      driverRef,
		PerformedByID: &actorID,
		Location:      scan.LocationName,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		Notes:         fmt.Sprintf("%s scan - %s", scanType, message),
		VerificationData: &model.VerificationData{
			ScanResult:   result,
			IsSuspicious: suspicious,
			Latitude:     req.Latitude,
			Longitude:    req.Longitude,
		},
		CreatedAt: now,
	}
	if err := h.History.InsertTx(ctx, tx, hist); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record history"})
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	if suspicious || result == model.ScanTampered || result == model.ScanStolen {
		ev := queue.SecurityAlertEvent{
			CylinderID:   cyl.ID,
			SerialNumber: cyl.SerialNumber,
			ScanResult:   result,
			Message:      message,
			IsSuspicious: suspicious,
			Reason:       reason,
			ScannedBy:    actorID,
			Location:     scan.LocationName,
			Latitude:     req.Latitude,
			Longitude:    req.Longitude,
			OccurredAt:   now.Format(time.RFC3339),
		}
		// Best effort: the publisher logs its own failures and the scan
		// has already committed.
		go func() { _ = alert_publisher.PublishSecurityAlert(context.Background(), ev) }()
	}

	var tokenOut any
	if ok {
		tokenOut = authToken
	}
	resp := echo.Map{
		"verified":    ok,
		"scan_result": result,
		"message":     message,
		"cylinder": echo.Map{
			"serial_number":        locked.SerialNumber,
			"cylinder_type":        locked.CylinderType,
			"capacity_kg":          locked.CapacityKG,
			"status":               locked.Status,
			"manufacturer":         locked.Manufacturer,
			"expiry_date":          locked.ExpiryDate.Format("2006-01-02"),
			"total_fills":          locked.TotalFills,
			"last_inspection_date": dateString(locked.LastInspectionDate),
		},
		"security": echo.Map{
			"is_authentic": locked.IsAuthentic,
			"is_tampered":  locked.IsTampered,
			"is_expired":   locked.IsExpired(today),
			"auth_token":   tokenOut,
		},
	}
	if suspicious {
		resp["warning"] = echo.Map{
			"is_suspicious": true,
			"reason":        reason,
			"action":        "Report to security team immediately",
		}
	}
	if locked.CurrentCustomerID != nil {
		if cust, err := h.Users.GetByID(ctx, *locked.CurrentCustomerID); err == nil {
			resp["customer"] = echo.Map{"name": cust.Username, "email": cust.Email}
		}
	}
	if locked.CurrentOrderID != nil {
		if ord, err := h.Orders.GetByID(ctx, *locked.CurrentOrderID); err == nil {
			resp["order"] = echo.Map{"id": ord.ID, "status": ord.Status}
		}
	}
	return c.JSON(http.StatusOK, resp)
}
