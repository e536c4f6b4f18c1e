package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/repository"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/security"
)

// codeAttempts bounds security-code regeneration when a generated QR or
// RFID value collides with an existing row. Collisions are practically
// impossible, so three tries is plenty before reporting a conflict.
const codeAttempts = 3

type registerCylinderReq struct {
	SerialNumber      string  `json:"serial_number"`
	CylinderType      string  `json:"cylinder_type"`
	CapacityKG        float64 `json:"capacity_kg"`
	Manufacturer      string  `json:"manufacturer"`
	ManufacturingDate string  `json:"manufacturing_date"`
	ExpiryDate        string  `json:"expiry_date"`
}

// validSerial reports whether s is at least five characters long and
// contains only ASCII letters, digits and hyphens.
func validSerial(s string) bool {
	if len(s) < 5 {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'A' && ch <= 'Z':
		case ch >= 'a' && ch <= 'z':
		case ch >= '0' && ch <= '9':
		case ch == '-':
		default:
			return false
		}
	}
	return true
}

// RegisterCylinder handles POST /api/v1/cylinders.  It validates the
// physical attributes, generates the four security fields, inserts the
// cylinder and its REGISTERED history row in one transaction, and
// returns the cylinder together with the codes the factory must print.
// The secret key stays server-side; the auth token in the response is a
// registration receipt derived from the auth hash.
func (h *CylinderHandler) RegisterCylinder(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req registerCylinderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	serial := strings.TrimSpace(req.SerialNumber)
	if !validSerial(serial) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "serial number must be at least 5 characters of letters, digits or hyphens"})
	}
	ctype := strings.ToUpper(strings.TrimSpace(req.CylinderType))
	if !model.CylinderTypes[ctype] {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cylinder type"})
	}
	if req.CapacityKG <= 0 || req.CapacityKG > 100 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be greater than 0 and at most 100 kg"})
	}
	manufacturer := strings.TrimSpace(req.Manufacturer)
	if manufacturer == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "manufacturer required"})
	}

	mfgDate, err := time.Parse("2006-01-02", req.ManufacturingDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid manufacturing_date, want YYYY-MM-DD"})
	}
	expDate, err := time.Parse("2006-01-02", req.ExpiryDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid expiry_date, want YYYY-MM-DD"})
	}

	now := time.Now().UTC()
	today := security.Today(now)
	if mfgDate.After(today) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "manufacturing date cannot be in the future"})
	}
	if mfgDate.Before(today.AddDate(-20, 0, 0)) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "manufacturing date cannot be more than 20 years ago"})
	}
	if !expDate.After(mfgDate) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "expiry date must be after manufacturing date"})
	}
	if expDate.After(mfgDate.AddDate(20, 0, 0)) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "expiry date cannot be more than 20 years after manufacturing"})
	}

	secret, err := security.GenerateSecretKey()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "security code generation failed"})
	}

	cyl := &model.Cylinder{
		UUID:              uuid.New().String(),
		SerialNumber:      serial,
		CylinderType:      ctype,
		CapacityKG:        req.CapacityKG,
		Manufacturer:      manufacturer,
		ManufacturingDate: mfgDate,
		ExpiryDate:        expDate,
		Status:            model.CylinderActive,
		IsAuthentic:       true,
		SecretKey:         secret,
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

	// A 1062 duplicate leaves the InnoDB transaction usable, so colliding
	// codes can be regenerated and re-inserted without restarting it.
	var insErr error
	for attempt := 0; attempt < codeAttempts; attempt++ {
		cyl.QRCode = security.GenerateQRCode()
		cyl.RFIDTag = security.GenerateRFIDTag()
		cyl.AuthHash = security.ComputeAuthHash(cyl.SerialNumber, cyl.QRCode, cyl.RFIDTag, cyl.SecretKey)
		insErr = h.Cylinders.CreateTx(ctx, tx, cyl)
		if insErr != repository.ErrCodeCollision {
			break
		}
	}
	if insErr != nil {
		if insErr == repository.ErrSerialExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "serial number already exists"})
		}
		if insErr == repository.ErrCodeCollision {
			return c.JSON(http.StatusConflict, echo.Map{"error": "security code collision, retry the request"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create cylinder"})
	}

	hist := &model.CylinderHistory{
		CylinderID:    cyl.ID,
		EventType:     model.EventRegistered,
		NewStatus:     model.CylinderActive,
		PerformedByID: &actorID,
		Notes:         "Cylinder registered",
		CreatedAt:     now,
	}
	if err := h.History.InsertTx(ctx, tx, hist); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record history"})
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	cyl.CreatedAt = now
	cyl.UpdatedAt = now
	return c.JSON(http.StatusCreated, echo.Map{
		"cylinder": toCylinderView(cyl),
		"security": echo.Map{
			"qr_code":    cyl.QRCode,
			"rfid_tag":   cyl.RFIDTag,
			"auth_token": security.GenerateAuthToken(cyl.AuthHash, now),
		},
	})
}
