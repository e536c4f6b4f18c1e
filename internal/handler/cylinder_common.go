package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/repository"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/security"
)

// CylinderHandler groups the repositories backing the cylinder endpoints:
// registration, scanning, browsing, history, assignment and status
// updates.  JWT authentication and coarse role checks happen in
// middleware; per-record visibility is enforced inside the handlers.
type CylinderHandler struct {
	Cylinders *repository.CylinderRepo
	Scans     *repository.ScanRepo
	History   *repository.HistoryRepo
	Orders    *repository.OrderRepo
	Users     *repository.UserRepo
	Detector  *security.Detector
}

// NewCylinderHandler constructs a CylinderHandler.  All repositories must
// be non-nil; a nil detector falls back to the default rules.
func NewCylinderHandler(cylinders *repository.CylinderRepo, scans *repository.ScanRepo, history *repository.HistoryRepo, orders *repository.OrderRepo, users *repository.UserRepo, det *security.Detector) *CylinderHandler {
	if cylinders == nil || scans == nil || history == nil || orders == nil || users == nil {
		panic("nil repository passed to NewCylinderHandler")
	}
	if det == nil {
		det = security.NewDetector()
	}
	return &CylinderHandler{
		Cylinders: cylinders,
		Scans:     scans,
		History:   history,
		Orders:    orders,
		Users:     users,
		Detector:  det,
	}
}

// cylinderView is the JSON shape cylinders are rendered as.  The secret
// key and auth hash never leave the database through read endpoints.
type cylinderView struct {
	ID                 uint64     `json:"id"`
	UUID               string     `json:"uuid"`
	SerialNumber       string     `json:"serial_number"`
	QRCode             string     `json:"qr_code"`
	RFIDTag            string     `json:"rfid_tag"`
	CylinderType       string     `json:"cylinder_type"`
	CapacityKG         float64    `json:"capacity_kg"`
	Manufacturer       string     `json:"manufacturer"`
	ManufacturingDate  string     `json:"manufacturing_date"`
	ExpiryDate         string     `json:"expiry_date"`
	Status             string     `json:"status"`
	CurrentCustomerID  *uint64    `json:"current_customer_id"`
	CurrentOrderID     *uint64    `json:"current_order_id"`
	LastKnownLocation  string     `json:"last_known_location"`
	LastInspectionDate *string    `json:"last_inspection_date"`
	NextInspectionDate *string    `json:"next_inspection_date"`
	TotalFills         uint32     `json:"total_fills"`
	TotalScans         uint64     `json:"total_scans"`
	IsAuthentic        bool       `json:"is_authentic"`
	IsTampered         bool       `json:"is_tampered"`
	TamperNotes        string     `json:"tamper_notes,omitempty"`
	LastScannedAt      *time.Time `json:"last_scanned_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toCylinderView(cyl *model.Cylinder) cylinderView {
	return cylinderView{
		ID:                 cyl.ID,
		UUID:               cyl.UUID,
		SerialNumber:       cyl.SerialNumber,
		QRCode:             cyl.QRCode,
		RFIDTag:            cyl.RFIDTag,
		CylinderType:       cyl.CylinderType,
		CapacityKG:         cyl.CapacityKG,
		Manufacturer:       cyl.Manufacturer,
		ManufacturingDate:  cyl.ManufacturingDate.Format("2006-01-02"),
		ExpiryDate:         cyl.ExpiryDate.Format("2006-01-02"),
		Status:             cyl.Status,
		CurrentCustomerID:  cyl.CurrentCustomerID,
		CurrentOrderID:     cyl.CurrentOrderID,
		LastKnownLocation:  cyl.LastKnownLocation,
		LastInspectionDate: dateString(cyl.LastInspectionDate),
		NextInspectionDate: dateString(cyl.NextInspectionDate),
		TotalFills:         cyl.TotalFills,
		TotalScans:         cyl.TotalScans,
		IsAuthentic:        cyl.IsAuthentic,
		IsTampered:         cyl.IsTampered,
		TamperNotes:        cyl.TamperNotes,
		LastScannedAt:      cyl.LastScannedAt,
		CreatedAt:          cyl.CreatedAt,
		UpdatedAt:          cyl.UpdatedAt,
	}
}

// dateString renders an optional date as YYYY-MM-DD.
func dateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

// scanView is the JSON shape ledger scans are rendered as.  The issued
// auth token is part of the audit record and stays visible to readers
// who can see the scan at all.
type scanView struct {
	ID               uint64    `json:"id"`
	CylinderID       uint64    `json:"cylinder_id"`
	ScannedByID      *uint64   `json:"scanned_by_id"`
	ScannedByRole    string    `json:"scanned_by_role"`
	ScanType         string    `json:"scan_type"`
	ScanResult       string    `json:"scan_result"`
	ScannedCode      string    `json:"scanned_code"`
	AuthToken        string    `json:"auth_token,omitempty"`
	Latitude         *float64  `json:"latitude"`
	Longitude        *float64  `json:"longitude"`
	LocationName     string    `json:"location_name,omitempty"`
	OrderID          *uint64   `json:"order_id"`
	DeliveryID       *uint64   `json:"delivery_id"`
	IsSuspicious     bool      `json:"is_suspicious"`
	SuspiciousReason string    `json:"suspicious_reason,omitempty"`
	Notes            string    `json:"notes"`
	CreatedAt        time.Time `json:"created_at"`
}

func toScanView(s *model.CylinderScan) scanView {
	return scanView{
		ID:               s.ID,
		CylinderID:       s.CylinderID,
		ScannedByID:      s.ScannedByID,
		ScannedByRole:    s.ScannedByRole,
		ScanType:         s.ScanType,
		ScanResult:       s.ScanResult,
		ScannedCode:      s.ScannedCode,
		AuthToken:        s.AuthToken,
		Latitude:         s.Latitude,
		Longitude:        s.Longitude,
		LocationName:     s.LocationName,
		OrderID:          s.OrderID,
		DeliveryID:       s.DeliveryID,
		IsSuspicious:     s.IsSuspicious,
		SuspiciousReason: s.SuspiciousReason,
		Notes:            s.Notes,
		CreatedAt:        s.CreatedAt,
	}
}

// historyView is the JSON shape audit-trail events are rendered as.
type historyView struct {
	ID               uint64                  `json:"id"`
	CylinderID       uint64                  `json:"cylinder_id"`
	EventType        string                  `json:"event_type"`
	PreviousStatus   string                  `json:"previous_status,omitempty"`
	NewStatus        string                  `json:"new_status,omitempty"`
	OrderID          *uint64                 `json:"order_id"`
	DeliveryID       *uint64                 `json:"delivery_id"`
	CustomerID       *uint64                 `json:"customer_id"`
	DriverID         *uint64                 `json:"driver_id"`
	PerformedByID    *uint64                 `json:"performed_by_id"`
	Location         string                  `json:"location,omitempty"`
	Latitude         *float64                `json:"latitude"`
	Longitude        *float64                `json:"longitude"`
	Notes            string                  `json:"notes"`
	VerificationData *model.VerificationData `json:"verification_data,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
}

func toHistoryView(h *model.CylinderHistory) historyView {
	return historyView{
		ID:               h.ID,
		CylinderID:       h.CylinderID,
		EventType:        h.EventType,
		PreviousStatus:   h.PreviousStatus,
		NewStatus:        h.NewStatus,
		OrderID:          h.OrderID,
		DeliveryID:       h.DeliveryID,
		CustomerID:       h.CustomerID,
		DriverID:         h.DriverID,
		PerformedByID:    h.PerformedByID,
		Location:         h.Location,
		Latitude:         h.Latitude,
		Longitude:        h.Longitude,
		Notes:            h.Notes,
		VerificationData: h.VerificationData,
		CreatedAt:        h.CreatedAt,
	}
}

// canSeeCylinder decides per-record visibility for read endpoints.
// Dispatchers and admins see everything; customers see cylinders they
// hold now or ever held; drivers see cylinders that crossed one of
// their deliveries.
func (h *CylinderHandler) canSeeCylinder(c echo.Context, cyl *model.Cylinder, actorID uint64, role string) (bool, error) {
	switch role {
	case model.RoleDispatcher, model.RoleAdmin:
		return true, nil
	case model.RoleCustomer:
		if cyl.CurrentCustomerID != nil && *cyl.CurrentCustomerID == actorID {
			return true, nil
		}
		return h.History.ExistsForCustomer(c.Request().Context(), cyl.ID, actorID)
	case model.RoleDriver:
		return h.History.ExistsForDriver(c.Request().Context(), cyl.ID, actorID)
	}
	return false, nil
}
