package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/repository"
)

// TrackingHandler groups the repositories backing GPS tracking-log
// ingestion and retrieval.
type TrackingHandler struct {
	Tracking   *repository.TrackingRepo
	Deliveries *repository.DeliveryRepo
	Orders     *repository.OrderRepo
}

// NewTrackingHandler constructs a TrackingHandler. All repositories
// must be non-nil.
func NewTrackingHandler(tracking *repository.TrackingRepo, deliveries *repository.DeliveryRepo, orders *repository.OrderRepo) *TrackingHandler {
	if tracking == nil || deliveries == nil || orders == nil {
		panic("nil repository passed to NewTrackingHandler")
	}
	return &TrackingHandler{Tracking: tracking, Deliveries: deliveries, Orders: orders}
}

type trackingView struct {
	ID         uint64    `json:"id"`
	DeliveryID uint64    `json:"delivery_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Timestamp  time.Time `json:"timestamp"`
	Speed      *float64  `json:"speed"`
	Heading    *float64  `json:"heading"`
	Accuracy   *float64  `json:"accuracy"`
}

func toTrackingView(t *model.TrackingLog) trackingView {
	return trackingView{
		ID:         t.ID,
		DeliveryID: t.DeliveryID,
		Latitude:   t.Latitude,
		Longitude:  t.Longitude,
		Timestamp:  t.Timestamp,
		Speed:      t.Speed,
		Heading:    t.Heading,
		Accuracy:   t.Accuracy,
	}
}

type trackingReq struct {
	DeliveryID uint64   `json:"delivery_id"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Speed      *float64 `json:"speed"`
	Heading    *float64 `json:"heading"`
	Accuracy   *float64 `json:"accuracy"`
}

// AddTrackingLog handles POST /api/v1/tracking (driver, dispatcher and
// admin).  Drivers may only report positions on their own deliveries.
func (h *TrackingHandler) AddTrackingLog(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	role := getRole(c)

	var req trackingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.DeliveryID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "delivery_id required"})
	}
	if req.Latitude == nil || req.Longitude == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "latitude and longitude required"})
	}
	if *req.Latitude < -90 || *req.Latitude > 90 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "latitude must be between -90 and 90"})
	}
	if *req.Longitude < -180 || *req.Longitude > 180 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "longitude must be between -180 and 180"})
	}

	ctx := c.Request().Context()
	d, err := h.Deliveries.GetByID(ctx, req.DeliveryID)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "delivery not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if role == model.RoleDriver && d.DriverID != actorID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	t := &model.TrackingLog{
		DeliveryID: d.ID,
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		Speed:      req.Speed,
		Heading:    req.Heading,
		Accuracy:   req.Accuracy,
	}
	if err := h.Tracking.Create(ctx, t); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record position"})
	}
	t.Timestamp = time.Now().UTC()
	return c.JSON(http.StatusCreated, echo.Map{"tracking_log": toTrackingView(t)})
}

// ListTrackingLogs handles GET /api/v1/tracking/:delivery_id.  The
// ordering customer, the carrying driver and staff may read a
// delivery's trace.
func (h *TrackingHandler) ListTrackingLogs(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	role := getRole(c)

	deliveryID, err := parseIDParam(c, "delivery_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid delivery_id"})
	}

	ctx := c.Request().Context()
	d, err := h.Deliveries.GetByID(ctx, deliveryID)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "delivery not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	switch role {
	case model.RoleDriver:
		if d.DriverID != actorID {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	case model.RoleCustomer:
		o, err := h.Orders.GetByID(ctx, d.OrderID)
		if err != nil || o.CustomerID != actorID {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	case model.RoleDispatcher, model.RoleAdmin:
	default:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	page, pageSize := parsePagination(c)
	logs, total, err := h.Tracking.ListByDelivery(ctx, deliveryID, page, pageSize)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	views := make([]trackingView, 0, len(logs))
	for i := range logs {
		views = append(views, toTrackingView(&logs[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"count":         total,
		"page":          page,
		"page_size":     pageSize,
		"tracking_logs": views,
	})
}
