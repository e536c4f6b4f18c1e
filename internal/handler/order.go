package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/repository"
)

// OrderHandler groups the repositories backing the order endpoints.
// Order status changes keep the shadowing delivery row in sync inside
// the same transaction.
type OrderHandler struct {
	Orders     *repository.OrderRepo
	Deliveries *repository.DeliveryRepo
	Vehicles   *repository.VehicleRepo
	Users      *repository.UserRepo
}

// NewOrderHandler constructs an OrderHandler. All repositories must be
// non-nil.
func NewOrderHandler(orders *repository.OrderRepo, deliveries *repository.DeliveryRepo, vehicles *repository.VehicleRepo, users *repository.UserRepo) *OrderHandler {
	if orders == nil || deliveries == nil || vehicles == nil || users == nil {
		panic("nil repository passed to NewOrderHandler")
	}
	return &OrderHandler{Orders: orders, Deliveries: deliveries, Vehicles: vehicles, Users: users}
}

type orderView struct {
	ID                  uint64    `json:"id"`
	CustomerID          uint64    `json:"customer_id"`
	DeliveryAddress     string    `json:"delivery_address"`
	QuantityKG          float64   `json:"quantity_kg"`
	Status              string    `json:"status"`
	ScheduledTime       time.Time `json:"scheduled_time"`
	PickupAddress       string    `json:"pickup_address,omitempty"`
	CustomerPhone       string    `json:"customer_phone,omitempty"`
	SpecialInstructions string    `json:"special_instructions,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func toOrderView(o *model.Order) orderView {
	return orderView{
		ID:                  o.ID,
		CustomerID:          o.CustomerID,
		DeliveryAddress:     o.DeliveryAddress,
		QuantityKG:          o.QuantityKG,
		Status:              o.Status,
		ScheduledTime:       o.ScheduledTime,
		PickupAddress:       o.PickupAddress,
		CustomerPhone:       o.CustomerPhone,
		SpecialInstructions: o.SpecialInstructions,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
}

type deliveryView struct {
	ID            uint64     `json:"id"`
	OrderID       uint64     `json:"order_id"`
	DriverID      uint64     `json:"driver_id"`
	VehicleID     uint64     `json:"vehicle_id"`
	AssignedByID  uint64     `json:"assigned_by_id"`
	AssignedAt    time.Time  `json:"assigned_at"`
	StartedAt     *time.Time `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`
	Status        string     `json:"status"`
	DeliveryNotes string     `json:"delivery_notes,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
}

func toDeliveryView(d *model.Delivery) deliveryView {
	return deliveryView{
		ID:            d.ID,
		OrderID:       d.OrderID,
		DriverID:      d.DriverID,
		VehicleID:     d.VehicleID,
		AssignedByID:  d.AssignedByID,
		AssignedAt:    d.AssignedAt,
		StartedAt:     d.StartedAt,
		CompletedAt:   d.CompletedAt,
		Status:        d.Status,
		DeliveryNotes: d.DeliveryNotes,
		FailureReason: d.FailureReason,
	}
}

type createOrderReq struct {
	DeliveryAddress     string  `json:"delivery_address"`
	QuantityKG          float64 `json:"quantity_kg"`
	ScheduledTime       string  `json:"scheduled_time"`
	PickupAddress       string  `json:"pickup_address"`
	CustomerPhone       string  `json:"customer_phone"`
	SpecialInstructions string  `json:"special_instructions"`
}

// CreateOrder handles POST /api/v1/orders (customer only).  New orders
// start PENDING; the schedule must be in the future but no more than
// thirty days out.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req createOrderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	address := strings.TrimSpace(req.DeliveryAddress)
	if address == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "delivery_address required"})
	}
	if req.QuantityKG <= 0 || req.QuantityKG > 1000 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be greater than 0 and at most 1000 kg"})
	}
	scheduled, err := time.Parse(time.RFC3339, req.ScheduledTime)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid scheduled_time, want RFC3339"})
	}
	now := time.Now().UTC()
	scheduled = scheduled.UTC()
	if !scheduled.After(now) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "scheduled_time must be in the future"})
	}
	if scheduled.After(now.AddDate(0, 0, 30)) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "scheduled_time cannot be more than 30 days ahead"})
	}

	o := &model.Order{
		CustomerID:          actorID,
		DeliveryAddress:     address,
		QuantityKG:          req.QuantityKG,
		Status:              model.OrderPending,
		ScheduledTime:       scheduled,
		PickupAddress:       strings.TrimSpace(req.PickupAddress),
		CustomerPhone:       strings.TrimSpace(req.CustomerPhone),
		SpecialInstructions: strings.TrimSpace(req.SpecialInstructions),
	}
	if err := h.Orders.Create(c.Request().Context(), o); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create order"})
	}
	o.CreatedAt = now
	o.UpdatedAt = now
	return c.JSON(http.StatusCreated, echo.Map{"order": toOrderView(o)})
}

// ListOrders handles GET /api/v1/orders.  Customers see their own
// orders, drivers the orders they deliver, staff everything.  Filter:
// status.
func (h *OrderHandler) ListOrders(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	role := getRole(c)

	page, pageSize := parsePagination(c)
	f := repository.OrderFilter{
		Status:   strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))),
		Page:     page,
		PageSize: pageSize,
	}
	if f.Status != "" && !model.IsOrderStatus(f.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}
	switch role {
	case model.RoleCustomer:
		f.CustomerID = actorID
	case model.RoleDriver:
		f.DriverID = actorID
	case model.RoleDispatcher, model.RoleAdmin:
	default:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	orders, total, err := h.Orders.List(c.Request().Context(), f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	views := make([]orderView, 0, len(orders))
	for i := range orders {
		views = append(views, toOrderView(&orders[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"count":     total,
		"page":      page,
		"page_size": pageSize,
		"orders":    views,
	})
}

// GetOrder handles GET /api/v1/orders/:id, returning the order plus
// its delivery when one exists.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	role := getRole(c)

	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx := c.Request().Context()
	o, err := h.Orders.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	var delivery *model.Delivery
	if d, err := h.Deliveries.GetByOrderID(ctx, id); err == nil {
		delivery = &d
	} else if err != repository.ErrNotFound {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	switch role {
	case model.RoleCustomer:
		if o.CustomerID != actorID {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	case model.RoleDriver:
		if delivery == nil || delivery.DriverID != actorID {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	case model.RoleDispatcher, model.RoleAdmin:
	default:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	resp := echo.Map{"order": toOrderView(&o)}
	if delivery != nil {
		resp["delivery"] = toDeliveryView(delivery)
	}
	return c.JSON(http.StatusOK, resp)
}

type orderStatusReq struct {
	Status string `json:"status"`
}

// UpdateOrderStatus handles PATCH /api/v1/orders/:id/status (driver,
// dispatcher and admin).  Drivers may only move their own orders.  The
// delivery row tracks the order inside the same transaction: ON_ROUTE
// starts it, DELIVERED completes it and CANCELLED fails it.
func (h *OrderHandler) UpdateOrderStatus(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	role := getRole(c)

	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req orderStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	newStatus := strings.ToUpper(strings.TrimSpace(req.Status))
	if !model.IsOrderStatus(newStatus) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}

	ctx := c.Request().Context()
	now := time.Now().UTC()

	if role == model.RoleDriver {
		d, err := h.Deliveries.GetByOrderID(ctx, id)
		if err != nil || d.DriverID != actorID {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
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

	o, err := h.Orders.GetByIDForUpdateTx(ctx, tx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !model.CanTransitionOrder(o.Status, newStatus) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error": fmt.Sprintf("cannot transition from %s to %s", o.Status, newStatus),
		})
	}

	if err := h.Orders.UpdateStatusTx(ctx, tx, id, newStatus); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update order"})
	}
	switch newStatus {
	case model.OrderOnRoute:
		err = h.Deliveries.StartTx(ctx, tx, id, now)
	case model.OrderDelivered:
		err = h.Deliveries.CompleteTx(ctx, tx, id, now)
	case model.OrderCancelled:
		err = h.Deliveries.FailTx(ctx, tx, id, "Order cancelled")
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update delivery"})
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	o.Status = newStatus
	o.UpdatedAt = now
	return c.JSON(http.StatusOK, echo.Map{"order": toOrderView(&o)})
}
