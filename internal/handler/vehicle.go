package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/repository"
)

// VehicleHandler groups the repositories backing the fleet endpoints:
// vehicle CRUD and driver-to-vehicle assignment.
type VehicleHandler struct {
	Vehicles *repository.VehicleRepo
	Users    *repository.UserRepo
}

// NewVehicleHandler constructs a VehicleHandler. Both repositories must
// be non-nil.
func NewVehicleHandler(vehicles *repository.VehicleRepo, users *repository.UserRepo) *VehicleHandler {
	if vehicles == nil || users == nil {
		panic("nil repository passed to NewVehicleHandler")
	}
	return &VehicleHandler{Vehicles: vehicles, Users: users}
}

type vehicleView struct {
	ID          uint64    `json:"id"`
	PlateNumber string    `json:"plate_number"`
	Model       string    `json:"model"`
	CapacityKG  float64   `json:"capacity_kg"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toVehicleView(v *model.Vehicle) vehicleView {
	return vehicleView{
		ID:          v.ID,
		PlateNumber: v.PlateNumber,
		Model:       v.Model,
		CapacityKG:  v.CapacityKG,
		Status:      v.Status,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
}

type createVehicleReq struct {
	PlateNumber string  `json:"plate_number"`
	Model       string  `json:"model"`
	CapacityKG  float64 `json:"capacity_kg"`
	Status      string  `json:"status"`
}

// CreateVehicle handles POST /api/v1/vehicles (dispatcher and admin
// only).
func (h *VehicleHandler) CreateVehicle(c echo.Context) error {
	var req createVehicleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	plate := strings.ToUpper(strings.TrimSpace(req.PlateNumber))
	if plate == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "plate_number required"})
	}
	if req.CapacityKG < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity cannot be negative"})
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if status == "" {
		status = model.VehicleActive
	}
	if !model.IsVehicleStatus(status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}

	v := &model.Vehicle{
		PlateNumber: plate,
		Model:       strings.TrimSpace(req.Model),
		CapacityKG:  req.CapacityKG,
		Status:      status,
	}
	if err := h.Vehicles.Create(c.Request().Context(), v); err != nil {
		if err == repository.ErrConflict {
			return c.JSON(http.StatusConflict, echo.Map{"error": "plate number already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create vehicle"})
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now
	return c.JSON(http.StatusCreated, echo.Map{"vehicle": toVehicleView(v)})
}

// ListVehicles handles GET /api/v1/vehicles.  Filters: status,
// available_only=true (ACTIVE vehicles with no driver assigned).
func (h *VehicleHandler) ListVehicles(c echo.Context) error {
	page, pageSize := parsePagination(c)
	status := strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))
	if status != "" && !model.IsVehicleStatus(status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}
	availableOnly := c.QueryParam("available_only") == "true"

	vehicles, total, err := h.Vehicles.List(c.Request().Context(), status, availableOnly, page, pageSize)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	views := make([]vehicleView, 0, len(vehicles))
	for i := range vehicles {
		views = append(views, toVehicleView(&vehicles[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"count":     total,
		"page":      page,
		"page_size": pageSize,
		"vehicles":  views,
	})
}

// GetVehicle handles GET /api/v1/vehicles/:id.
func (h *VehicleHandler) GetVehicle(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	v, err := h.Vehicles.GetByID(c.Request().Context(), id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"vehicle": toVehicleView(&v)})
}

type updateVehicleReq struct {
	PlateNumber *string  `json:"plate_number"`
	Model       *string  `json:"model"`
	CapacityKG  *float64 `json:"capacity_kg"`
	Status      *string  `json:"status"`
}

// UpdateVehicle handles PATCH /api/v1/vehicles/:id (dispatcher and
// admin only).  Only fields present in the body change.
func (h *VehicleHandler) UpdateVehicle(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req updateVehicleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx := c.Request().Context()
	v, err := h.Vehicles.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	if req.PlateNumber != nil {
		plate := strings.ToUpper(strings.TrimSpace(*req.PlateNumber))
		if plate == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "plate_number cannot be empty"})
		}
		v.PlateNumber = plate
	}
	if req.Model != nil {
		v.Model = strings.TrimSpace(*req.Model)
	}
	if req.CapacityKG != nil {
		if *req.CapacityKG < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity cannot be negative"})
		}
		v.CapacityKG = *req.CapacityKG
	}
	if req.Status != nil {
		status := strings.ToUpper(strings.TrimSpace(*req.Status))
		if !model.IsVehicleStatus(status) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
		}
		v.Status = status
	}

	if err := h.Vehicles.Update(ctx, v); err != nil {
		if err == repository.ErrConflict {
			return c.JSON(http.StatusConflict, echo.Map{"error": "plate number already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update vehicle"})
	}
	v.UpdatedAt = time.Now().UTC()
	return c.JSON(http.StatusOK, echo.Map{"vehicle": toVehicleView(&v)})
}

type vehicleDriverReq struct {
	VehicleID uint64  `json:"vehicle_id"`
	DriverID  *uint64 `json:"driver_id"`
}

// AssignVehicleDriver handles POST /api/v1/vehicles/assign-driver
// (dispatcher and admin only).  Naming a driver closes their previous
// assignment and opens one on this vehicle; a null driver_id releases
// the vehicle instead.
func (h *VehicleHandler) AssignVehicleDriver(c echo.Context) error {
	var req vehicleDriverReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.VehicleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "vehicle_id required"})
	}

	ctx := c.Request().Context()
	now := time.Now().UTC()

	v, err := h.Vehicles.GetByID(ctx, req.VehicleID)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "vehicle not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	if req.DriverID != nil {
		if v.Status != model.VehicleActive {
			return c.JSON(http.StatusConflict, echo.Map{"error": "vehicle is not active"})
		}
		if _, err := h.Users.GetActiveByRole(ctx, *req.DriverID, model.RoleDriver); err != nil {
			if err == repository.ErrNotFound {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "driver not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
	}

	tx, err := h.Vehicles.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if req.DriverID != nil {
		err = h.Vehicles.AssignDriverTx(ctx, tx, *req.DriverID, v.ID, now)
	} else {
		err = h.Vehicles.ReleaseVehicleTx(ctx, tx, v.ID, now)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update assignment"})
	}

	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true

	resp := echo.Map{"vehicle": toVehicleView(&v)}
	if req.DriverID != nil {
		resp["driver_id"] = *req.DriverID
	}
	return c.JSON(http.StatusOK, resp)
}
