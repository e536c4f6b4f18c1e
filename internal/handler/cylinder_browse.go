package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/repository"
)

// ListCylinders handles GET /api/v1/cylinders.  Staff see the whole
// fleet; customers only cylinders currently assigned to them and
// drivers only cylinders riding on their deliveries.  Filters: status,
// type, tampered=true, expired=true.
func (h *CylinderHandler) ListCylinders(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	role := getRole(c)

	page, pageSize := parsePagination(c)
	f := repository.CylinderFilter{
		Status:   strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))),
		Type:     strings.ToUpper(strings.TrimSpace(c.QueryParam("type"))),
		Tampered: c.QueryParam("tampered") == "true",
		Expired:  c.QueryParam("expired") == "true",
		Page:     page,
		PageSize: pageSize,
	}
	if f.Status != "" && !model.IsCylinderStatus(f.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}
	if f.Type != "" && !model.CylinderTypes[f.Type] {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown cylinder type"})
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

	cylinders, total, err := h.Cylinders.List(c.Request().Context(), f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	views := make([]cylinderView, 0, len(cylinders))
	for i := range cylinders {
		views = append(views, toCylinderView(&cylinders[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"count":     total,
		"page":      page,
		"page_size": pageSize,
		"cylinders": views,
	})
}

// GetCylinder handles GET /api/v1/cylinders/:id.  The detail view
// bundles the ten most recent history events and five most recent
// scans so a field app needs a single round trip.
func (h *CylinderHandler) GetCylinder(c echo.Context) error {
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
	cyl, err := h.Cylinders.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "cylinder not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	allowed, err := h.canSeeCylinder(c, &cyl, actorID, role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !allowed {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	history, _, err := h.History.ListByCylinder(ctx, id, repository.HistoryFilter{Page: 1, PageSize: 10})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	scans, _, err := h.Scans.ListByCylinder(ctx, id, 1, 5)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	histViews := make([]historyView, 0, len(history))
	for i := range history {
		histViews = append(histViews, toHistoryView(&history[i]))
	}
	scanViews := make([]scanView, 0, len(scans))
	for i := range scans {
		scanViews = append(scanViews, toScanView(&scans[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"cylinder":       toCylinderView(&cyl),
		"recent_history": histViews,
		"recent_scans":   scanViews,
	})
}
