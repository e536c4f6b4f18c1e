package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/repository"
)

// GetCylinderHistory handles GET /api/v1/cylinders/:id/history, the
// paginated audit-trail read.  Visibility follows canSeeCylinder, so a
// customer can audit any cylinder they ever held, not only the one in
// their hands now.  Filters: event_type, from, to (YYYY-MM-DD, both
// inclusive).
func (h *CylinderHandler) GetCylinderHistory(c echo.Context) error {
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

	page, pageSize := parsePagination(c)
	f := repository.HistoryFilter{
		EventType: strings.ToUpper(strings.TrimSpace(c.QueryParam("event_type"))),
		Page:      page,
		PageSize:  pageSize,
	}
	if s := c.QueryParam("from"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from date, want YYYY-MM-DD"})
		}
		f.From = &t
	}
	if s := c.QueryParam("to"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to date, want YYYY-MM-DD"})
		}
		// The whole end day is included.
		end := t.Add(24*time.Hour - time.Second)
		f.To = &end
	}

	events, total, err := h.History.ListByCylinder(ctx, id, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	views := make([]historyView, 0, len(events))
	for i := range events {
		views = append(views, toHistoryView(&events[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"count":     total,
		"page":      page,
		"page_size": pageSize,
		"history":   views,
	})
}
