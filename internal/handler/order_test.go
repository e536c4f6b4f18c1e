package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/repository"
)

var orderCols = []string{
	"id", "customer_id", "delivery_address", "quantity_kg", "status", "scheduled_time",
	"pickup_address", "customer_phone", "special_instructions", "created_at", "updated_at",
}

var deliveryCols = []string{
	"id", "order_id", "driver_id", "vehicle_id", "assigned_by_id", "assigned_at",
	"started_at", "completed_at", "status", "delivery_notes", "failure_reason",
}

func orderRow(status string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(orderCols).AddRow(
		5, 3, "12 Riverside Dr", 13.0, status, now.Add(24*time.Hour),
		"", "", "", now, now,
	)
}

func deliveryRow(driverID uint64) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(deliveryCols).AddRow(
		8, 5, driverID, 4, 2, now,
		nil, nil, model.DeliveryAssigned, "", "",
	)
}

func newOrderEnv(t *testing.T) (*OrderHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	h := NewOrderHandler(
		repository.NewOrderRepo(db),
		repository.NewDeliveryRepo(db),
		repository.NewVehicleRepo(db),
		repository.NewUserRepo(db),
	)
	return h, mock
}

func TestCreateOrderValidation(t *testing.T) {
	h, mock := newOrderEnv(t)
	future := time.Now().UTC().Add(24 * time.Hour).Format(time.RFC3339)

	cases := []struct {
		name string
		body string
	}{
		{"missing address", `{"delivery_address":" ","quantity_kg":13,"scheduled_time":"` + future + `"}`},
		{"zero quantity", `{"delivery_address":"12 Riverside Dr","quantity_kg":0,"scheduled_time":"` + future + `"}`},
		{"excess quantity", `{"delivery_address":"12 Riverside Dr","quantity_kg":1001,"scheduled_time":"` + future + `"}`},
		{"past schedule", `{"delivery_address":"12 Riverside Dr","quantity_kg":13,"scheduled_time":"2020-01-01T10:00:00Z"}`},
		{"too far out", `{"delivery_address":"12 Riverside Dr","quantity_kg":13,"scheduled_time":"` +
			time.Now().UTC().AddDate(0, 0, 31).Format(time.RFC3339) + `"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := jsonCtx(http.MethodPost, "/api/v1/orders", tc.body, 3, model.RoleCustomer)
			require.NoError(t, h.CreateOrder(c))
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderSuccess(t *testing.T) {
	h, mock := newOrderEnv(t)

	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(5, 1))

	body := `{"delivery_address":"12 Riverside Dr","quantity_kg":13,"scheduled_time":"` +
		time.Now().UTC().Add(24*time.Hour).Format(time.RFC3339) + `"}`
	c, rec := jsonCtx(http.MethodPost, "/api/v1/orders", body, 3, model.RoleCustomer)
	require.NoError(t, h.CreateOrder(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeBody(t, rec)
	order := resp["order"].(map[string]any)
	require.Equal(t, float64(5), order["id"])
	require.Equal(t, float64(3), order["customer_id"])
	require.Equal(t, model.OrderPending, order["status"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrderStatusSyncsDelivery(t *testing.T) {
	h, mock := newOrderEnv(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE id=\\? FOR UPDATE").
		WillReturnRows(orderRow(model.OrderAssigned))
	mock.ExpectExec("UPDATE orders SET status=\\?").
		WithArgs(model.OrderOnRoute, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE deliveries SET status=\\?, started_at=\\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := jsonCtx(http.MethodPatch, "/api/v1/orders/5/status",
		`{"status":"ON_ROUTE"}`, 2, model.RoleDispatcher)
	c.SetParamNames("id")
	c.SetParamValues("5")
	require.NoError(t, h.UpdateOrderStatus(c))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody(t, rec)
	require.Equal(t, model.OrderOnRoute, resp["order"].(map[string]any)["status"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrderStatusCancelFailsDelivery(t *testing.T) {
	h, mock := newOrderEnv(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE id=\\? FOR UPDATE").
		WillReturnRows(orderRow(model.OrderOnRoute))
	mock.ExpectExec("UPDATE orders SET status=\\?").
		WithArgs(model.OrderCancelled, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE deliveries SET status=\\?, failure_reason=\\?").
		WithArgs(model.DeliveryFailed, "Order cancelled", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := jsonCtx(http.MethodPatch, "/api/v1/orders/5/status",
		`{"status":"CANCELLED"}`, 2, model.RoleDispatcher)
	c.SetParamNames("id")
	c.SetParamValues("5")
	require.NoError(t, h.UpdateOrderStatus(c))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrderStatusRejectsSkippedStage(t *testing.T) {
	h, mock := newOrderEnv(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE id=\\? FOR UPDATE").
		WillReturnRows(orderRow(model.OrderPending))
	mock.ExpectRollback()

	c, rec := jsonCtx(http.MethodPatch, "/api/v1/orders/5/status",
		`{"status":"DELIVERED"}`, 2, model.RoleDispatcher)
	c.SetParamNames("id")
	c.SetParamValues("5")
	require.NoError(t, h.UpdateOrderStatus(c))
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, "cannot transition from PENDING to DELIVERED", body["error"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrderStatusDriverOwnOrdersOnly(t *testing.T) {
	h, mock := newOrderEnv(t)

	// The delivery belongs to driver 99, not the caller.
	mock.ExpectQuery("FROM deliveries WHERE order_id=\\? LIMIT 1").
		WithArgs(5).
		WillReturnRows(deliveryRow(99))

	c, rec := jsonCtx(http.MethodPatch, "/api/v1/orders/5/status",
		`{"status":"ON_ROUTE"}`, 9, model.RoleDriver)
	c.SetParamNames("id")
	c.SetParamValues("5")
	require.NoError(t, h.UpdateOrderStatus(c))
	require.Equal(t, http.StatusForbidden, rec.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}
