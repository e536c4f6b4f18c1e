package handler

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
)

func TestRegisterCylinderValidation(t *testing.T) {
	h, mock := newCylinderEnv(t)

	cases := []struct {
		name string
		body string
	}{
		{"short serial", `{"serial_number":"AB-1","cylinder_type":"13KG","capacity_kg":13,"manufacturer":"Acme","manufacturing_date":"2024-01-01","expiry_date":"2034-01-01"}`},
		{"serial with spaces", `{"serial_number":"SN 12345","cylinder_type":"13KG","capacity_kg":13,"manufacturer":"Acme","manufacturing_date":"2024-01-01","expiry_date":"2034-01-01"}`},
		{"unknown type", `{"serial_number":"SN-12345","cylinder_type":"9KG","capacity_kg":9,"manufacturer":"Acme","manufacturing_date":"2024-01-01","expiry_date":"2034-01-01"}`},
		{"zero capacity", `{"serial_number":"SN-12345","cylinder_type":"13KG","capacity_kg":0,"manufacturer":"Acme","manufacturing_date":"2024-01-01","expiry_date":"2034-01-01"}`},
		{"missing manufacturer", `{"serial_number":"SN-12345","cylinder_type":"13KG","capacity_kg":13,"manufacturer":" ","manufacturing_date":"2024-01-01","expiry_date":"2034-01-01"}`},
		{"bad date format", `{"serial_number":"SN-12345","cylinder_type":"13KG","capacity_kg":13,"manufacturer":"Acme","manufacturing_date":"01/01/2024","expiry_date":"2034-01-01"}`},
		{"expiry before manufacture", `{"serial_number":"SN-12345","cylinder_type":"13KG","capacity_kg":13,"manufacturer":"Acme","manufacturing_date":"2024-01-01","expiry_date":"2023-01-01"}`},
		{"future manufacture", `{"serial_number":"SN-12345","cylinder_type":"13KG","capacity_kg":13,"manufacturer":"Acme","manufacturing_date":"2099-01-01","expiry_date":"2109-01-01"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := jsonCtx(http.MethodPost, "/api/v1/cylinders", tc.body, 2, model.RoleDispatcher)
			require.NoError(t, h.RegisterCylinder(c))
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	// None of those reached the database.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterCylinderSuccess(t *testing.T) {
	h, mock := newCylinderEnv(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cylinders").WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec("INSERT INTO cylinder_history").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	body := `{"serial_number":"SN-12345","cylinder_type":"13KG","capacity_kg":13,` +
		`"manufacturer":"Acme Gas","manufacturing_date":"2024-01-01","expiry_date":"2034-01-01"}`
	c, rec := jsonCtx(http.MethodPost, "/api/v1/cylinders", body, 2, model.RoleDispatcher)
	require.NoError(t, h.RegisterCylinder(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeBody(t, rec)
	cyl := resp["cylinder"].(map[string]any)
	require.Equal(t, float64(42), cyl["id"])
	require.Equal(t, "SN-12345", cyl["serial_number"])
	require.Equal(t, model.CylinderActive, cyl["status"])
	require.Equal(t, true, cyl["is_authentic"])
	require.NotContains(t, cyl, "secret_key")

	sec := resp["security"].(map[string]any)
	qr := sec["qr_code"].(string)
	rfid := sec["rfid_tag"].(string)
	require.True(t, strings.HasPrefix(qr, "QR-"))
	require.Len(t, qr, 19)
	require.True(t, strings.HasPrefix(rfid, "RFID-"))
	require.Len(t, rfid, 21)
	require.Contains(t, sec["auth_token"].(string), ":")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterCylinderDuplicateSerial(t *testing.T) {
	h, mock := newCylinderEnv(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cylinders").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'SN-12345' for key 'cylinders.serial_number'"))
	mock.ExpectRollback()

	body := `{"serial_number":"SN-12345","cylinder_type":"13KG","capacity_kg":13,` +
		`"manufacturer":"Acme Gas","manufacturing_date":"2024-01-01","expiry_date":"2034-01-01"}`
	c, rec := jsonCtx(http.MethodPost, "/api/v1/cylinders", body, 2, model.RoleDispatcher)
	require.NoError(t, h.RegisterCylinder(c))
	require.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterCylinderRetriesCodeCollision(t *testing.T) {
	h, mock := newCylinderEnv(t)

	// Two generated-code collisions inside one transaction, then success.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cylinders").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'QR-X' for key 'cylinders.qr_code'"))
	mock.ExpectExec("INSERT INTO cylinders").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'RFID-X' for key 'cylinders.rfid_tag'"))
	mock.ExpectExec("INSERT INTO cylinders").WillReturnResult(sqlmock.NewResult(43, 1))
	mock.ExpectExec("INSERT INTO cylinder_history").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	body := `{"serial_number":"SN-12346","cylinder_type":"6KG","capacity_kg":6,` +
		`"manufacturer":"Acme Gas","manufacturing_date":"2024-01-01","expiry_date":"2034-01-01"}`
	c, rec := jsonCtx(http.MethodPost, "/api/v1/cylinders", body, 2, model.RoleDispatcher)
	require.NoError(t, h.RegisterCylinder(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeBody(t, rec)
	require.Equal(t, float64(43), resp["cylinder"].(map[string]any)["id"])

	require.NoError(t, mock.ExpectationsWereMet())
}
