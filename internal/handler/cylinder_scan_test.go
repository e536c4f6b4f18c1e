package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/repository"
	"github.com/iliyamo/lpg-cylinder-tracking/internal/security"
)

const (
	testQR   = "QR-ABCDEF0123456789"
	testRFID = "RFID-ABCDEF0123456789"
)

var cylinderCols = []string{
	"id", "uuid", "serial_number", "qr_code", "rfid_tag", "cylinder_type", "capacity_kg",
	"manufacturer", "manufacturing_date", "expiry_date", "status", "current_customer_id",
	"current_order_id", "last_known_location", "last_inspection_date", "next_inspection_date",
	"total_fills", "total_scans", "is_authentic", "is_tampered", "tamper_notes", "auth_hash",
	"secret_key", "last_scanned_at", "last_scanned_by", "created_at", "updated_at",
}

// cylinderRow builds one result row for an active, authentic cylinder.
// Mutate fields through the arguments to model tampered or expired ones.
func cylinderRow(tampered bool, expiry time.Time) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(cylinderCols).AddRow(
		7, "uuid-7", "SN-001", testQR, testRFID, "13KG", 13.0,
		"Acme Gas", now.AddDate(-2, 0, 0), expiry, model.CylinderActive, nil,
		nil, "", nil, nil,
		0, 3, true, tampered, "", "deadbeef",
		"secret", nil, nil, now, now,
	)
}

func newCylinderEnv(t *testing.T) (*CylinderHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	h := NewCylinderHandler(
		repository.NewCylinderRepo(db),
		repository.NewScanRepo(db),
		repository.NewHistoryRepo(db),
		repository.NewOrderRepo(db),
		repository.NewUserRepo(db),
		security.NewDetector(),
	)
	return h, mock
}

func jsonCtx(method, target, body string, userID uint64, role string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", userID)
	c.Set("role", role)
	return c, rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// expectScanWrites registers the transactional write sequence every
// resolved scan performs: lock the row, append the scan, bump the
// counters, append the history event, commit.
func expectScanWrites(mock sqlmock.Sqlmock, row *sqlmock.Rows) {
	mock.ExpectBegin()
	mock.ExpectQuery("FROM cylinders WHERE id=\\? FOR UPDATE").WillReturnRows(row)
	mock.ExpectExec("INSERT INTO cylinder_scans").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE cylinders SET total_scans = total_scans \\+ 1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO cylinder_history").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}

func TestScanCylinderRejectsBadInput(t *testing.T) {
	h, mock := newCylinderEnv(t)

	// Short code: rejected before touching the database.
	c, rec := jsonCtx(http.MethodPost, "/api/v1/cylinders/scan",
		`{"code":"QR-1","scan_type":"QR"}`, 9, model.RoleDriver)
	require.NoError(t, h.ScanCylinder(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = jsonCtx(http.MethodPost, "/api/v1/cylinders/scan",
		`{"code":"`+testQR+`","scan_type":"BARCODE"}`, 9, model.RoleDriver)
	require.NoError(t, h.ScanCylinder(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = jsonCtx(http.MethodPost, "/api/v1/cylinders/scan",
		`{"code":"`+testQR+`","scan_type":"QR","latitude":91}`, 9, model.RoleDriver)
	require.NoError(t, h.ScanCylinder(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanCylinderUnknownCodeWritesNothing(t *testing.T) {
	h, mock := newCylinderEnv(t)

	mock.ExpectQuery("FROM cylinders WHERE qr_code=\\? LIMIT 1").
		WithArgs("QR-DOESNOTEXIST").
		WillReturnRows(sqlmock.NewRows(cylinderCols))

	c, rec := jsonCtx(http.MethodPost, "/api/v1/cylinders/scan",
		`{"code":"qr-doesnotexist","scan_type":"QR"}`, 9, model.RoleDriver)
	require.NoError(t, h.ScanCylinder(c))
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, false, body["verified"])
	require.Equal(t, model.ScanFailed, body["scan_result"])
	require.Equal(t, "Cylinder not found", body["message"])

	// No inserts or updates were expected; a write would fail the mock.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanCylinderSuccess(t *testing.T) {
	h, mock := newCylinderEnv(t)
	expiry := time.Now().UTC().AddDate(5, 0, 0)

	mock.ExpectQuery("FROM cylinders WHERE qr_code=\\? LIMIT 1").
		WithArgs(testQR).
		WillReturnRows(cylinderRow(false, expiry))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM cylinder_scans").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	expectScanWrites(mock, cylinderRow(false, expiry))

	c, rec := jsonCtx(http.MethodPost, "/api/v1/cylinders/scan",
		`{"code":"`+testQR+`","scan_type":"QR","location":"Depot 4"}`, 9, model.RoleDriver)
	require.NoError(t, h.ScanCylinder(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, true, body["verified"])
	require.Equal(t, model.ScanSuccess, body["scan_result"])
	require.Equal(t, security.MsgVerified, body["message"])
	require.NotContains(t, body, "warning")

	cyl := body["cylinder"].(map[string]any)
	require.Equal(t, "SN-001", cyl["serial_number"])
	sec := body["security"].(map[string]any)
	require.Equal(t, true, sec["is_authentic"])
	token, _ := sec["auth_token"].(string)
	require.Contains(t, token, ":")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanCylinderTamperedStillRecorded(t *testing.T) {
	h, mock := newCylinderEnv(t)
	expiry := time.Now().UTC().AddDate(5, 0, 0)

	mock.ExpectQuery("FROM cylinders WHERE qr_code=\\? LIMIT 1").
		WithArgs(testQR).
		WillReturnRows(cylinderRow(true, expiry))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM cylinder_scans").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	expectScanWrites(mock, cylinderRow(true, expiry))

	c, rec := jsonCtx(http.MethodPost, "/api/v1/cylinders/scan",
		`{"code":"`+testQR+`","scan_type":"QR"}`, 9, model.RoleDriver)
	require.NoError(t, h.ScanCylinder(c))

	// A failed verification is still a completed, recorded scan.
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, false, body["verified"])
	require.Equal(t, model.ScanTampered, body["scan_result"])
	require.Equal(t, security.MsgTampered, body["message"])
	sec := body["security"].(map[string]any)
	require.Nil(t, sec["auth_token"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanCylinderExpired(t *testing.T) {
	h, mock := newCylinderEnv(t)
	expiry := time.Now().UTC().AddDate(0, 0, -1)

	mock.ExpectQuery("FROM cylinders WHERE qr_code=\\? LIMIT 1").
		WithArgs(testQR).
		WillReturnRows(cylinderRow(false, expiry))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM cylinder_scans").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	expectScanWrites(mock, cylinderRow(false, expiry))

	c, rec := jsonCtx(http.MethodPost, "/api/v1/cylinders/scan",
		`{"code":"`+testQR+`","scan_type":"QR"}`, 9, model.RoleDriver)
	require.NoError(t, h.ScanCylinder(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, false, body["verified"])
	require.Equal(t, model.ScanExpired, body["scan_result"])
	require.Equal(t, security.MsgExpired, body["message"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanCylinderSixthRapidScanFlagged(t *testing.T) {
	h, mock := newCylinderEnv(t)
	expiry := time.Now().UTC().AddDate(5, 0, 0)

	mock.ExpectQuery("FROM cylinders WHERE qr_code=\\? LIMIT 1").
		WithArgs(testQR).
		WillReturnRows(cylinderRow(false, expiry))
	// Five scans already in the window makes this one the sixth.
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM cylinder_scans").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(5))
	expectScanWrites(mock, cylinderRow(false, expiry))

	c, rec := jsonCtx(http.MethodPost, "/api/v1/cylinders/scan",
		`{"code":"`+testQR+`","scan_type":"QR"}`, 9, model.RoleDriver)
	require.NoError(t, h.ScanCylinder(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, true, body["verified"])
	warning, ok := body["warning"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, warning["is_suspicious"])
	require.Equal(t, security.ReasonRapidScans, warning["reason"])

	require.NoError(t, mock.ExpectationsWereMet())
}
