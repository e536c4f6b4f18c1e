package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
)

func cylinderStatusRow(status string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(cylinderCols).AddRow(
		7, "uuid-7", "SN-001", testQR, testRFID, "13KG", 13.0,
		"Acme Gas", now.AddDate(-2, 0, 0), now.AddDate(8, 0, 0), status, nil,
		nil, "", nil, nil,
		0, 3, true, false, "", "deadbeef",
		"secret", nil, nil, now, now,
	)
}

func TestUpdateCylinderStatusSuccess(t *testing.T) {
	h, mock := newCylinderEnv(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM cylinders WHERE id=\\? FOR UPDATE").
		WillReturnRows(cylinderStatusRow(model.CylinderActive))
	mock.ExpectExec("SET status=\\?.+total_fills = total_fills \\+ 1").
		WithArgs(model.CylinderFilled, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO cylinder_history").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("FROM cylinders WHERE id=\\? LIMIT 1").
		WillReturnRows(cylinderStatusRow(model.CylinderFilled))

	c, rec := jsonCtx(http.MethodPatch, "/api/v1/cylinders/7/status",
		`{"status":"filled"}`, 2, model.RoleDispatcher)
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, h.UpdateCylinderStatus(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, model.CylinderFilled, body["cylinder"].(map[string]any)["status"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCylinderStatusRejectsIllegalTransition(t *testing.T) {
	h, mock := newCylinderEnv(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM cylinders WHERE id=\\? FOR UPDATE").
		WillReturnRows(cylinderStatusRow(model.CylinderRetired))
	mock.ExpectRollback()

	c, rec := jsonCtx(http.MethodPatch, "/api/v1/cylinders/7/status",
		`{"status":"FILLED"}`, 2, model.RoleDispatcher)
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, h.UpdateCylinderStatus(c))
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, "cannot transition from RETIRED to FILLED", body["error"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCylinderStatusUnknownStatus(t *testing.T) {
	h, mock := newCylinderEnv(t)

	c, rec := jsonCtx(http.MethodPatch, "/api/v1/cylinders/7/status",
		`{"status":"LOST"}`, 2, model.RoleDispatcher)
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, h.UpdateCylinderStatus(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkTamperedRequiresNotes(t *testing.T) {
	h, mock := newCylinderEnv(t)

	c, rec := jsonCtx(http.MethodPost, "/api/v1/cylinders/7/tamper",
		`{"notes":"  "}`, 2, model.RoleDispatcher)
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, h.MarkTampered(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkTamperedSetsStickyFlag(t *testing.T) {
	h, mock := newCylinderEnv(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM cylinders WHERE id=\\? FOR UPDATE").
		WillReturnRows(cylinderStatusRow(model.CylinderActive))
	mock.ExpectExec("SET is_tampered=1").
		WithArgs("Valve seal broken", "Valve seal broken", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO cylinder_history").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("FROM cylinders WHERE id=\\? LIMIT 1").
		WillReturnRows(cylinderRow(true, time.Now().UTC().AddDate(8, 0, 0)))

	c, rec := jsonCtx(http.MethodPost, "/api/v1/cylinders/7/tamper",
		`{"notes":"Valve seal broken"}`, 2, model.RoleDispatcher)
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, h.MarkTampered(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, true, body["cylinder"].(map[string]any)["is_tampered"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordInspectionFailureRevokesAuthenticity(t *testing.T) {
	h, mock := newCylinderEnv(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM cylinders WHERE id=\\? FOR UPDATE").
		WillReturnRows(cylinderStatusRow(model.CylinderActive))
	mock.ExpectExec("is_authentic=0").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO cylinder_history").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("FROM cylinders WHERE id=\\? LIMIT 1").
		WillReturnRows(cylinderStatusRow(model.CylinderActive))

	c, rec := jsonCtx(http.MethodPost, "/api/v1/cylinders/7/inspection",
		`{"passed":false}`, 2, model.RoleDispatcher)
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, h.RecordInspection(c))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}
