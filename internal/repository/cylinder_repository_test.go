package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
)

var cylinderCols = []string{
	"id", "uuid", "serial_number", "qr_code", "rfid_tag", "cylinder_type", "capacity_kg",
	"manufacturer", "manufacturing_date", "expiry_date", "status", "current_customer_id",
	"current_order_id", "last_known_location", "last_inspection_date", "next_inspection_date",
	"total_fills", "total_scans", "is_authentic", "is_tampered", "tamper_notes", "auth_hash",
	"secret_key", "last_scanned_at", "last_scanned_by", "created_at", "updated_at",
}

func cylinderRow() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(cylinderCols).AddRow(
		7, "uuid-7", "SN-001", "QR-ABCDEF0123456789", "RFID-ABCDEF0123456789", "13KG", 13.0,
		"Acme Gas", now.AddDate(-2, 0, 0), now.AddDate(8, 0, 0), model.CylinderActive, nil,
		nil, "", nil, nil,
		0, 3, true, false, "", "deadbeef",
		"secret", nil, nil, now, now,
	)
}

func TestCylinderCreateTxSplitsDuplicateKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewCylinderRepo(db)
	ctx := context.Background()

	c := &model.Cylinder{
		UUID:              "uuid-1",
		SerialNumber:      "SN-001",
		QRCode:            "QR-ABCDEF0123456789",
		RFIDTag:           "RFID-ABCDEF0123456789",
		CylinderType:      "13KG",
		CapacityKG:        13,
		Manufacturer:      "Acme Gas",
		ManufacturingDate: time.Now().UTC(),
		ExpiryDate:        time.Now().UTC().AddDate(10, 0, 0),
		Status:            model.CylinderActive,
		IsAuthentic:       true,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cylinders").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'SN-001' for key 'cylinders.serial_number'"))
	tx, err := db.Begin()
	require.NoError(t, err)
	require.ErrorIs(t, repo.CreateTx(ctx, tx, c), ErrSerialExists)
	_ = tx.Rollback()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cylinders").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'QR-..' for key 'cylinders.qr_code'"))
	tx, err = db.Begin()
	require.NoError(t, err)
	require.ErrorIs(t, repo.CreateTx(ctx, tx, c), ErrCodeCollision)
	_ = tx.Rollback()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cylinders").WillReturnResult(sqlmock.NewResult(42, 1))
	tx, err = db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.CreateTx(ctx, tx, c))
	require.Equal(t, uint64(42), c.ID)
	_ = tx.Rollback()

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCylinderGetByCodeMatchesScanType(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewCylinderRepo(db)
	ctx := context.Background()

	mock.ExpectQuery("WHERE qr_code=\\? LIMIT 1").
		WithArgs("QR-ABCDEF0123456789").
		WillReturnRows(cylinderRow())
	c, err := repo.GetByCode(ctx, "QR-ABCDEF0123456789", model.ScanTypeQR)
	require.NoError(t, err)
	require.Equal(t, uint64(7), c.ID)

	mock.ExpectQuery("WHERE rfid_tag=\\? LIMIT 1").
		WithArgs("RFID-ABCDEF0123456789").
		WillReturnRows(cylinderRow())
	_, err = repo.GetByCode(ctx, "RFID-ABCDEF0123456789", model.ScanTypeRFID)
	require.NoError(t, err)

	// Manual entry tries both columns.
	mock.ExpectQuery("WHERE \\(qr_code=\\? OR rfid_tag=\\?\\) LIMIT 1").
		WithArgs("QR-ABCDEF0123456789", "QR-ABCDEF0123456789").
		WillReturnRows(cylinderRow())
	_, err = repo.GetByCode(ctx, "QR-ABCDEF0123456789", model.ScanTypeManual)
	require.NoError(t, err)

	mock.ExpectQuery("WHERE qr_code=\\? LIMIT 1").
		WithArgs("QR-MISSING").
		WillReturnRows(sqlmock.NewRows(cylinderCols))
	_, err = repo.GetByCode(ctx, "QR-MISSING", model.ScanTypeQR)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCylinderApplyScanTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewCylinderRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()
	by := uint64(9)

	// With a location the update also rewrites last_known_location.
	mock.ExpectBegin()
	mock.ExpectExec("total_scans = total_scans \\+ 1.+last_known_location=\\?").
		WithArgs(now, &by, "Depot 4", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.ApplyScanTx(ctx, tx, 7, &by, "Depot 4", now))
	_ = tx.Rollback()

	// Without one the location column is left alone.
	mock.ExpectBegin()
	mock.ExpectExec("total_scans = total_scans \\+ 1").
		WithArgs(now, &by, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	tx, err = db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.ApplyScanTx(ctx, tx, 7, &by, "", now))
	_ = tx.Rollback()

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCylinderUpdateStatusTxCountsRefills(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewCylinderRepo(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("SET status=\\?.+total_fills = total_fills \\+ 1").
		WithArgs(model.CylinderFilled, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatusTx(ctx, tx, 7, model.CylinderFilled, ""))
	_ = tx.Rollback()

	mock.ExpectBegin()
	mock.ExpectExec("SET status=\\?, updated_at=UTC_TIMESTAMP\\(\\) WHERE id=\\?").
		WithArgs(model.CylinderEmpty, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	tx, err = db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatusTx(ctx, tx, 7, model.CylinderEmpty, ""))
	_ = tx.Rollback()

	require.NoError(t, mock.ExpectationsWereMet())
}
