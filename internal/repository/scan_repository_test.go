package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
)

var scanCols = []string{
	"id", "cylinder_id", "scanned_by_id", "scanned_by_role", "scan_type", "scan_result",
	"scanned_code", "auth_token", "latitude", "longitude", "location_name", "order_id",
	"delivery_id", "ip_address", "user_agent", "is_suspicious", "suspicious_reason",
	"notes", "created_at",
}

func TestScanInsertTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewScanRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cylinder_scans").WillReturnResult(sqlmock.NewResult(11, 1))
	tx, err := db.Begin()
	require.NoError(t, err)

	s := &model.CylinderScan{
		CylinderID:    7,
		ScannedByRole: model.RoleDriver,
		ScanType:      model.ScanTypeQR,
		ScanResult:    model.ScanSuccess,
		ScannedCode:   "QR-ABCDEF0123456789",
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, repo.InsertTx(context.Background(), tx, s))
	require.Equal(t, uint64(11), s.ID)
	_ = tx.Rollback()

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanCountSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewScanRepo(db)
	since := time.Now().UTC().Add(-5 * time.Minute)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM cylinder_scans WHERE cylinder_id=\\? AND created_at >= \\?").
		WithArgs(7, since).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(5))

	n, err := repo.CountSince(context.Background(), 7, since)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanLatestWithCoordinates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewScanRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery("latitude IS NOT NULL AND longitude IS NOT NULL").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(scanCols).AddRow(
			3, 7, 9, model.RoleDriver, model.ScanTypeQR, model.ScanSuccess,
			"QR-ABCDEF0123456789", "", -1.2921, 36.8219, "Nairobi depot", nil,
			nil, "10.0.0.1", "scanner/1.0", false, "",
			"", now,
		))
	s, err := repo.LatestWithCoordinates(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, s)
	require.NotNil(t, s.Latitude)
	require.InDelta(t, -1.2921, *s.Latitude, 1e-9)

	// No prior scan with coordinates is not an error.
	mock.ExpectQuery("latitude IS NOT NULL AND longitude IS NOT NULL").
		WithArgs(8).
		WillReturnRows(sqlmock.NewRows(scanCols))
	s, err = repo.LatestWithCoordinates(context.Background(), 8)
	require.NoError(t, err)
	require.Nil(t, s)

	require.NoError(t, mock.ExpectationsWereMet())
}
