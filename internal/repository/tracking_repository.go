package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/lpg-cylinder-tracking/internal/model"
)

// TrackingRepo provides data access to the tracking_logs table.
type TrackingRepo struct {
	db *sql.DB
}

// NewTrackingRepo returns a new TrackingRepo bound to the provided database.
func NewTrackingRepo(db *sql.DB) *TrackingRepo { return &TrackingRepo{db: db} }

// Create appends one position report and fills in its ID.
func (r *TrackingRepo) Create(ctx context.Context, t *model.TrackingLog) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tracking_logs (delivery_id, latitude, longitude, speed, heading, accuracy)
		 VALUES (?,?,?,?,?,?)`,
		t.DeliveryID, t.Latitude, t.Longitude, t.Speed, t.Heading, t.Accuracy)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// ListByDelivery returns one page of a delivery's position reports,
// newest first, plus the total count.
func (r *TrackingRepo) ListByDelivery(ctx context.Context, deliveryID uint64, page, pageSize int) ([]model.TrackingLog, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tracking_logs WHERE delivery_id=?", deliveryID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, delivery_id, latitude, longitude, timestamp, speed, heading, accuracy
		 FROM tracking_logs WHERE delivery_id=?
		 ORDER BY timestamp DESC LIMIT ? OFFSET ?`,
		deliveryID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.TrackingLog
	for rows.Next() {
		var (
			t        model.TrackingLog
			speed    sql.NullFloat64
			heading  sql.NullFloat64
			accuracy sql.NullFloat64
		)
		if err := rows.Scan(&t.ID, &t.DeliveryID, &t.Latitude, &t.Longitude, &t.Timestamp,
			&speed, &heading, &accuracy); err != nil {
			return nil, 0, err
		}
		if speed.Valid {
			v := speed.Float64
			t.Speed = &v
		}
		if heading.Valid {
			v := heading.Float64
			t.Heading = &v
		}
		if accuracy.Valid {
			v := accuracy.Float64
			t.Accuracy = &v
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
