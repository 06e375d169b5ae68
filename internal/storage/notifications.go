package storage

import (
	"context"
	"fmt"

	"temporada/internal/core"
)

type notificationRow struct {
	ID            int64  `db:"id"`
	ReservationID int64  `db:"reservation_id"`
	Phone         string `db:"phone"`
	Body          string `db:"body"`
	Mode          string `db:"mode"`
	MessageID     string `db:"message_id"`
	Error         string `db:"error"`
	CreatedAt     string `db:"created_at"`
}

// RecordNotification appends a dispatch attempt to the notification log.
func (s *SQLiteRepository) RecordNotification(ctx context.Context, n core.Notification) (core.Notification, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO notifications
		(reservation_id, phone, body, mode, message_id, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ReservationID, n.Phone, n.Body, n.Mode, n.MessageID, n.Error, formatTime(n.CreatedAt))
	if err != nil {
		return core.Notification{}, fmt.Errorf("record notification: %w", mapConstraint(err))
	}
	if n.ID, err = res.LastInsertId(); err != nil {
		return core.Notification{}, fmt.Errorf("notification id: %w", err)
	}
	return n, nil
}

// ListNotifications returns the log of a reservation, newest first.
func (s *SQLiteRepository) ListNotifications(ctx context.Context, reservationID int64, limit int) ([]core.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, reservation_id, phone, body, mode, message_id, error, created_at
		FROM notifications WHERE reservation_id = ? ORDER BY id DESC LIMIT ?`, reservationID, limit); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]core.Notification, len(rows))
	for i, row := range rows {
		out[i] = core.Notification{
			ID:            row.ID,
			ReservationID: row.ReservationID,
			Phone:         row.Phone,
			Body:          row.Body,
			Mode:          row.Mode,
			MessageID:     row.MessageID,
			Error:         row.Error,
			CreatedAt:     parseTime(row.CreatedAt),
		}
	}
	return out, nil
}
