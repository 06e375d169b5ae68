package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"temporada/internal/core"
	applog "temporada/internal/log"
)

type reservationRow struct {
	ID         int64  `db:"id"`
	GuestID    int64  `db:"guest_id"`
	CheckIn    string `db:"check_in"`
	CheckOut   string `db:"check_out"`
	Status     string `db:"status"`
	ValueCents int64  `db:"value_cents"`
	Notes      string `db:"notes"`
	CreatedAt  string `db:"created_at"`
	UpdatedAt  string `db:"updated_at"`
	GuestName  string `db:"guest_name"`
	GuestPhone string `db:"guest_phone"`
}

func (r reservationRow) toCore() core.Reservation {
	return core.Reservation{
		ID:        r.ID,
		GuestID:   r.GuestID,
		CheckIn:   parseDate(r.CheckIn),
		CheckOut:  parseDate(r.CheckOut),
		Status:    core.ReservationStatus(r.Status),
		Value:     core.Money{Cents: r.ValueCents},
		Notes:     r.Notes,
		CreatedAt: parseTime(r.CreatedAt),
		UpdatedAt: parseTime(r.UpdatedAt),
		Guest: core.Guest{
			ID:    r.GuestID,
			Name:  r.GuestName,
			Phone: r.GuestPhone,
		},
	}
}

const reservationSelect = `SELECT r.id, r.guest_id, r.check_in, r.check_out, r.status, r.value_cents,
	r.notes, r.created_at, r.updated_at, g.name AS guest_name, g.phone AS guest_phone
	FROM reservations r JOIN guests g ON g.id = r.guest_id`

// ReservationFilter narrows ListReservations. Zero fields are ignored.
// From/To select reservations whose stay intersects [From, To).
type ReservationFilter struct {
	From    core.Date
	To      core.Date
	Status  core.ReservationStatus
	GuestID int64
	Limit   int
	// Newest orders by check-in descending instead of ascending.
	Newest bool
}

// CreateReservation stores r. When newGuest is set, the guest is looked up
// by phone or created inside the same transaction, and r.GuestID is ignored.
func (s *SQLiteRepository) CreateReservation(ctx context.Context, r core.Reservation, newGuest *core.Guest) (core.Reservation, error) {
	r.Notes = strings.TrimSpace(r.Notes)
	if r.Status == "" {
		r.Status = core.StatusPending
	}
	if err := r.Validate(); err != nil {
		return core.Reservation{}, err
	}
	var guest *core.Guest
	if newGuest != nil {
		g, err := s.prepareGuest(*newGuest)
		if err != nil {
			return core.Reservation{}, err
		}
		guest = &g
	}

	var out core.Reservation
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if guest != nil {
			existing, found, err := findGuestByPhone(ctx, tx, guest.Phone)
			if err != nil {
				return err
			}
			if !found {
				if existing, err = s.insertGuest(ctx, tx, *guest); err != nil {
					return err
				}
			}
			r.GuestID = existing.ID
		} else if _, err := getGuest(ctx, tx, r.GuestID); err != nil {
			return err
		}

		if err := s.checkOverlap(ctx, tx, r); err != nil {
			return err
		}

		now := s.timestamp()
		res, err := tx.ExecContext(ctx, `INSERT INTO reservations
			(guest_id, check_in, check_out, status, value_cents, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.GuestID, r.CheckIn.String(), r.CheckOut.String(), string(r.Status), r.Value.Cents, r.Notes, now, now)
		if err != nil {
			return fmt.Errorf("insert reservation: %w", mapConstraint(err))
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reservation id: %w", err)
		}
		out, err = getReservation(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.Reservation{}, err
	}

	s.logger.InfoContext(ctx, "Reservation saved", s.reservationFields(out, applog.OpCreate)...)
	return out, nil
}

// UpdateReservation replaces every editable field of an existing reservation.
func (s *SQLiteRepository) UpdateReservation(ctx context.Context, r core.Reservation) (core.Reservation, error) {
	r.Notes = strings.TrimSpace(r.Notes)
	if err := r.Validate(); err != nil {
		return core.Reservation{}, err
	}
	var out core.Reservation
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := getReservation(ctx, tx, r.ID); err != nil {
			return err
		}
		if _, err := getGuest(ctx, tx, r.GuestID); err != nil {
			return err
		}
		if err := s.checkOverlap(ctx, tx, r); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE reservations SET
			guest_id = ?, check_in = ?, check_out = ?, status = ?, value_cents = ?, notes = ?, updated_at = ?
			WHERE id = ?`,
			r.GuestID, r.CheckIn.String(), r.CheckOut.String(), string(r.Status), r.Value.Cents, r.Notes, s.timestamp(), r.ID)
		if err != nil {
			return fmt.Errorf("update reservation %d: %w", r.ID, mapConstraint(err))
		}
		out, err = getReservation(ctx, tx, r.ID)
		return err
	})
	if err != nil {
		return core.Reservation{}, err
	}

	s.logger.InfoContext(ctx, "Reservation updated", s.reservationFields(out, applog.OpUpdate)...)
	return out, nil
}

// SetReservationStatus changes only the status of a reservation.
func (s *SQLiteRepository) SetReservationStatus(ctx context.Context, id int64, status core.ReservationStatus) (core.Reservation, error) {
	if !status.Valid() {
		return core.Reservation{}, &core.ValidationError{Field: "status", Message: "status inválido: " + string(status)}
	}
	var out core.Reservation
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		current, err := getReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		current.Status = status
		if err := s.checkOverlap(ctx, tx, current); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`,
			string(status), s.timestamp(), id); err != nil {
			return fmt.Errorf("update reservation status %d: %w", id, mapConstraint(err))
		}
		out, err = getReservation(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.Reservation{}, err
	}

	s.logger.InfoContext(ctx, "Reservation status changed", s.reservationFields(out, applog.OpUpdate)...)
	return out, nil
}

// DeleteReservation hard-deletes a reservation and returns what was removed.
func (s *SQLiteRepository) DeleteReservation(ctx context.Context, id int64) (core.Reservation, error) {
	var removed core.Reservation
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if removed, err = getReservation(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete reservation %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return core.Reservation{}, err
	}

	s.logger.InfoContext(ctx, "Reservation deleted", s.reservationFields(removed, applog.OpDelete)...)
	return removed, nil
}

func (s *SQLiteRepository) GetReservation(ctx context.Context, id int64) (core.Reservation, error) {
	return getReservation(ctx, s.db, id)
}

func getReservation(ctx context.Context, q queryer, id int64) (core.Reservation, error) {
	var row reservationRow
	err := sqlx.GetContext(ctx, q, &row, reservationSelect+` WHERE r.id = ?`, id)
	if isNoRows(err) {
		return core.Reservation{}, &core.NotFoundError{Entity: "reservation", ID: id}
	}
	if err != nil {
		return core.Reservation{}, fmt.Errorf("get reservation %d: %w", id, err)
	}
	return row.toCore(), nil
}

func (s *SQLiteRepository) ListReservations(ctx context.Context, f ReservationFilter) ([]core.Reservation, error) {
	var (
		where []string
		args  []any
	)
	if !f.To.IsZero() {
		where = append(where, "r.check_in < ?")
		args = append(args, f.To.String())
	}
	if !f.From.IsZero() {
		where = append(where, "r.check_out > ?")
		args = append(args, f.From.String())
	}
	if f.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, string(f.Status))
	}
	if f.GuestID != 0 {
		where = append(where, "r.guest_id = ?")
		args = append(args, f.GuestID)
	}

	query := reservationSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Newest {
		query += " ORDER BY r.check_in DESC, r.id DESC"
	} else {
		query += " ORDER BY r.check_in, r.id"
	}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	var rows []reservationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	out := make([]core.Reservation, len(rows))
	for i, row := range rows {
		out[i] = row.toCore()
	}
	return out, nil
}

// checkOverlap refuses a non-cancelled stay that shares a night with
// another non-cancelled stay, unless overlaps are allowed.
func (s *SQLiteRepository) checkOverlap(ctx context.Context, q queryer, r core.Reservation) error {
	if s.opts.AllowOverlap || !r.Active() {
		return nil
	}
	var ids []int64
	err := sqlx.SelectContext(ctx, q, &ids, `SELECT id FROM reservations
		WHERE status != ? AND check_in < ? AND check_out > ? AND id != ?
		ORDER BY check_in LIMIT 1`,
		string(core.StatusCancelled), r.CheckOut.String(), r.CheckIn.String(), r.ID)
	if err != nil {
		return fmt.Errorf("check overlap: %w", err)
	}
	if len(ids) > 0 {
		return &core.ConflictError{
			Entity: "reservation",
			ID:     ids[0],
			Reason: fmt.Sprintf("período conflita com a reserva #%d", ids[0]),
		}
	}
	return nil
}

func (s *SQLiteRepository) reservationFields(r core.Reservation, op string) []any {
	return applog.NewFields().
		WithReservation(r.ID, r.GuestID, r.CheckIn.String(), r.CheckOut.String(), string(r.Status), r.Value.Cents).
		WithOperation(op).
		ToSlice()
}
