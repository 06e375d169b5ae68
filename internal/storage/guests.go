package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/text/cases"

	"temporada/internal/core"
	applog "temporada/internal/log"
)

type guestRow struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	Phone     string `db:"phone"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func (g guestRow) toCore() core.Guest {
	return core.Guest{
		ID:        g.ID,
		Name:      g.Name,
		Phone:     g.Phone,
		CreatedAt: parseTime(g.CreatedAt),
		UpdatedAt: parseTime(g.UpdatedAt),
	}
}

const guestColumns = `id, name, phone, created_at, updated_at`

// fold is case folding for search; a Caser is stateful so one is made per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// prepareGuest trims and normalises the guest before validation.
func (s *SQLiteRepository) prepareGuest(g core.Guest) (core.Guest, error) {
	g.Name = strings.Join(strings.Fields(g.Name), " ")
	g.Phone = core.NormalizePhone(g.Phone, s.opts.CountryCode)
	if err := g.Validate(); err != nil {
		return core.Guest{}, err
	}
	return g, nil
}

func (s *SQLiteRepository) CreateGuest(ctx context.Context, g core.Guest) (core.Guest, error) {
	g, err := s.prepareGuest(g)
	if err != nil {
		return core.Guest{}, err
	}
	var out core.Guest
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		out, err = s.insertGuest(ctx, tx, g)
		return err
	})
	if err != nil {
		return core.Guest{}, err
	}
	s.logger.InfoContext(ctx, "Guest saved", applog.FieldGuestID, out.ID, applog.FieldOperation, applog.OpCreate)
	return out, nil
}

func (s *SQLiteRepository) insertGuest(ctx context.Context, q queryer, g core.Guest) (core.Guest, error) {
	now := s.timestamp()
	res, err := q.ExecContext(ctx,
		`INSERT INTO guests (name, phone, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		g.Name, g.Phone, now, now)
	if err != nil {
		return core.Guest{}, fmt.Errorf("insert guest: %w", mapConstraint(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Guest{}, fmt.Errorf("guest id: %w", err)
	}
	return getGuest(ctx, q, id)
}

func getGuest(ctx context.Context, q queryer, id int64) (core.Guest, error) {
	var row guestRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+guestColumns+` FROM guests WHERE id = ?`, id)
	if isNoRows(err) {
		return core.Guest{}, &core.NotFoundError{Entity: "guest", ID: id}
	}
	if err != nil {
		return core.Guest{}, fmt.Errorf("get guest %d: %w", id, err)
	}
	return row.toCore(), nil
}

func (s *SQLiteRepository) GetGuest(ctx context.Context, id int64) (core.Guest, error) {
	return getGuest(ctx, s.db, id)
}

// FindGuestByPhone looks up a guest by exact normalised phone.
func (s *SQLiteRepository) FindGuestByPhone(ctx context.Context, phone string) (core.Guest, bool, error) {
	return findGuestByPhone(ctx, s.db, core.NormalizePhone(phone, s.opts.CountryCode))
}

func findGuestByPhone(ctx context.Context, q queryer, phone string) (core.Guest, bool, error) {
	var row guestRow
	err := sqlx.GetContext(ctx, q, &row,
		`SELECT `+guestColumns+` FROM guests WHERE phone = ? ORDER BY id LIMIT 1`, phone)
	if isNoRows(err) {
		return core.Guest{}, false, nil
	}
	if err != nil {
		return core.Guest{}, false, fmt.Errorf("find guest by phone: %w", err)
	}
	return row.toCore(), true, nil
}

func (s *SQLiteRepository) UpdateGuest(ctx context.Context, g core.Guest) (core.Guest, error) {
	id := g.ID
	g, err := s.prepareGuest(g)
	if err != nil {
		return core.Guest{}, err
	}
	var out core.Guest
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE guests SET name = ?, phone = ?, updated_at = ? WHERE id = ?`,
			g.Name, g.Phone, s.timestamp(), id)
		if err != nil {
			return fmt.Errorf("update guest %d: %w", id, mapConstraint(err))
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &core.NotFoundError{Entity: "guest", ID: id}
		}
		out, err = getGuest(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.Guest{}, err
	}
	s.logger.InfoContext(ctx, "Guest updated", applog.FieldGuestID, id, applog.FieldOperation, applog.OpUpdate)
	return out, nil
}

// DeleteGuest removes a guest. A guest with reservations is only removed
// when cascade is set, in which case its reservations go too; the IDs of
// the removed reservations are returned.
func (s *SQLiteRepository) DeleteGuest(ctx context.Context, id int64, cascade bool) ([]int64, error) {
	var removed []int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := getGuest(ctx, tx, id); err != nil {
			return err
		}
		if err := sqlx.SelectContext(ctx, tx, &removed,
			`SELECT id FROM reservations WHERE guest_id = ? ORDER BY id`, id); err != nil {
			return fmt.Errorf("list guest reservations: %w", err)
		}
		if len(removed) > 0 {
			if !cascade {
				return &core.ConflictError{
					Entity: "guest",
					ID:     id,
					Reason: fmt.Sprintf("hóspede possui %d reserva(s)", len(removed)),
				}
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE guest_id = ?`, id); err != nil {
				return fmt.Errorf("delete guest reservations: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM guests WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete guest %d: %w", id, mapConstraint(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Guest deleted",
		applog.FieldGuestID, id,
		applog.FieldOperation, applog.OpDelete,
		"cascaded_reservations", len(removed))
	return removed, nil
}

// ListGuests returns every guest ordered by name.
func (s *SQLiteRepository) ListGuests(ctx context.Context) ([]core.Guest, error) {
	var rows []guestRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT `+guestColumns+` FROM guests ORDER BY name COLLATE NOCASE, id`); err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	out := make([]core.Guest, len(rows))
	for i, row := range rows {
		out[i] = row.toCore()
	}
	return out, nil
}

// SearchGuests matches a case-insensitive substring of the name or a
// substring of the phone digits. An empty query returns every guest.
func (s *SQLiteRepository) SearchGuests(ctx context.Context, query string) ([]core.Guest, error) {
	all, err := s.ListGuests(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return all, nil
	}
	needle := fold(query)
	digits := core.Digits(query)

	var out []core.Guest
	for _, g := range all {
		if strings.Contains(fold(g.Name), needle) ||
			(digits != "" && strings.Contains(g.Phone, digits)) {
			out = append(out, g)
		}
	}
	return out, nil
}

// ReservationCounts returns the number of reservations per guest ID.
func (s *SQLiteRepository) ReservationCounts(ctx context.Context) (map[int64]int, error) {
	var rows []struct {
		GuestID int64 `db:"guest_id"`
		Count   int   `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT guest_id, COUNT(*) AS n FROM reservations GROUP BY guest_id`); err != nil {
		return nil, fmt.Errorf("count reservations: %w", err)
	}
	out := make(map[int64]int, len(rows))
	for _, row := range rows {
		out[row.GuestID] = row.Count
	}
	return out, nil
}
