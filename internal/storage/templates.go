package storage

import (
	"context"
	"fmt"
	"time"

	"temporada/internal/core"
)

// GetTemplate returns the singleton message template.
func (s *SQLiteRepository) GetTemplate(ctx context.Context) (core.MessageTemplate, error) {
	var row struct {
		Body      string `db:"body"`
		UpdatedAt string `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT body, updated_at FROM message_template WHERE id = 1`)
	if isNoRows(err) {
		return core.MessageTemplate{}, &core.NotFoundError{Entity: "message_template", ID: 1}
	}
	if err != nil {
		return core.MessageTemplate{}, fmt.Errorf("get template: %w", err)
	}
	return core.MessageTemplate{Body: row.Body, UpdatedAt: parseTime(row.UpdatedAt)}, nil
}

// UpdateTemplate replaces the template body. Callers validate placeholders.
func (s *SQLiteRepository) UpdateTemplate(ctx context.Context, body string) (core.MessageTemplate, error) {
	now := s.now()
	_, err := s.db.ExecContext(ctx, `INSERT INTO message_template (id, body, updated_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		body, formatTime(now))
	if err != nil {
		return core.MessageTemplate{}, fmt.Errorf("update template: %w", err)
	}
	s.logger.InfoContext(ctx, "Message template updated", "length", len(body))
	return core.MessageTemplate{Body: body, UpdatedAt: now.UTC().Truncate(time.Second)}, nil
}
