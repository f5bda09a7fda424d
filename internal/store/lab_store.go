package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/hdcharts/internal/model"
)

// GetLabEntries returns the user's lab entries ordered by sort_order.
func (s *SQLStore) GetLabEntries(
	ctx context.Context,
	userID string,
) ([]model.LabEntry, error) {
	var entries []model.LabEntry
	err := s.db.SelectContext(ctx, &entries, s.db.Rebind(`
		SELECT id, user_id, patient, test, value, unit,
			collected_on, notes, sort_order, created_at
		FROM lab_entries
		WHERE user_id = ?
		ORDER BY sort_order, id`), userID)
	if err != nil {
		return nil, fmt.Errorf("querying lab entries: %w", err)
	}
	return entries, nil
}

// ReplaceLabEntries replaces all of the user's lab entries in one
// transaction. An empty slice clears them.
func (s *SQLStore) ReplaceLabEntries(
	ctx context.Context,
	userID string,
	entries []model.LabEntry,
) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			tx.Rebind("DELETE FROM lab_entries WHERE user_id = ?"), userID); err != nil {
			return fmt.Errorf("clearing lab entries: %w", err)
		}

		stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
			INSERT INTO lab_entries (
				user_id, patient, test, value, unit,
				collected_on, notes, sort_order, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("preparing lab entry insert: %w", err)
		}
		defer stmt.Close()

		now := nowUTC()
		for _, e := range entries {
			createdAt := e.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}
			_, err := stmt.ExecContext(ctx,
				userID, e.Patient, e.Test, e.Value, e.Unit,
				e.CollectedOn, e.Notes, e.SortOrder, createdAt.UTC(),
			)
			if err != nil {
				return fmt.Errorf("inserting lab entry %q: %w", e.Test, err)
			}
		}
		return nil
	})
}

// DeleteLabEntry removes one of the user's lab entries.
func (s *SQLStore) DeleteLabEntry(ctx context.Context, userID string, id int64) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(
		"DELETE FROM lab_entries WHERE id = ? AND user_id = ?"), id, userID)
	if err != nil {
		return fmt.Errorf("deleting lab entry %d: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("lab entry %d: %w", id, ErrNotFound)
	}
	return nil
}
