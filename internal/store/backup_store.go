package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/hdcharts/internal/model"
)

// CreateChecklistBackup inserts b as the newest entry of the user's
// backup ring and evicts the oldest entries beyond capacity. If b.ID is
// empty a time-ordered id is generated; a zero CreatedAt is set to now.
func (s *SQLStore) CreateChecklistBackup(
	ctx context.Context,
	b model.ChecklistBackup,
	capacity int,
) error {
	if b.ID == "" {
		b.ID = generateID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = nowUTC()
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO checklist_backups
				(id, user_id, created_at, checklist_count, item_count, snapshot)
			VALUES (?, ?, ?, ?, ?, ?)`),
			b.ID, b.UserID, b.CreatedAt.UTC(), b.ChecklistCount, b.ItemCount, b.Snapshot,
		)
		if err != nil {
			return fmt.Errorf("inserting checklist backup: %w", err)
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			DELETE FROM checklist_backups
			WHERE user_id = ? AND id NOT IN (
				SELECT id FROM checklist_backups
				WHERE user_id = ?
				ORDER BY created_at DESC, id DESC
				LIMIT ?
			)`), b.UserID, b.UserID, capacity)
		if err != nil {
			return fmt.Errorf("evicting checklist backups: %w", err)
		}
		return nil
	})
}

// GetChecklistBackups returns up to limit backup summaries for the user,
// newest first. Snapshot is not loaded.
func (s *SQLStore) GetChecklistBackups(
	ctx context.Context,
	userID string,
	limit int,
) ([]model.ChecklistBackup, error) {
	var backups []model.ChecklistBackup
	err := s.db.SelectContext(ctx, &backups, s.db.Rebind(`
		SELECT id, user_id, created_at, checklist_count, item_count
		FROM checklist_backups
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying checklist backups: %w", err)
	}
	return backups, nil
}

// GetChecklistBackup returns one backup including its snapshot. A backup
// owned by another user is reported as ErrNotFound.
func (s *SQLStore) GetChecklistBackup(
	ctx context.Context,
	userID string,
	id string,
) (*model.ChecklistBackup, error) {
	var b model.ChecklistBackup
	err := s.db.GetContext(ctx, &b, s.db.Rebind(`
		SELECT id, user_id, created_at, checklist_count, item_count, snapshot
		FROM checklist_backups
		WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return nil, fmt.Errorf("getting checklist backup %s: %w", id, notFound(err))
	}
	return &b, nil
}

// BackupDocument copies the current (kind, user) document into the
// document backup ring and evicts entries beyond capacity. It reports
// false when there is no current document to copy.
func (s *SQLStore) BackupDocument(
	ctx context.Context,
	kind model.DocumentKind,
	userID string,
	capacity int,
) (bool, error) {
	copied := false
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var data string
		err := tx.GetContext(ctx, &data, tx.Rebind(`
			SELECT data FROM documents WHERE type = ? AND user_id = ?`),
			string(kind), userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("reading %s document: %w", kind, err)
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO document_backups (id, type, user_id, data, created_at)
			VALUES (?, ?, ?, ?, ?)`),
			generateID(), string(kind), userID, data, nowUTC(),
		)
		if err != nil {
			return fmt.Errorf("inserting %s document backup: %w", kind, err)
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			DELETE FROM document_backups
			WHERE type = ? AND user_id = ? AND id NOT IN (
				SELECT id FROM document_backups
				WHERE type = ? AND user_id = ?
				ORDER BY created_at DESC, id DESC
				LIMIT ?
			)`), string(kind), userID, string(kind), userID, capacity)
		if err != nil {
			return fmt.Errorf("evicting %s document backups: %w", kind, err)
		}

		copied = true
		return nil
	})
	return copied, err
}

// GetDocumentBackups returns up to limit backups of a document, newest
// first. Data is not loaded.
func (s *SQLStore) GetDocumentBackups(
	ctx context.Context,
	kind model.DocumentKind,
	userID string,
	limit int,
) ([]model.DocumentBackup, error) {
	var backups []model.DocumentBackup
	err := s.db.SelectContext(ctx, &backups, s.db.Rebind(`
		SELECT id, type, user_id, created_at
		FROM document_backups
		WHERE type = ? AND user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`), string(kind), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying %s document backups: %w", kind, err)
	}
	return backups, nil
}

// GetDocumentBackup returns one document backup including its data,
// scoped to kind and user.
func (s *SQLStore) GetDocumentBackup(
	ctx context.Context,
	kind model.DocumentKind,
	userID string,
	id string,
) (*model.DocumentBackup, error) {
	var b model.DocumentBackup
	err := s.db.GetContext(ctx, &b, s.db.Rebind(`
		SELECT id, type, user_id, data, created_at
		FROM document_backups
		WHERE id = ? AND type = ? AND user_id = ?`), id, string(kind), userID)
	if err != nil {
		return nil, fmt.Errorf("getting %s document backup %s: %w", kind, id, notFound(err))
	}
	return &b, nil
}
