package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/hdcharts/internal/model"
)

// GetChecklists returns the user's checklists ordered by position.
// Folders and Items are left empty; see GetFolders and GetItems.
func (s *SQLStore) GetChecklists(
	ctx context.Context,
	userID string,
) ([]model.Checklist, error) {
	var checklists []model.Checklist
	err := s.db.SelectContext(ctx, &checklists, s.db.Rebind(`
		SELECT id, user_id, name, role, position, created_at
		FROM checklists
		WHERE user_id = ?
		ORDER BY position, id`), userID)
	if err != nil {
		return nil, fmt.Errorf("querying checklists: %w", err)
	}
	return checklists, nil
}

// GetFolders returns the folders of the given checklists. Only checklists
// owned by userID contribute rows; an empty id list yields no rows.
func (s *SQLStore) GetFolders(
	ctx context.Context,
	userID string,
	checklistIDs []int64,
) ([]model.Folder, error) {
	if len(checklistIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT f.id, f.checklist_id, f.name, f.sort_order
		FROM checklist_folders f
		INNER JOIN checklists c ON c.id = f.checklist_id
		WHERE c.user_id = ? AND f.checklist_id IN (?)
		ORDER BY f.checklist_id, f.sort_order, f.id`, userID, checklistIDs)
	if err != nil {
		return nil, fmt.Errorf("building folder query: %w", err)
	}

	var folders []model.Folder
	if err := s.db.SelectContext(ctx, &folders, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying folders: %w", err)
	}
	return folders, nil
}

// GetItems returns the items of the given checklists, scoped to userID.
func (s *SQLStore) GetItems(
	ctx context.Context,
	userID string,
	checklistIDs []int64,
) ([]model.Item, error) {
	if len(checklistIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT i.id, i.checklist_id, i.folder_id, i.text, i.url, i.sort_order
		FROM checklist_items i
		INNER JOIN checklists c ON c.id = i.checklist_id
		WHERE c.user_id = ? AND i.checklist_id IN (?)
		ORDER BY i.checklist_id, i.sort_order, i.id`, userID, checklistIDs)
	if err != nil {
		return nil, fmt.Errorf("building item query: %w", err)
	}

	var items []model.Item
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	return items, nil
}

// RewriteChecklists deletes every checklist owned by userID (cascading to
// folders and items) and then calls fill to insert the replacement rows.
// Both happen in one transaction: if fill fails the previous rows remain.
func (s *SQLStore) RewriteChecklists(
	ctx context.Context,
	userID string,
	fill func(ChecklistWriter) error,
) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			tx.Rebind("DELETE FROM checklists WHERE user_id = ?"), userID); err != nil {
			return fmt.Errorf("deleting checklists: %w", err)
		}
		return fill(&checklistWriter{tx: tx, userID: userID})
	})
}

// checklistWriter binds inserts to one transaction and one owner.
type checklistWriter struct {
	tx     *sqlx.Tx
	userID string
}

func (w *checklistWriter) InsertChecklist(ctx context.Context, c model.Checklist) (int64, error) {
	id, err := insertReturningID(ctx, w.tx, `
		INSERT INTO checklists (user_id, name, role, position, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		w.userID, c.Name, c.Role, c.Position, nowUTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting checklist %q: %w", c.Name, err)
	}
	return id, nil
}

func (w *checklistWriter) InsertFolder(ctx context.Context, f model.Folder) (int64, error) {
	id, err := insertReturningID(ctx, w.tx, `
		INSERT INTO checklist_folders (checklist_id, name, sort_order)
		VALUES (?, ?, ?)
		RETURNING id`,
		f.ChecklistID, f.Name, f.SortOrder,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting folder %q: %w", f.Name, err)
	}
	return id, nil
}

func (w *checklistWriter) InsertItem(ctx context.Context, it model.Item) (int64, error) {
	id, err := insertReturningID(ctx, w.tx, `
		INSERT INTO checklist_items (checklist_id, folder_id, text, url, sort_order)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		it.ChecklistID, it.FolderID, it.Text, it.URL, it.SortOrder,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting item %q: %w", it.Text, err)
	}
	return id, nil
}

// GetCompletions returns the completions recorded on date for the given
// checklists, scoped to userID.
func (s *SQLStore) GetCompletions(
	ctx context.Context,
	userID string,
	checklistIDs []int64,
	date string,
) ([]model.Completion, error) {
	if len(checklistIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT user_id, checklist_id, item_id, completion_date, completed_at
		FROM checklist_completions
		WHERE user_id = ? AND completion_date = ? AND checklist_id IN (?)
		ORDER BY checklist_id, completed_at, item_id`, userID, date, checklistIDs)
	if err != nil {
		return nil, fmt.Errorf("building completion query: %w", err)
	}

	var completions []model.Completion
	if err := s.db.SelectContext(ctx, &completions, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying completions: %w", err)
	}
	return completions, nil
}

// ReplaceCompletions deletes the user's completions dated date and inserts
// rows. Rows may carry any date; re-inserting an existing
// (checklist, item, date) is a no-op.
func (s *SQLStore) ReplaceCompletions(
	ctx context.Context,
	userID string,
	date string,
	rows []model.Completion,
) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			DELETE FROM checklist_completions
			WHERE user_id = ? AND completion_date = ?`), userID, date); err != nil {
			return fmt.Errorf("clearing completions for %s: %w", date, err)
		}

		stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
			INSERT INTO checklist_completions
				(user_id, checklist_id, item_id, completion_date, completed_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (checklist_id, item_id, completion_date) DO NOTHING`))
		if err != nil {
			return fmt.Errorf("preparing completion insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range rows {
			completedAt := c.CompletedAt
			if completedAt.IsZero() {
				completedAt = nowUTC()
			}
			if _, err := stmt.ExecContext(ctx,
				userID, c.ChecklistID, c.ItemID, c.Date, completedAt.UTC(),
			); err != nil {
				return fmt.Errorf("inserting completion of item %d: %w", c.ItemID, err)
			}
		}
		return nil
	})
}
