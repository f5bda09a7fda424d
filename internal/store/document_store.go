package store

import (
	"context"
	"fmt"

	"github.com/nhle/hdcharts/internal/model"
)

// GetDocument returns the current (kind, user) document or ErrNotFound.
func (s *SQLStore) GetDocument(
	ctx context.Context,
	kind model.DocumentKind,
	userID string,
) (*model.Document, error) {
	var doc model.Document
	err := s.db.GetContext(ctx, &doc, s.db.Rebind(`
		SELECT type, user_id, data, updated_at
		FROM documents
		WHERE type = ? AND user_id = ?`), string(kind), userID)
	if err != nil {
		return nil, fmt.Errorf("getting %s document: %w", kind, notFound(err))
	}
	return &doc, nil
}

// UpsertDocument inserts or replaces the (kind, user) document.
// A zero UpdatedAt is set to now.
func (s *SQLStore) UpsertDocument(ctx context.Context, doc model.Document) error {
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = nowUTC()
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO documents (type, user_id, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (type, user_id)
		DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`),
		string(doc.Kind), doc.UserID, doc.Data, doc.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting %s document: %w", doc.Kind, err)
	}
	return nil
}
