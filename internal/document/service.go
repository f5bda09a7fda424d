package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/hdcharts/internal/model"
	"github.com/nhle/hdcharts/internal/store"
)

// DefaultCapacity is the number of previous versions kept per document.
const DefaultCapacity = 30

// Store is the subset of store.Store the document service needs.
type Store interface {
	GetDocument(ctx context.Context, kind model.DocumentKind, userID string) (*model.Document, error)
	UpsertDocument(ctx context.Context, doc model.Document) error
	BackupDocument(ctx context.Context, kind model.DocumentKind, userID string, capacity int) (bool, error)
	GetDocumentBackups(ctx context.Context, kind model.DocumentKind, userID string, limit int) ([]model.DocumentBackup, error)
	GetDocumentBackup(ctx context.Context, kind model.DocumentKind, userID, id string) (*model.DocumentBackup, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for updated_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service stores one JSON document per (kind, user) with a bounded
// history of previous versions.
type Service struct {
	store    Store
	capacity int
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService creates a document Service that keeps capacity previous
// versions of each document.
func NewService(st Store, capacity int, logger zerolog.Logger, opts ...Option) *Service {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Service{
		store:    st,
		capacity: capacity,
		logger:   logger.With().Str("component", "document").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var emptyDocument = json.RawMessage(`{}`)

// Load returns the stored document, or an empty object when the user has
// not saved one of this kind yet.
func (s *Service) Load(ctx context.Context, kind model.DocumentKind, userID string) (json.RawMessage, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}

	doc, err := s.store.GetDocument(ctx, kind, userID)
	if errors.Is(err, store.ErrNotFound) {
		return emptyDocument, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}
	return json.RawMessage(doc.Data), nil
}

// Save validates data against the kind's schema, pushes the current
// version into the history and stores data as the new version.
func (s *Service) Save(
	ctx context.Context,
	kind model.DocumentKind,
	userID string,
	data json.RawMessage,
) (time.Time, error) {
	if err := Validate(kind, data); err != nil {
		return time.Time{}, err
	}

	log := s.logger.With().Str("user", userID).Str("type", string(kind)).Logger()
	if _, err := s.store.BackupDocument(ctx, kind, userID, s.capacity); err != nil {
		log.Warn().Err(err).Msg("document backup failed, continuing")
	}

	updatedAt := s.now().UTC()
	if err := s.store.UpsertDocument(ctx, model.Document{
		Kind:      kind,
		UserID:    userID,
		Data:      string(data),
		UpdatedAt: updatedAt,
	}); err != nil {
		return time.Time{}, fmt.Errorf("saving document: %w", err)
	}

	log.Debug().Int("bytes", len(data)).Msg("document saved")
	return updatedAt, nil
}

// ListBackups returns the previous versions of a document, newest first.
func (s *Service) ListBackups(ctx context.Context, kind model.DocumentKind, userID string) ([]model.DocumentBackup, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}

	backups, err := s.store.GetDocumentBackups(ctx, kind, userID, s.capacity)
	if err != nil {
		return nil, fmt.Errorf("listing document backups: %w", err)
	}
	if backups == nil {
		backups = []model.DocumentBackup{}
	}
	return backups, nil
}

// RestoreBackup makes a previous version current again. The version
// being replaced is pushed into the history first.
func (s *Service) RestoreBackup(
	ctx context.Context,
	kind model.DocumentKind,
	userID string,
	backupID string,
) (time.Time, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return time.Time{}, err
	}
	if backupID == "" {
		return time.Time{}, &ValidationError{Kind: kind, Message: "backupId is required"}
	}

	backup, err := s.store.GetDocumentBackup(ctx, kind, userID, backupID)
	if err != nil {
		return time.Time{}, fmt.Errorf("loading document backup: %w", err)
	}

	log := s.logger.With().Str("user", userID).Str("type", string(kind)).Str("backup", backupID).Logger()
	if _, err := s.store.BackupDocument(ctx, kind, userID, s.capacity); err != nil {
		log.Warn().Err(err).Msg("pre-restore document backup failed, continuing")
	}

	updatedAt := s.now().UTC()
	if err := s.store.UpsertDocument(ctx, model.Document{
		Kind:      kind,
		UserID:    userID,
		Data:      backup.Data,
		UpdatedAt: updatedAt,
	}); err != nil {
		return time.Time{}, fmt.Errorf("restoring document: %w", err)
	}

	log.Info().Msg("document backup restored")
	return updatedAt, nil
}
