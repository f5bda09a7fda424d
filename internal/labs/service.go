package labs

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nhle/hdcharts/internal/model"
)

// Store is the subset of store.Store the labs service needs.
type Store interface {
	GetLabEntries(ctx context.Context, userID string) ([]model.LabEntry, error)
	ReplaceLabEntries(ctx context.Context, userID string, entries []model.LabEntry) error
	DeleteLabEntry(ctx context.Context, userID string, id int64) error
}

// ValidationError reports a lab entry that cannot be stored.
type ValidationError struct {
	Index   int
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid entries[%d]: %s", e.Index, e.Message)
}

// Service manages a user's lab tracker entries.
type Service struct {
	store  Store
	logger zerolog.Logger
}

// NewService creates a labs Service.
func NewService(st Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  st,
		logger: logger.With().Str("component", "labs").Logger(),
	}
}

// List returns the user's entries in display order.
func (s *Service) List(ctx context.Context, userID string) ([]model.LabEntry, error) {
	entries, err := s.store.GetLabEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing lab entries: %w", err)
	}
	if entries == nil {
		entries = []model.LabEntry{}
	}
	return entries, nil
}

// Replace stores entries as the user's complete lab list. Array order
// becomes display order.
func (s *Service) Replace(ctx context.Context, userID string, entries []model.LabEntry) ([]model.LabEntry, error) {
	for i := range entries {
		entries[i].Test = strings.TrimSpace(entries[i].Test)
		if entries[i].Test == "" {
			return nil, &ValidationError{Index: i, Message: "test is required"}
		}
		entries[i].SortOrder = i
	}

	if err := s.store.ReplaceLabEntries(ctx, userID, entries); err != nil {
		return nil, fmt.Errorf("replacing lab entries: %w", err)
	}
	s.logger.Debug().Str("user", userID).Int("entries", len(entries)).Msg("lab entries replaced")
	return s.List(ctx, userID)
}

// Delete removes one entry. An entry the user does not own is reported
// as not found.
func (s *Service) Delete(ctx context.Context, userID string, id int64) ([]model.LabEntry, error) {
	if err := s.store.DeleteLabEntry(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.List(ctx, userID)
}

// Clear removes all of the user's entries.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.store.ReplaceLabEntries(ctx, userID, nil); err != nil {
		return fmt.Errorf("clearing lab entries: %w", err)
	}
	s.logger.Info().Str("user", userID).Msg("lab entries cleared")
	return nil
}
