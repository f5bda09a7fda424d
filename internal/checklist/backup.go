package checklist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/hdcharts/internal/model"
)

// DefaultCapacity is the number of checklist backups kept per user.
const DefaultCapacity = 5

// BackupManager maintains the bounded recovery ring of checklist
// snapshots for each user.
type BackupManager struct {
	store    Store
	capacity int
	now      func() time.Time
}

// NewBackupManager returns a BackupManager keeping at most capacity
// snapshots per user. A non-positive capacity falls back to
// DefaultCapacity.
func NewBackupManager(st Store, capacity int) *BackupManager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &BackupManager{
		store:    st,
		capacity: capacity,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Capacity reports the ring size.
func (m *BackupManager) Capacity() int {
	return m.capacity
}

// Create snapshots the user's current checklists, folders and items into
// a new ring entry and evicts the oldest entries beyond capacity. It
// returns nil without writing when the user owns no checklists.
func (m *BackupManager) Create(ctx context.Context, userID string) (*model.ChecklistBackup, error) {
	checklists, err := loadTree(ctx, m.store, userID)
	if err != nil {
		return nil, fmt.Errorf("reading checklists to back up: %w", err)
	}
	if len(checklists) == 0 {
		return nil, nil
	}

	docs := model.DocsFromChecklists(checklists)
	snapshot, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("encoding checklist snapshot: %w", err)
	}

	itemCount := 0
	for _, c := range checklists {
		itemCount += len(c.Items)
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	backup := model.ChecklistBackup{
		ID:             id.String(),
		UserID:         userID,
		CreatedAt:      m.now(),
		ChecklistCount: len(checklists),
		ItemCount:      itemCount,
		Snapshot:       string(snapshot),
	}
	if err := m.store.CreateChecklistBackup(ctx, backup, m.capacity); err != nil {
		return nil, fmt.Errorf("storing checklist backup: %w", err)
	}
	return &backup, nil
}

// List returns the user's backups, newest first.
func (m *BackupManager) List(ctx context.Context, userID string) ([]model.ChecklistBackup, error) {
	backups, err := m.store.GetChecklistBackups(ctx, userID, m.capacity)
	if err != nil {
		return nil, fmt.Errorf("listing checklist backups: %w", err)
	}
	if backups == nil {
		backups = []model.ChecklistBackup{}
	}
	return backups, nil
}

// Snapshot returns the decoded checklists of one of the user's backups.
// A backup owned by someone else is reported as not found.
func (m *BackupManager) Snapshot(
	ctx context.Context,
	userID string,
	backupID string,
) (*model.ChecklistBackup, []model.ChecklistDoc, error) {
	backup, err := m.store.GetChecklistBackup(ctx, userID, backupID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading checklist backup: %w", err)
	}

	var docs []model.ChecklistDoc
	if err := json.Unmarshal([]byte(backup.Snapshot), &docs); err != nil {
		return nil, nil, fmt.Errorf("decoding checklist backup %s: %w", backupID, err)
	}
	return backup, docs, nil
}
