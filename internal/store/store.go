package store

import (
	"context"
	"errors"

	"github.com/nhle/hdcharts/internal/model"
)

// ErrNotFound is returned when a row does not exist or is not owned by
// the requesting user. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("not found")

// ChecklistWriter inserts the rows of a replace-all checklist save. It is
// only valid inside the callback passed to RewriteChecklists.
type ChecklistWriter interface {
	InsertChecklist(ctx context.Context, c model.Checklist) (int64, error)
	InsertFolder(ctx context.Context, f model.Folder) (int64, error)
	InsertItem(ctx context.Context, it model.Item) (int64, error)
}

// Store defines the persistence interface for checklists, completions,
// backups, documents and lab entries. Every method is scoped to a user id.
type Store interface {
	// === Checklists ===

	GetChecklists(ctx context.Context, userID string) ([]model.Checklist, error)
	GetFolders(ctx context.Context, userID string, checklistIDs []int64) ([]model.Folder, error)
	GetItems(ctx context.Context, userID string, checklistIDs []int64) ([]model.Item, error)
	RewriteChecklists(ctx context.Context, userID string, fill func(ChecklistWriter) error) error

	// === Completions ===

	GetCompletions(ctx context.Context, userID string, checklistIDs []int64, date string) ([]model.Completion, error)
	ReplaceCompletions(ctx context.Context, userID, date string, rows []model.Completion) error

	// === Checklist backups ===

	CreateChecklistBackup(ctx context.Context, b model.ChecklistBackup, capacity int) error
	GetChecklistBackups(ctx context.Context, userID string, limit int) ([]model.ChecklistBackup, error)
	GetChecklistBackup(ctx context.Context, userID, id string) (*model.ChecklistBackup, error)

	// === Documents ===

	GetDocument(ctx context.Context, kind model.DocumentKind, userID string) (*model.Document, error)
	UpsertDocument(ctx context.Context, doc model.Document) error
	BackupDocument(ctx context.Context, kind model.DocumentKind, userID string, capacity int) (bool, error)
	GetDocumentBackups(ctx context.Context, kind model.DocumentKind, userID string, limit int) ([]model.DocumentBackup, error)
	GetDocumentBackup(ctx context.Context, kind model.DocumentKind, userID, id string) (*model.DocumentBackup, error)

	// === Labs ===

	GetLabEntries(ctx context.Context, userID string) ([]model.LabEntry, error)
	ReplaceLabEntries(ctx context.Context, userID string, entries []model.LabEntry) error
	DeleteLabEntry(ctx context.Context, userID string, id int64) error

	Close() error
}
