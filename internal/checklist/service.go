package checklist

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/hdcharts/internal/model"
	"github.com/nhle/hdcharts/internal/store"
)

// Store is the subset of store.Store the checklist service needs.
type Store interface {
	GetChecklists(ctx context.Context, userID string) ([]model.Checklist, error)
	GetFolders(ctx context.Context, userID string, checklistIDs []int64) ([]model.Folder, error)
	GetItems(ctx context.Context, userID string, checklistIDs []int64) ([]model.Item, error)
	RewriteChecklists(ctx context.Context, userID string, fill func(store.ChecklistWriter) error) error

	GetCompletions(ctx context.Context, userID string, checklistIDs []int64, date string) ([]model.Completion, error)
	ReplaceCompletions(ctx context.Context, userID, date string, rows []model.Completion) error

	CreateChecklistBackup(ctx context.Context, b model.ChecklistBackup, capacity int) error
	GetChecklistBackups(ctx context.Context, userID string, limit int) ([]model.ChecklistBackup, error)
	GetChecklistBackup(ctx context.Context, userID, id string) (*model.ChecklistBackup, error)
}

// ValidationError reports a malformed checklist payload.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used to decide "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.backups.now = func() time.Time { return now().UTC() }
	}
}

// Service translates between the client's nested checklist document and
// the normalized checklist tables.
type Service struct {
	store   Store
	backups *BackupManager
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService creates a checklist Service keeping backupCapacity backups
// per user.
func NewService(st Store, backupCapacity int, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:   st,
		backups: NewBackupManager(st, backupCapacity),
		logger:  logger.With().Str("component", "checklist").Logger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backups exposes the service's backup ring.
func (s *Service) Backups() *BackupManager {
	return s.backups
}

// today returns the current UTC calendar date.
func (s *Service) today() string {
	return s.now().UTC().Format(model.DateLayout)
}

// Load returns the user's checklists with folders and items nested under
// them, plus today's completions. It never writes.
func (s *Service) Load(ctx context.Context, userID string) (*model.ChecklistState, error) {
	checklists, err := loadTree(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(checklists))
	for i, c := range checklists {
		ids[i] = c.ID
	}

	rows, err := s.store.GetCompletions(ctx, userID, ids, s.today())
	if err != nil {
		return nil, fmt.Errorf("loading completions: %w", err)
	}

	return &model.ChecklistState{
		Checklists:  checklists,
		Completions: groupCompletions(rows),
	}, nil
}

// Save replaces every checklist the user owns with docs, in order. The
// previous state is backed up first. When completions is non-nil, today's
// completions are replaced by the ones it lists; failures there are
// logged and do not fail the save.
func (s *Service) Save(
	ctx context.Context,
	userID string,
	docs []model.ChecklistDoc,
	completions model.Completions,
) (time.Time, error) {
	if err := Validate(docs); err != nil {
		return time.Time{}, err
	}

	log := s.logger.With().Str("user", userID).Logger()

	if _, err := s.backups.Create(ctx, userID); err != nil {
		log.Warn().Err(err).Msg("pre-save backup failed, continuing")
	}

	ids, err := s.replace(ctx, userID, docs, log)
	if err != nil {
		return time.Time{}, fmt.Errorf("saving checklists: %w", err)
	}

	if completions != nil {
		s.syncCompletions(ctx, userID, completions, ids, log)
	}

	log.Debug().Int("checklists", len(docs)).Msg("checklists saved")
	return s.now().UTC(), nil
}

// ListBackups returns the user's checklist backups, newest first.
func (s *Service) ListBackups(ctx context.Context, userID string) ([]model.ChecklistBackup, error) {
	return s.backups.List(ctx, userID)
}

// RestoreResult summarizes a completed restore.
type RestoreResult struct {
	BackupID       string    `json:"backupId"`
	BackupTime     time.Time `json:"backupTimestamp"`
	ChecklistCount int       `json:"checklistCount"`
	ItemCount      int       `json:"itemCount"`
}

// RestoreBackup replaces the user's checklists with the contents of one
// of their backups. The current state is backed up first so the restore
// can itself be undone. Completions are left as they are.
func (s *Service) RestoreBackup(ctx context.Context, userID, backupID string) (*RestoreResult, error) {
	if backupID == "" {
		return nil, &ValidationError{Field: "backupId", Message: "is required"}
	}

	log := s.logger.With().Str("user", userID).Str("backup", backupID).Logger()

	// The snapshot is read before the pre-restore backup, which may evict it.
	backup, docs, err := s.backups.Snapshot(ctx, userID, backupID)
	if err != nil {
		return nil, err
	}

	if _, err := s.backups.Create(ctx, userID); err != nil {
		log.Warn().Err(err).Msg("pre-restore backup failed, continuing")
	}

	if _, err := s.replace(ctx, userID, docs, log); err != nil {
		return nil, fmt.Errorf("restoring checklists: %w", err)
	}

	log.Info().Int("checklists", backup.ChecklistCount).Msg("checklist backup restored")
	return &RestoreResult{
		BackupID:       backup.ID,
		BackupTime:     backup.CreatedAt,
		ChecklistCount: backup.ChecklistCount,
		ItemCount:      backup.ItemCount,
	}, nil
}

// Validate checks a save payload for references that cannot be resolved
// unambiguously.
func Validate(docs []model.ChecklistDoc) error {
	for i, doc := range docs {
		seen := make(map[model.ClientID]bool, len(doc.Folders))
		for _, f := range doc.Folders {
			if f.ID == "" {
				continue
			}
			if seen[f.ID] {
				return &ValidationError{
					Field:   fmt.Sprintf("checklists[%d].folders", i),
					Message: fmt.Sprintf("folder id %s appears more than once", f.ID),
				}
			}
			seen[f.ID] = true
		}
	}
	return nil
}

// idMap records the store ids assigned during a replace, keyed by the
// ids the client used in its document.
type idMap struct {
	checklists map[model.ClientID]int64
	items      map[int64]map[model.ClientID]int64
}

// replace deletes the user's checklists and inserts docs in one
// transaction. Array order becomes position; folder references are
// resolved through the ids assigned in the same checklist.
func (s *Service) replace(
	ctx context.Context,
	userID string,
	docs []model.ChecklistDoc,
	log zerolog.Logger,
) (*idMap, error) {
	var ids *idMap

	err := s.store.RewriteChecklists(ctx, userID, func(w store.ChecklistWriter) error {
		ids = &idMap{
			checklists: make(map[model.ClientID]int64, len(docs)),
			items:      make(map[int64]map[model.ClientID]int64, len(docs)),
		}

		for pos, doc := range docs {
			checklistID, err := w.InsertChecklist(ctx, model.Checklist{
				Name:     doc.Name,
				Role:     doc.RoleLabel(),
				Position: pos,
			})
			if err != nil {
				return err
			}
			if doc.ID != "" {
				if _, dup := ids.checklists[doc.ID]; !dup {
					ids.checklists[doc.ID] = checklistID
				}
			}

			folders := make(map[model.ClientID]int64, len(doc.Folders))
			for i, f := range doc.Folders {
				folderID, err := w.InsertFolder(ctx, model.Folder{
					ChecklistID: checklistID,
					Name:        f.Name,
					SortOrder:   model.RankOf(f.Order, f.SortOrder, i),
				})
				if err != nil {
					return err
				}
				if f.ID != "" {
					folders[f.ID] = folderID
				}
			}

			items := make(map[model.ClientID]int64, len(doc.Items))
			for i, it := range doc.Items {
				var folderID *int64
				if it.FolderID != "" {
					if id, ok := folders[it.FolderID]; ok {
						folderID = &id
					} else {
						log.Debug().
							Str("folder", string(it.FolderID)).
							Str("item", it.Text).
							Msg("item references unknown folder, saving unfiled")
					}
				}

				itemID, err := w.InsertItem(ctx, model.Item{
					ChecklistID: checklistID,
					FolderID:    folderID,
					Text:        it.Text,
					URL:         it.URL,
					SortOrder:   model.RankOf(it.Order, it.SortOrder, i),
				})
				if err != nil {
					return err
				}
				if it.ID != "" {
					items[it.ID] = itemID
				}
			}
			ids.items[checklistID] = items
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// syncCompletions replaces today's completions with the ones listed in
// completions, translating client ids through ids. Entries that cannot
// be translated are skipped.
func (s *Service) syncCompletions(
	ctx context.Context,
	userID string,
	completions model.Completions,
	ids *idMap,
	log zerolog.Logger,
) {
	now := s.now().UTC()
	skipped := 0

	var rows []model.Completion
	for key, set := range completions {
		date, clientChecklistID, err := model.ParseCompletionKey(key)
		if err != nil {
			log.Warn().Err(err).Msg("skipping completion entry")
			skipped += len(set.CompletedItemIDs)
			continue
		}

		checklistID, ok := ids.checklists[clientChecklistID]
		if !ok {
			log.Warn().Str("key", key).Msg("completion entry names an unknown checklist")
			skipped += len(set.CompletedItemIDs)
			continue
		}

		completedAt := set.Timestamp.Time
		if completedAt.IsZero() {
			completedAt = now
		}

		for _, clientItemID := range set.CompletedItemIDs {
			itemID, ok := ids.items[checklistID][clientItemID]
			if !ok {
				skipped++
				continue
			}
			rows = append(rows, model.Completion{
				UserID:      userID,
				ChecklistID: checklistID,
				ItemID:      itemID,
				Date:        date,
				CompletedAt: completedAt,
			})
		}
	}

	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Msg("completions referenced unknown items")
	}

	if err := s.store.ReplaceCompletions(ctx, userID, now.Format(model.DateLayout), rows); err != nil {
		log.Warn().Err(err).Msg("saving completions failed, checklists were saved")
	}
}

// loadTree reads the user's checklists ordered by position with their
// folders and items attached. Folders and Items are never nil.
func loadTree(ctx context.Context, st Store, userID string) ([]model.Checklist, error) {
	checklists, err := st.GetChecklists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading checklists: %w", err)
	}
	if len(checklists) == 0 {
		return []model.Checklist{}, nil
	}

	ids := make([]int64, len(checklists))
	index := make(map[int64]int, len(checklists))
	for i := range checklists {
		ids[i] = checklists[i].ID
		index[checklists[i].ID] = i
		checklists[i].Folders = []model.Folder{}
		checklists[i].Items = []model.Item{}
	}

	folders, err := st.GetFolders(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("loading folders: %w", err)
	}
	for _, f := range folders {
		if i, ok := index[f.ChecklistID]; ok {
			checklists[i].Folders = append(checklists[i].Folders, f)
		}
	}

	items, err := st.GetItems(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}
	for _, it := range items {
		if i, ok := index[it.ChecklistID]; ok {
			checklists[i].Items = append(checklists[i].Items, it)
		}
	}

	return checklists, nil
}

// groupCompletions builds the "{date}_{checklistId}" map from rows. The
// entry timestamp is the latest completion in the group.
func groupCompletions(rows []model.Completion) model.Completions {
	out := make(model.Completions)
	for _, r := range rows {
		key := model.CompletionKey(r.Date, model.IDFromInt(r.ChecklistID))
		set := out[key]
		set.CompletedItemIDs = append(set.CompletedItemIDs, model.IDFromInt(r.ItemID))
		if r.CompletedAt.After(set.Timestamp.Time) {
			set.Timestamp = model.NewTimestamp(r.CompletedAt)
		}
		out[key] = set
	}
	for key, set := range out {
		sort.Slice(set.CompletedItemIDs, func(i, j int) bool {
			a, _ := set.CompletedItemIDs[i].Int()
			b, _ := set.CompletedItemIDs[j].Int()
			return a < b
		})
		out[key] = set
	}
	return out
}
