package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for completion dates and
// completion map keys.
const DateLayout = "2006-01-02"

// Checklist is a named, ordered collection of operational items a clinic
// completes per shift or role. It is owned by exactly one user.
type Checklist struct {
	ID        int64     `json:"id" db:"id"`
	UserID    string    `json:"-" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Role      string    `json:"role" db:"role"`
	Position  int       `json:"position" db:"position"`
	CreatedAt time.Time `json:"-" db:"created_at"`

	// Folders and Items are populated by assembly, not by the row scan.
	Folders []Folder `json:"folders" db:"-"`
	Items   []Item   `json:"items" db:"-"`
}

// Folder groups items inside a checklist.
// Its lifecycle is bound to the parent checklist (CASCADE delete).
type Folder struct {
	ID          int64  `json:"id" db:"id"`
	ChecklistID int64  `json:"checklistId" db:"checklist_id"`
	Name        string `json:"name" db:"name"`
	SortOrder   int    `json:"order" db:"sort_order"`
}

// Item is a single checkable line in a checklist. A nil FolderID means
// the item is unfiled.
type Item struct {
	ID          int64   `json:"id" db:"id"`
	ChecklistID int64   `json:"checklistId" db:"checklist_id"`
	FolderID    *int64  `json:"folderId" db:"folder_id"`
	Text        string  `json:"text" db:"text"`
	URL         *string `json:"url,omitempty" db:"url"`
	SortOrder   int     `json:"order" db:"sort_order"`
}

// Completion records that an item was checked off on a calendar date.
// (ChecklistID, ItemID, Date) is unique.
type Completion struct {
	UserID      string    `db:"user_id"`
	ChecklistID int64     `db:"checklist_id"`
	ItemID      int64     `db:"item_id"`
	Date        string    `db:"completion_date"`
	CompletedAt time.Time `db:"completed_at"`
}

// CompletionSet is the client-facing value of one completions map entry.
type CompletionSet struct {
	CompletedItemIDs []ClientID `json:"completedItemIds"`
	Timestamp        Timestamp  `json:"timestamp"`
}

// Completions maps "{date}_{checklistId}" to the items completed that day.
type Completions map[string]CompletionSet

// CompletionKey builds the completions map key for a date and checklist.
func CompletionKey(date string, checklistID ClientID) string {
	return date + "_" + string(checklistID)
}

// ParseCompletionKey splits a completions map key into its date and
// checklist id parts.
func ParseCompletionKey(key string) (string, ClientID, error) {
	date, id, ok := strings.Cut(key, "_")
	if !ok || id == "" {
		return "", "", fmt.Errorf("completion key %q is not {date}_{checklistId}", key)
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return "", "", fmt.Errorf("completion key %q has invalid date: %w", key, err)
	}
	return date, ClientID(id), nil
}

// ChecklistState is the nested view of a user's checklists returned by a load.
type ChecklistState struct {
	Checklists  []Checklist `json:"checklists"`
	Completions Completions `json:"completions"`
}

// ChecklistDoc is a checklist as sent by a client on save. Ids are
// client-local and only used to resolve references within the document.
type ChecklistDoc struct {
	ID      ClientID    `json:"id,omitempty"`
	Name    string      `json:"name"`
	Role    string      `json:"role,omitempty"`
	Folders []FolderDoc `json:"folders,omitempty"`
	Items   []ItemDoc   `json:"items,omitempty"`

	// Position is accepted for older clients, which send the role label
	// under this key. Numeric values are ignored; rank comes from order
	// in the saved array.
	Position json.RawMessage `json:"position,omitempty"`
}

// RoleLabel returns the role label, falling back to a string-valued
// legacy position field.
func (d ChecklistDoc) RoleLabel() string {
	if d.Role != "" {
		return d.Role
	}
	raw := bytes.TrimSpace(d.Position)
	if len(raw) == 0 || raw[0] != '"' {
		return ""
	}
	var label string
	if err := json.Unmarshal(raw, &label); err != nil {
		return ""
	}
	return label
}

// FolderDoc is a folder as sent by a client.
type FolderDoc struct {
	ID        ClientID `json:"id,omitempty"`
	Name      string   `json:"name"`
	Order     *int     `json:"order,omitempty"`
	SortOrder *int     `json:"sortOrder,omitempty"`
}

// ItemDoc is an item as sent by a client. FolderID references a FolderDoc
// id in the same checklist.
type ItemDoc struct {
	ID        ClientID `json:"id,omitempty"`
	FolderID  ClientID `json:"folderId,omitempty"`
	Text      string   `json:"text"`
	URL       *string  `json:"url,omitempty"`
	Order     *int     `json:"order,omitempty"`
	SortOrder *int     `json:"sortOrder,omitempty"`
}

// RankOf resolves an explicit order, then sortOrder, then the fallback.
func RankOf(order, sortOrder *int, fallback int) int {
	if order != nil {
		return *order
	}
	if sortOrder != nil {
		return *sortOrder
	}
	return fallback
}

// DocsFromChecklists converts assembled checklists back into save
// documents, using store ids as the client-local ids.
func DocsFromChecklists(checklists []Checklist) []ChecklistDoc {
	docs := make([]ChecklistDoc, 0, len(checklists))
	for _, c := range checklists {
		doc := ChecklistDoc{
			ID:      IDFromInt(c.ID),
			Name:    c.Name,
			Role:    c.Role,
			Folders: make([]FolderDoc, 0, len(c.Folders)),
			Items:   make([]ItemDoc, 0, len(c.Items)),
		}
		for _, f := range c.Folders {
			order := f.SortOrder
			doc.Folders = append(doc.Folders, FolderDoc{
				ID:    IDFromInt(f.ID),
				Name:  f.Name,
				Order: &order,
			})
		}
		for _, it := range c.Items {
			order := it.SortOrder
			item := ItemDoc{
				ID:    IDFromInt(it.ID),
				Text:  it.Text,
				URL:   it.URL,
				Order: &order,
			}
			if it.FolderID != nil {
				item.FolderID = IDFromInt(*it.FolderID)
			}
			doc.Items = append(doc.Items, item)
		}
		docs = append(docs, doc)
	}
	return docs
}

// ChecklistBackup is one entry of a user's checklist backup ring.
// Snapshot holds the JSON-encoded []ChecklistDoc captured at CreatedAt.
type ChecklistBackup struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"-" db:"user_id"`
	CreatedAt      time.Time `json:"timestamp" db:"created_at"`
	ChecklistCount int       `json:"checklistCount" db:"checklist_count"`
	ItemCount      int       `json:"itemCount" db:"item_count"`
	Snapshot       string    `json:"-" db:"snapshot"`
}
