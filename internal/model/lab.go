package model

import "time"

// LabEntry is one lab result recorded for a patient.
type LabEntry struct {
	ID          int64     `json:"id" db:"id"`
	UserID      string    `json:"-" db:"user_id"`
	Patient     string    `json:"patient" db:"patient"`
	Test        string    `json:"test" db:"test"`
	Value       string    `json:"value" db:"value"`
	Unit        string    `json:"unit" db:"unit"`
	CollectedOn string    `json:"collectedOn" db:"collected_on"`
	Notes       string    `json:"notes" db:"notes"`
	SortOrder   int       `json:"order" db:"sort_order"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
