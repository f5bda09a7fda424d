package model

import "time"

// DocumentKind names one of the fixed set of per-user JSON documents.
type DocumentKind string

const (
	KindFlowsheet   DocumentKind = "flowsheet"
	KindSnippets    DocumentKind = "snippets"
	KindLabs        DocumentKind = "labs"
	KindShiftReport DocumentKind = "shift_report"
)

// DocumentKinds lists every accepted kind.
var DocumentKinds = []DocumentKind{
	KindFlowsheet,
	KindSnippets,
	KindLabs,
	KindShiftReport,
}

// Document is the current version of a (kind, user) JSON document.
type Document struct {
	Kind      DocumentKind `db:"type"`
	UserID    string       `db:"user_id"`
	Data      string       `db:"data"`
	UpdatedAt time.Time    `db:"updated_at"`
}

// DocumentBackup is a previous version of a document kept in the
// per-(kind, user) history.
type DocumentBackup struct {
	ID        string       `json:"id" db:"id"`
	Kind      DocumentKind `json:"type" db:"type"`
	UserID    string       `json:"-" db:"user_id"`
	Data      string       `json:"-" db:"data"`
	CreatedAt time.Time    `json:"timestamp" db:"created_at"`
}
