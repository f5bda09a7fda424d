package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/nhle/hdcharts/internal/auth"
	"github.com/nhle/hdcharts/internal/document"
	"github.com/nhle/hdcharts/internal/events"
)

// saveDocumentRequest is the body of POST /api/save-document.
type saveDocumentRequest struct {
	Action   string          `json:"action"`
	Type     string          `json:"type"`
	BackupID string          `json:"backupId"`
	Data     json.RawMessage `json:"data"`
}

func (s *Server) handleLoadDocument(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	kind, err := document.ParseKind(r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	data, err := s.documents.Load(r.Context(), kind, id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

func (s *Server) handleSaveDocument(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var req saveDocumentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	kind, err := document.ParseKind(req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}

	switch req.Action {
	case actionListBackups:
		backups, err := s.documents.ListBackups(r.Context(), kind, id.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"backups": backups,
		})

	case actionRestoreBackup:
		ts, err := s.documents.RestoreBackup(r.Context(), kind, id.UserID, req.BackupID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.notify(id.UserID, events.TypeDocumentRestored, string(kind))
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"type":      kind,
			"timestamp": ts,
			"restored":  req.BackupID,
		})

	case "":
		ts, err := s.documents.Save(r.Context(), kind, id.UserID, req.Data)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.notify(id.UserID, events.TypeDocumentSaved, string(kind))
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"type":      kind,
			"timestamp": ts,
		})

	default:
		writeError(w, r, badRequest("unknown action %q", req.Action))
	}
}
