package httpapi

import (
	"net/http"

	"github.com/nhle/hdcharts/internal/auth"
	"github.com/nhle/hdcharts/internal/events"
	"github.com/nhle/hdcharts/internal/model"
)

const (
	actionListBackups   = "list_backups"
	actionRestoreBackup = "restore_backup"
)

// saveChecklistsRequest is the body of POST /api/save-checklists. With no
// action it is a save and Checklists must be present.
type saveChecklistsRequest struct {
	Action      string                `json:"action"`
	BackupID    string                `json:"backupId"`
	Checklists  *[]model.ChecklistDoc `json:"checklists"`
	Completions model.Completions     `json:"completions"`
}

func (s *Server) handleLoadChecklists(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	state, err := s.checklists.Load(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    state,
	})
}

func (s *Server) handleSaveChecklists(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var req saveChecklistsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	switch req.Action {
	case actionListBackups:
		backups, err := s.checklists.ListBackups(r.Context(), id.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"backups": backups,
		})

	case actionRestoreBackup:
		result, err := s.checklists.RestoreBackup(r.Context(), id.UserID, req.BackupID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.notify(id.UserID, events.TypeChecklistsRestored, "")
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"restored": result,
		})

	case "":
		if req.Checklists == nil {
			writeError(w, r, badRequest("checklists must be an array"))
			return
		}
		ts, err := s.checklists.Save(r.Context(), id.UserID, *req.Checklists, req.Completions)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.notify(id.UserID, events.TypeChecklistsSaved, "")
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"timestamp": ts,
		})

	default:
		writeError(w, r, badRequest("unknown action %q", req.Action))
	}
}
