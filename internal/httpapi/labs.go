package httpapi

import (
	"net/http"
	"strconv"

	"github.com/nhle/hdcharts/internal/auth"
	"github.com/nhle/hdcharts/internal/events"
	"github.com/nhle/hdcharts/internal/model"
)

type labsRequest struct {
	Entries *[]model.LabEntry `json:"entries"`
}

func writeLabs(w http.ResponseWriter, entries []model.LabEntry) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"entries": entries},
	})
}

func (s *Server) handleListLabs(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	entries, err := s.labs.List(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeLabs(w, entries)
}

func (s *Server) handleReplaceLabs(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var req labsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Entries == nil {
		writeError(w, r, badRequest("entries must be an array"))
		return
	}

	entries, err := s.labs.Replace(r.Context(), id.UserID, *req.Entries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.notify(id.UserID, events.TypeLabsChanged, "")
	writeLabs(w, entries)
}

// handleDeleteLabs deletes the entry named by ?id=, or every entry when
// no id is given.
func (s *Server) handleDeleteLabs(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		if err := s.labs.Clear(r.Context(), id.UserID); err != nil {
			writeError(w, r, err)
			return
		}
		s.notify(id.UserID, events.TypeLabsChanged, "")
		writeLabs(w, []model.LabEntry{})
		return
	}

	entryID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, r, badRequest("id must be an integer"))
		return
	}

	entries, err := s.labs.Delete(r.Context(), id.UserID, entryID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.notify(id.UserID, events.TypeLabsChanged, "")
	writeLabs(w, entries)
}
