package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/nhle/hdcharts/internal/auth"
	"github.com/nhle/hdcharts/internal/checklist"
	"github.com/nhle/hdcharts/internal/document"
	"github.com/nhle/hdcharts/internal/labs"
	"github.com/nhle/hdcharts/internal/store"
)

// maxBodyBytes caps request bodies. Flowsheets with many patients are the
// largest payloads.
const maxBodyBytes = 10 << 20

// requestError is a malformed request detected by the HTTP layer itself.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// errorBody is the JSON shape of every failure response.
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code and failure body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := zerolog.Ctx(r.Context())

	status, body := classify(err)
	switch {
	case status >= http.StatusInternalServerError:
		log.Error().Err(err).Msg("request failed")
	case status == http.StatusUnauthorized:
		log.Info().Str("reason", body.Reason).Msg("unauthorized")
	default:
		log.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, errorBody) {
	if auth.IsAuthError(err) {
		reason := auth.ErrMissingToken.Error()
		var authErr *auth.Error
		if errors.As(err, &authErr) {
			reason = authErr.Reason
		}
		return http.StatusUnauthorized, errorBody{Error: "unauthorized", Reason: reason}
	}

	var (
		reqErr       *requestError
		checklistErr *checklist.ValidationError
		documentErr  *document.ValidationError
		labsErr      *labs.ValidationError
		maxBytesErr  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &reqErr),
		errors.As(err, &checklistErr),
		errors.As(err, &documentErr),
		errors.As(err, &labsErr):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"}
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not found"}
	}

	return http.StatusInternalServerError, errorBody{
		Error:  "internal server error",
		Detail: err.Error(),
	}
}

// decodeBody reads a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}
