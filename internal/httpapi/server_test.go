package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/hdcharts/internal/auth"
	"github.com/nhle/hdcharts/internal/checklist"
	"github.com/nhle/hdcharts/internal/document"
	"github.com/nhle/hdcharts/internal/events"
	"github.com/nhle/hdcharts/internal/httpapi"
	"github.com/nhle/hdcharts/internal/labs"
	"github.com/nhle/hdcharts/internal/store"
	"github.com/nhle/hdcharts/tests/testutil"
)

// tokenVerifier accepts "token-<user>" and rejects everything else.
var tokenVerifier = auth.VerifierFunc(func(_ context.Context, token string) (auth.Identity, error) {
	user, ok := strings.CutPrefix(token, "token-")
	if !ok || user == "" {
		return auth.Identity{}, &auth.Error{Reason: "invalid token"}
	}
	return auth.Identity{UserID: user}, nil
})

type fixture struct {
	srv   *httptest.Server
	store *store.SQLStore
	hub   *events.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := testutil.NewTestStore(t)
	logger := zerolog.Nop()
	hub := events.NewHub(logger)

	api := httpapi.NewServer(httpapi.Deps{
		Verifier:   tokenVerifier,
		Checklists: checklist.NewService(st, 5, logger),
		Documents:  document.NewService(st, 30, logger),
		Labs:       labs.NewService(st, logger),
		Events:     hub,
		Logger:     logger,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &fixture{srv: srv, store: st, hub: hub}
}

// do sends a request as user (no Authorization header when user is
// empty) and decodes the JSON response.
func (f *fixture) do(t *testing.T, method, path, user string, body string) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set("Authorization", "Bearer token-"+user)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.ContentLength != 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestPreflight(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodOptions, f.srv.URL+"/api/save-checklists", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "Authorization")
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "DELETE")

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	assert.Empty(t, buf.String())
}

func TestCORSHeadersOnEveryResponse(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/api/load-checklists")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestAuthFailures(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/api/load-checklists", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "missing bearer token", body["reason"])

	req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/api/load-document?type=flowsheet", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer forged")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "invalid token", out["reason"])
}

func TestWrongMethod(t *testing.T) {
	f := newFixture(t)

	status, _ := f.do(t, http.MethodPut, "/api/labs", "nurse-1", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, status)

	status, _ = f.do(t, http.MethodGet, "/api/save-checklists", "nurse-1", "")
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	status, body := f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestChecklistSaveAndLoad(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/api/save-checklists", "nurse-1", `{
		"checklists": [{
			"name": "AM Checks",
			"position": "Tech",
			"folders": [{"id": 1, "name": "Vitals", "order": 0}],
			"items": [
				{"text": "Check BP", "folderId": 1, "order": 0},
				{"text": "Dangling", "folderId": 42, "order": 1}
			]
		}]
	}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["timestamp"])

	status, body = f.do(t, http.MethodGet, "/api/load-checklists", "nurse-1", "")
	require.Equal(t, http.StatusOK, status)

	data := body["data"].(map[string]any)
	checklists := data["checklists"].([]any)
	require.Len(t, checklists, 1)

	c := checklists[0].(map[string]any)
	assert.Equal(t, "AM Checks", c["name"])
	assert.Equal(t, "Tech", c["role"])
	assert.Equal(t, float64(0), c["position"])

	folders := c["folders"].([]any)
	require.Len(t, folders, 1)
	folder := folders[0].(map[string]any)
	assert.Equal(t, "Vitals", folder["name"])

	items := c["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "Check BP", first["text"])
	assert.IsType(t, float64(0), first["id"])
	assert.Equal(t, folder["id"], first["folderId"])
	assert.Nil(t, items[1].(map[string]any)["folderId"])

	assert.Equal(t, map[string]any{}, data["completions"])

	// Another user sees nothing.
	status, body = f.do(t, http.MethodGet, "/api/load-checklists", "nurse-2", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{}, body["data"].(map[string]any)["checklists"])
}

func TestSaveChecklistsValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing checklists", `{}`},
		{"null checklists", `{"checklists": null}`},
		{"checklists not array", `{"checklists": {"name": "x"}}`},
		{"malformed json", `{"checklists": [`},
		{"unknown action", `{"action": "explode"}`},
		{"restore without id", `{"action": "restore_backup"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := f.do(t, http.MethodPost, "/api/save-checklists", "nurse-1", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestChecklistBackupsOverHTTP(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"first", "second"} {
		status, _ := f.do(t, http.MethodPost, "/api/save-checklists", "nurse-1",
			`{"checklists": [{"name": "`+name+`", "items": [{"text": "x"}]}]}`)
		require.Equal(t, http.StatusOK, status)
	}

	status, body := f.do(t, http.MethodPost, "/api/save-checklists", "nurse-1", `{"action": "list_backups"}`)
	require.Equal(t, http.StatusOK, status)
	backups := body["backups"].([]any)
	require.Len(t, backups, 1)
	backup := backups[0].(map[string]any)
	assert.Equal(t, float64(1), backup["checklistCount"])
	assert.Equal(t, float64(1), backup["itemCount"])
	assert.NotEmpty(t, backup["timestamp"])
	backupID := backup["id"].(string)

	// Someone else's backup id is not found and changes nothing.
	status, _ = f.do(t, http.MethodPost, "/api/save-checklists", "nurse-2",
		`{"action": "restore_backup", "backupId": "`+backupID+`"}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = f.do(t, http.MethodPost, "/api/save-checklists", "nurse-1",
		`{"action": "restore_backup", "backupId": "`+backupID+`"}`)
	require.Equal(t, http.StatusOK, status)
	restored := body["restored"].(map[string]any)
	assert.Equal(t, backupID, restored["backupId"])

	_, body = f.do(t, http.MethodGet, "/api/load-checklists", "nurse-1", "")
	checklists := body["data"].(map[string]any)["checklists"].([]any)
	require.Len(t, checklists, 1)
	assert.Equal(t, "first", checklists[0].(map[string]any)["name"])
}

func TestDocuments(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/api/load-document?type=flowsheet", "nurse-1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{}, body["data"])

	status, _ = f.do(t, http.MethodGet, "/api/load-document?type=recipes", "nurse-1", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodGet, "/api/load-document", "nurse-1", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = f.do(t, http.MethodPost, "/api/save-document", "nurse-1",
		`{"type": "flowsheet", "data": {"patients": [{"name": "A"}]}}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "flowsheet", body["type"])
	assert.NotEmpty(t, body["timestamp"])

	status, _ = f.do(t, http.MethodPost, "/api/save-document", "nurse-1",
		`{"type": "flowsheet", "data": {"patients": [{"name": "B"}]}}`)
	require.Equal(t, http.StatusOK, status)

	_, body = f.do(t, http.MethodGet, "/api/load-document?type=flowsheet", "nurse-1", "")
	patients := body["data"].(map[string]any)["patients"].([]any)
	assert.Equal(t, "B", patients[0].(map[string]any)["name"])

	status, body = f.do(t, http.MethodPost, "/api/save-document", "nurse-1",
		`{"action": "list_backups", "type": "flowsheet"}`)
	require.Equal(t, http.StatusOK, status)
	backups := body["backups"].([]any)
	require.Len(t, backups, 1)
	backupID := backups[0].(map[string]any)["id"].(string)

	status, _ = f.do(t, http.MethodPost, "/api/save-document", "nurse-2",
		`{"action": "restore_backup", "type": "flowsheet", "backupId": "`+backupID+`"}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodPost, "/api/save-document", "nurse-1",
		`{"action": "restore_backup", "type": "flowsheet", "backupId": "`+backupID+`"}`)
	require.Equal(t, http.StatusOK, status)

	_, body = f.do(t, http.MethodGet, "/api/load-document?type=flowsheet", "nurse-1", "")
	patients = body["data"].(map[string]any)["patients"].([]any)
	assert.Equal(t, "A", patients[0].(map[string]any)["name"])
}

func TestSaveDocumentValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing type", `{"data": {}}`},
		{"unknown type", `{"type": "recipes", "data": {}}`},
		{"missing data", `{"type": "snippets"}`},
		{"null data", `{"type": "snippets", "data": null}`},
		{"wrong shape", `{"type": "snippets", "data": {"snippets": [{"text": 1}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := f.do(t, http.MethodPost, "/api/save-document", "nurse-1", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestLabs(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/api/labs", "nurse-1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{}, body["data"].(map[string]any)["entries"])

	status, body = f.do(t, http.MethodPost, "/api/labs", "nurse-1",
		`{"entries": [{"patient": "Bed 2", "test": "K+", "value": "5.8"}, {"test": "Hgb", "value": "9.9"}]}`)
	require.Equal(t, http.StatusOK, status, body)
	entries := body["data"].(map[string]any)["entries"].([]any)
	require.Len(t, entries, 2)
	firstID := entries[0].(map[string]any)["id"].(float64)

	status, _ = f.do(t, http.MethodPost, "/api/labs", "nurse-1", `{"entries": [{"value": "1"}]}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPost, "/api/labs", "nurse-1", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodDelete, "/api/labs?id=abc", "nurse-1", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodDelete, "/api/labs?id=999999", "nurse-1", "")
	assert.Equal(t, http.StatusNotFound, status)

	path := "/api/labs?id=" + jsonNumber(firstID)
	status, _ = f.do(t, http.MethodDelete, path, "nurse-2", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = f.do(t, http.MethodDelete, path, "nurse-1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"].(map[string]any)["entries"].([]any), 1)

	status, body = f.do(t, http.MethodDelete, "/api/labs", "nurse-1", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["data"].(map[string]any)["entries"].([]any))
}

func TestStoreFailureIs500(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Close())

	status, body := f.do(t, http.MethodGet, "/api/load-checklists", "nurse-1", "")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", body["error"])
	assert.NotEmpty(t, body["detail"])
}

func TestEventsAfterSave(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/events?token=token-nurse-1"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return f.hub.ClientCount("nurse-1") == 1 },
		2*time.Second, 10*time.Millisecond)

	status, _ := f.do(t, http.MethodPost, "/api/save-document", "nurse-1",
		`{"type": "snippets", "data": {"snippets": []}}`)
	require.Equal(t, http.StatusOK, status)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var ev events.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, events.TypeDocumentSaved, ev.Type)
	assert.Equal(t, "snippets", ev.Kind)
}

func TestEventsRequireToken(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/api/events", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])

	status, _ = f.do(t, http.MethodGet, "/api/events?token=forged", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func jsonNumber(f float64) string {
	b, _ := json.Marshal(int64(f))
	return string(b)
}
