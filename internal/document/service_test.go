package document_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/hdcharts/internal/document"
	"github.com/nhle/hdcharts/internal/model"
	"github.com/nhle/hdcharts/internal/store"
	"github.com/nhle/hdcharts/tests/testutil"
)

func newService(t *testing.T, capacity int) *document.Service {
	t.Helper()
	current := time.Date(2026, 10, 16, 7, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		current = current.Add(time.Minute)
		return current
	}
	return document.NewService(testutil.NewTestStore(t), capacity, zerolog.Nop(), document.WithClock(clock))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		kind    model.DocumentKind
		data    string
		wantErr bool
	}{
		{"empty flowsheet", model.KindFlowsheet, `{}`, false},
		{"flowsheet with patients", model.KindFlowsheet, `{"patients":[{"name":"A","chair":3}]}`, false},
		{"flowsheet patient not object", model.KindFlowsheet, `{"patients":[1]}`, true},
		{"flowsheet patient null", model.KindFlowsheet, `{"patients":[null]}`, true},
		{"flowsheet patients not array", model.KindFlowsheet, `{"patients":{}}`, true},
		{"snippets ok", model.KindSnippets, `{"snippets":[{"text":"Pt tolerated tx well"}]}`, false},
		{"snippet missing text", model.KindSnippets, `{"snippets":[{"title":"x"}]}`, true},
		{"snippet text not string", model.KindSnippets, `{"snippets":[{"text":5}]}`, true},
		{"labs ok", model.KindLabs, `{"entries":[{"test":"K+"}]}`, false},
		{"labs entries not array", model.KindLabs, `{"entries":"x"}`, true},
		{"shift report ok", model.KindShiftReport, `{"notes":"quiet","sections":[]}`, false},
		{"shift report notes not string", model.KindShiftReport, `{"notes":3}`, true},
		{"null data", model.KindFlowsheet, `null`, true},
		{"array data", model.KindSnippets, `[]`, true},
		{"empty data", model.KindLabs, ``, true},
		{"unknown kind", model.DocumentKind("notes"), `{}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := document.Validate(tt.kind, json.RawMessage(tt.data))
			if tt.wantErr {
				var vErr *document.ValidationError
				assert.ErrorAs(t, err, &vErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, kind := range model.DocumentKinds {
		got, err := document.ParseKind(string(kind))
		require.NoError(t, err)
		assert.Equal(t, kind, got)
	}

	_, err := document.ParseKind("")
	assert.Error(t, err)
	_, err = document.ParseKind("FLOWSHEET")
	assert.Error(t, err)
}

func TestLoadMissingDocumentIsEmptyObject(t *testing.T) {
	svc := newService(t, 30)

	data, err := svc.Load(context.Background(), model.KindFlowsheet, "nurse-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, 30)

	ts, err := svc.Save(ctx, model.KindFlowsheet, "nurse-1", json.RawMessage(`{"patients":[{"name":"A"}]}`))
	require.NoError(t, err)
	assert.False(t, ts.IsZero())

	data, err := svc.Load(ctx, model.KindFlowsheet, "nurse-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"patients":[{"name":"A"}]}`, string(data))

	// Kinds and users are independent.
	data, err = svc.Load(ctx, model.KindSnippets, "nurse-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))

	data, err = svc.Load(ctx, model.KindFlowsheet, "nurse-2")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestSaveRejectsInvalidShape(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, 30)

	_, err := svc.Save(ctx, model.KindSnippets, "nurse-1", json.RawMessage(`{"snippets":"nope"}`))
	var vErr *document.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, model.KindSnippets, vErr.Kind)

	data, err := svc.Load(ctx, model.KindSnippets, "nurse-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestSaveKeepsBoundedHistory(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, 3)

	for i := 0; i < 6; i++ {
		_, err := svc.Save(ctx, model.KindShiftReport, "nurse-1", json.RawMessage(`{"notes":"v`+string(rune('0'+i))+`"}`))
		require.NoError(t, err)
	}

	backups, err := svc.ListBackups(ctx, model.KindShiftReport, "nurse-1")
	require.NoError(t, err)
	assert.Len(t, backups, 3)
	for _, b := range backups {
		assert.Equal(t, model.KindShiftReport, b.Kind)
	}
}

func TestRestoreBackup(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, 30)

	_, err := svc.Save(ctx, model.KindFlowsheet, "nurse-1", json.RawMessage(`{"patients":[{"name":"A"}]}`))
	require.NoError(t, err)
	_, err = svc.Save(ctx, model.KindFlowsheet, "nurse-1", json.RawMessage(`{"patients":[]}`))
	require.NoError(t, err)

	backups, err := svc.ListBackups(ctx, model.KindFlowsheet, "nurse-1")
	require.NoError(t, err)
	require.Len(t, backups, 1)

	_, err = svc.RestoreBackup(ctx, model.KindFlowsheet, "nurse-1", backups[0].ID)
	require.NoError(t, err)

	data, err := svc.Load(ctx, model.KindFlowsheet, "nurse-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"patients":[{"name":"A"}]}`, string(data))

	backups, err = svc.ListBackups(ctx, model.KindFlowsheet, "nurse-1")
	require.NoError(t, err)
	assert.Len(t, backups, 2, "the replaced version is kept")
}

func TestRestoreOtherUsersBackupIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, 30)

	for _, data := range []string{`{"patients":[]}`, `{"patients":[{}]}`} {
		_, err := svc.Save(ctx, model.KindFlowsheet, "nurse-2", json.RawMessage(data))
		require.NoError(t, err)
	}
	theirs, err := svc.ListBackups(ctx, model.KindFlowsheet, "nurse-2")
	require.NoError(t, err)
	require.Len(t, theirs, 1)

	_, err = svc.RestoreBackup(ctx, model.KindFlowsheet, "nurse-1", theirs[0].ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.RestoreBackup(ctx, model.KindSnippets, "nurse-2", theirs[0].ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "backup ids are scoped to their kind")
}
