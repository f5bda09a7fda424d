package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/nhle/hdcharts/internal/model"
)

// Status is the load state of one domain.
type Status struct {
	Domain Domain
	State  State
	Error  error
}

// Status returns the load state of d.
func (c *Client) Status(d Domain) Status {
	s, err := c.gate.state(d)
	return Status{Domain: d, State: s, Error: err}
}

// Statuses returns the load state of every domain in Domains.
func (c *Client) Statuses() []Status {
	out := make([]Status, 0, len(Domains))
	for _, d := range Domains {
		out = append(out, c.Status(d))
	}
	return out
}

// MarkLoaded records that the caller holds authoritative data for d, as
// after importing a file. Later saves of d are sent.
func (c *Client) MarkLoaded(d Domain) {
	c.gate.load(d, func() error { return nil })
}

// documentDomain maps a document kind to the domain that gates it. The
// labs document is kept apart from the structured labs entries.
func documentDomain(kind model.DocumentKind) Domain {
	if kind == model.KindLabs {
		return Domain("labs_document")
	}
	return Domain(kind)
}

type saveResponse struct {
	Timestamp time.Time `json:"timestamp"`
}

// LoadDocument fetches the current data of a document. A document that
// has never been saved loads as {}.
func (c *Client) LoadDocument(ctx context.Context, kind model.DocumentKind) (json.RawMessage, error) {
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	err := c.gate.load(documentDomain(kind), func() error {
		return c.do(ctx, http.MethodGet, "/api/load-document?type="+url.QueryEscape(string(kind)), nil, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", kind, err)
	}
	return resp.Data, nil
}

// SaveDocument replaces a document. It returns ErrSkipped without
// contacting the server unless the document was loaded first.
func (c *Client) SaveDocument(ctx context.Context, kind model.DocumentKind, data json.RawMessage) (time.Time, error) {
	var resp saveResponse
	err := c.gate.save(documentDomain(kind), func() error {
		body := map[string]any{"type": kind, "data": data}
		return c.do(ctx, http.MethodPost, "/api/save-document", body, &resp)
	})
	if err != nil {
		if errors.Is(err, ErrSkipped) {
			return time.Time{}, err
		}
		return time.Time{}, fmt.Errorf("saving %s: %w", kind, err)
	}
	return resp.Timestamp, nil
}

// ListDocumentBackups returns the saved versions of a document, newest first.
func (c *Client) ListDocumentBackups(ctx context.Context, kind model.DocumentKind) ([]model.DocumentBackup, error) {
	var resp struct {
		Backups []model.DocumentBackup `json:"backups"`
	}
	body := map[string]any{"action": "list_backups", "type": kind}
	if err := c.do(ctx, http.MethodPost, "/api/save-document", body, &resp); err != nil {
		return nil, fmt.Errorf("listing %s backups: %w", kind, err)
	}
	return resp.Backups, nil
}

// RestoreDocument restores a backup and reloads the document, leaving
// it Loaded.
func (c *Client) RestoreDocument(ctx context.Context, kind model.DocumentKind, backupID string) (json.RawMessage, error) {
	body := map[string]any{"action": "restore_backup", "type": kind, "backupId": backupID}
	if err := c.do(ctx, http.MethodPost, "/api/save-document", body, nil); err != nil {
		return nil, fmt.Errorf("restoring %s backup %s: %w", kind, backupID, err)
	}
	return c.LoadDocument(ctx, kind)
}

// LoadChecklists fetches the user's checklists and completions.
func (c *Client) LoadChecklists(ctx context.Context) (*model.ChecklistState, error) {
	var resp struct {
		Data model.ChecklistState `json:"data"`
	}
	err := c.gate.load(DomainChecklists, func() error {
		return c.do(ctx, http.MethodGet, "/api/load-checklists", nil, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("loading checklists: %w", err)
	}
	return &resp.Data, nil
}

// SaveChecklists replaces the user's checklists. Completions may be nil
// to leave stored completions untouched. It returns ErrSkipped unless
// checklists were loaded first.
func (c *Client) SaveChecklists(ctx context.Context, checklists []model.ChecklistDoc, completions model.Completions) (time.Time, error) {
	if checklists == nil {
		checklists = []model.ChecklistDoc{}
	}
	var resp saveResponse
	err := c.gate.save(DomainChecklists, func() error {
		body := map[string]any{"checklists": checklists}
		if completions != nil {
			body["completions"] = completions
		}
		return c.do(ctx, http.MethodPost, "/api/save-checklists", body, &resp)
	})
	if err != nil {
		if errors.Is(err, ErrSkipped) {
			return time.Time{}, err
		}
		return time.Time{}, fmt.Errorf("saving checklists: %w", err)
	}
	return resp.Timestamp, nil
}

// ListChecklistBackups returns the checklist backup ring, newest first.
func (c *Client) ListChecklistBackups(ctx context.Context) ([]model.ChecklistBackup, error) {
	var resp struct {
		Backups []model.ChecklistBackup `json:"backups"`
	}
	body := map[string]any{"action": "list_backups"}
	if err := c.do(ctx, http.MethodPost, "/api/save-checklists", body, &resp); err != nil {
		return nil, fmt.Errorf("listing checklist backups: %w", err)
	}
	return resp.Backups, nil
}

// RestoreChecklists restores a checklist backup and reloads, leaving
// checklists Loaded.
func (c *Client) RestoreChecklists(ctx context.Context, backupID string) (*model.ChecklistState, error) {
	body := map[string]any{"action": "restore_backup", "backupId": backupID}
	if err := c.do(ctx, http.MethodPost, "/api/save-checklists", body, nil); err != nil {
		return nil, fmt.Errorf("restoring checklist backup %s: %w", backupID, err)
	}
	return c.LoadChecklists(ctx)
}

type labsResponse struct {
	Data struct {
		Entries []model.LabEntry `json:"entries"`
	} `json:"data"`
}

// LoadLabs fetches the user's lab entries.
func (c *Client) LoadLabs(ctx context.Context) ([]model.LabEntry, error) {
	var resp labsResponse
	err := c.gate.load(DomainLabs, func() error {
		return c.do(ctx, http.MethodGet, "/api/labs", nil, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("loading labs: %w", err)
	}
	return resp.Data.Entries, nil
}

// SaveLabs replaces the user's lab entries and returns them as stored.
// It returns ErrSkipped unless labs were loaded first.
func (c *Client) SaveLabs(ctx context.Context, entries []model.LabEntry) ([]model.LabEntry, error) {
	if entries == nil {
		entries = []model.LabEntry{}
	}
	var resp labsResponse
	err := c.gate.save(DomainLabs, func() error {
		return c.do(ctx, http.MethodPost, "/api/labs", map[string]any{"entries": entries}, &resp)
	})
	if err != nil {
		if errors.Is(err, ErrSkipped) {
			return nil, err
		}
		return nil, fmt.Errorf("saving labs: %w", err)
	}
	return resp.Data.Entries, nil
}

// DeleteLab removes one lab entry. It is gated like SaveLabs.
func (c *Client) DeleteLab(ctx context.Context, id int64) ([]model.LabEntry, error) {
	var resp labsResponse
	err := c.gate.save(DomainLabs, func() error {
		return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/labs?id=%d", id), nil, &resp)
	})
	if err != nil {
		if errors.Is(err, ErrSkipped) {
			return nil, err
		}
		return nil, fmt.Errorf("deleting lab %d: %w", id, err)
	}
	return resp.Data.Entries, nil
}

// Snapshot is everything LoadAll fetched. Fields of domains that failed
// to load are left empty and their errors recorded in Errors.
type Snapshot struct {
	Flowsheet  json.RawMessage
	Snippets   json.RawMessage
	Checklists *model.ChecklistState
	Labs       []model.LabEntry
	Errors     map[Domain]error
}

// LoadAll loads every domain concurrently. One domain failing does not
// stop the others; the returned error joins all failures.
func (c *Client) LoadAll(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{Errors: make(map[Domain]error)}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	record := func(d Domain, err error) {
		if err == nil {
			return
		}
		mu.Lock()
		snap.Errors[d] = err
		mu.Unlock()
	}

	wg.Add(4)
	go func() {
		defer wg.Done()
		data, err := c.LoadDocument(ctx, model.KindFlowsheet)
		snap.Flowsheet = data
		record(DomainFlowsheet, err)
	}()
	go func() {
		defer wg.Done()
		data, err := c.LoadDocument(ctx, model.KindSnippets)
		snap.Snippets = data
		record(DomainSnippets, err)
	}()
	go func() {
		defer wg.Done()
		state, err := c.LoadChecklists(ctx)
		snap.Checklists = state
		record(DomainChecklists, err)
	}()
	go func() {
		defer wg.Done()
		entries, err := c.LoadLabs(ctx)
		snap.Labs = entries
		record(DomainLabs, err)
	}()
	wg.Wait()

	var errs []error
	for _, d := range Domains {
		if err, ok := snap.Errors[d]; ok {
			errs = append(errs, err)
		}
	}
	return snap, errors.Join(errs...)
}
