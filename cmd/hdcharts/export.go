package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nhle/hdcharts/internal/model"
	"github.com/nhle/hdcharts/internal/syncclient"
	"github.com/nhle/hdcharts/internal/theme"
)

var (
	remoteServer string
	remoteToken  string
	exportOut    string
	importFile   string
	importOnly   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download a user's data from a running server as YAML",
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Upload a YAML export to a running server, replacing the user's data",
	RunE:  runImport,
}

func init() {
	for _, c := range []*cobra.Command{exportCmd, importCmd} {
		c.Flags().StringVar(&remoteServer, "server", "", "server base URL (default http://<server.addr>)")
		c.Flags().StringVar(&remoteToken, "token", os.Getenv("HDCHARTS_TOKEN"), "bearer token (default $HDCHARTS_TOKEN)")
	}
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")

	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "YAML export to upload (required)")
	importCmd.Flags().StringVar(&importOnly, "only", "", "comma-separated domains to import (default all present)")
	_ = importCmd.MarkFlagRequired("file")
}

// exportFile is the YAML layout written by export and read by import.
// Domain values keep the API's JSON shape.
type exportFile struct {
	ExportedAt time.Time `yaml:"exported_at"`
	Server     string    `yaml:"server"`
	Flowsheet  any       `yaml:"flowsheet,omitempty"`
	Snippets   any       `yaml:"snippets,omitempty"`
	Checklists any       `yaml:"checklists,omitempty"`
	Labs       any       `yaml:"labs,omitempty"`
}

func newClient() (*syncclient.Client, string, error) {
	if remoteToken == "" {
		return nil, "", errors.New("a token is required: pass --token or set HDCHARTS_TOKEN")
	}
	base := remoteServer
	if base == "" {
		base = "http://" + cfg.Server.Addr
	}
	return syncclient.New(base, remoteToken), base, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	client, base, err := newClient()
	if err != nil {
		return err
	}

	snap, loadErr := client.LoadAll(cmd.Context())
	printStatuses(cmd.ErrOrStderr(), client.Statuses())

	file := exportFile{ExportedAt: time.Now().UTC(), Server: base}
	conversions := []struct {
		d   syncclient.Domain
		src any
		dst *any
	}{
		{syncclient.DomainFlowsheet, snap.Flowsheet, &file.Flowsheet},
		{syncclient.DomainSnippets, snap.Snippets, &file.Snippets},
		{syncclient.DomainChecklists, snap.Checklists, &file.Checklists},
		{syncclient.DomainLabs, snap.Labs, &file.Labs},
	}
	for _, c := range conversions {
		if _, failed := snap.Errors[c.d]; failed {
			continue
		}
		v, err := toPlain(c.src)
		if err != nil {
			return fmt.Errorf("converting %s: %w", c.d, err)
		}
		*c.dst = v
	}

	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}

	if exportOut == "" {
		_, err = cmd.OutOrStdout().Write(data)
	} else {
		err = os.WriteFile(exportOut, data, 0o600)
	}
	if err != nil {
		return fmt.Errorf("writing export: %w", err)
	}

	if loadErr != nil {
		return fmt.Errorf("export is incomplete: %w", loadErr)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(importFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", importFile, err)
	}
	var file exportFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parsing %s: %w", importFile, err)
	}

	only := parseKindList(importOnly)
	wanted := func(d syncclient.Domain) bool {
		return len(only) == 0 || slices.Contains(only, string(d))
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	var errs []error
	report := func(d syncclient.Domain, err error) {
		if err != nil {
			fmt.Fprintf(out, "%s %s: %v\n", theme.ErrorStyle.Render("failed"), d, err)
			errs = append(errs, fmt.Errorf("%s: %w", d, err))
			return
		}
		fmt.Fprintf(out, "%s %s\n", theme.SuccessStyle.Render("imported"), d)
	}

	documents := []struct {
		d    syncclient.Domain
		kind model.DocumentKind
		v    any
	}{
		{syncclient.DomainFlowsheet, model.KindFlowsheet, file.Flowsheet},
		{syncclient.DomainSnippets, model.KindSnippets, file.Snippets},
	}
	for _, doc := range documents {
		if doc.v == nil || !wanted(doc.d) {
			continue
		}
		data, err := json.Marshal(doc.v)
		if err == nil {
			client.MarkLoaded(doc.d)
			_, err = client.SaveDocument(ctx, doc.kind, data)
		}
		report(doc.d, err)
	}

	if file.Checklists != nil && wanted(syncclient.DomainChecklists) {
		var state model.ChecklistState
		err := fromPlain(file.Checklists, &state)
		if err == nil {
			client.MarkLoaded(syncclient.DomainChecklists)
			_, err = client.SaveChecklists(ctx, model.DocsFromChecklists(state.Checklists), state.Completions)
		}
		report(syncclient.DomainChecklists, err)
	}

	if file.Labs != nil && wanted(syncclient.DomainLabs) {
		var entries []model.LabEntry
		err := fromPlain(file.Labs, &entries)
		if err == nil {
			client.MarkLoaded(syncclient.DomainLabs)
			_, err = client.SaveLabs(ctx, entries)
		}
		report(syncclient.DomainLabs, err)
	}

	return errors.Join(errs...)
}

// toPlain converts v to maps and slices keyed by its JSON field names.
func toPlain(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// fromPlain is the inverse of toPlain.
func fromPlain(v any, dst any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func printStatuses(w io.Writer, statuses []syncclient.Status) {
	for _, st := range statuses {
		line := fmt.Sprintf("%-11s%s", st.Domain, theme.LoadStateStyle(st.State.String()).Render(st.State.String()))
		if st.Error != nil {
			line += " " + theme.MutedStyle.Render(st.Error.Error())
		}
		fmt.Fprintln(w, line)
	}
}
