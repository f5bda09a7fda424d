package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nhle/hdcharts/internal/checklist"
	"github.com/nhle/hdcharts/internal/document"
	"github.com/nhle/hdcharts/internal/theme"
)

const kindChecklists = "checklists"

var (
	backupUser string
	backupKind string
	backupID   string
)

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Inspect and restore a user's backup history",
}

var backupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	RunE:  runBackupsList,
}

var backupsRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a backup, saving the current data as a new backup first",
	RunE:  runBackupsRestore,
}

func init() {
	backupsCmd.PersistentFlags().StringVarP(&backupUser, "user", "u", "", "user id (required)")
	backupsCmd.PersistentFlags().StringVarP(&backupKind, "kind", "k", kindChecklists,
		"checklists, or a document type: flowsheet, snippets, labs, shift_report")
	_ = backupsCmd.MarkPersistentFlagRequired("user")

	backupsRestoreCmd.Flags().StringVar(&backupID, "id", "", "backup id (required)")
	_ = backupsRestoreCmd.MarkFlagRequired("id")

	backupsCmd.AddCommand(backupsListCmd)
	backupsCmd.AddCommand(backupsRestoreCmd)
}

// backupRow is one line of backups list output.
type backupRow struct {
	id       string
	when     string
	contents string
}

func runBackupsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	logger := cliLogger()
	var rows []backupRow

	if backupKind == kindChecklists {
		svc := checklist.NewService(st, cfg.Backups.ChecklistCapacity, logger)
		backups, err := svc.ListBackups(ctx, backupUser)
		if err != nil {
			return err
		}
		for _, b := range backups {
			rows = append(rows, backupRow{
				id:   b.ID,
				when: humanize.Time(b.CreatedAt),
				contents: fmt.Sprintf("%s, %s",
					pluralize(b.ChecklistCount, "checklist"),
					pluralize(b.ItemCount, "item")),
			})
		}
	} else {
		kind, err := document.ParseKind(backupKind)
		if err != nil {
			return err
		}
		svc := document.NewService(st, cfg.Backups.DocumentCapacity, logger)
		backups, err := svc.ListBackups(ctx, kind, backupUser)
		if err != nil {
			return err
		}
		for _, b := range backups {
			rows = append(rows, backupRow{
				id:       b.ID,
				when:     humanize.Time(b.CreatedAt),
				contents: string(b.Kind),
			})
		}
	}

	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, theme.HintStyle.Render(fmt.Sprintf("no %s backups for %s", backupKind, backupUser)))
		return nil
	}
	renderBackups(out, rows)
	return nil
}

func renderBackups(out io.Writer, rows []backupRow) {
	idWidth, whenWidth := len("ID"), len("WHEN")
	for _, r := range rows {
		idWidth = max(idWidth, len(r.id))
		whenWidth = max(whenWidth, len(r.when))
	}

	fmt.Fprintln(out, theme.HeaderStyle.Render(fmt.Sprintf("%-*s  %-*s  %s",
		idWidth, "ID", whenWidth, "WHEN", "CONTENTS")))
	for _, r := range rows {
		fmt.Fprintf(out, " %s  %s  %s\n",
			theme.Pad(theme.IDStyle, r.id, idWidth),
			theme.Pad(theme.MutedStyle, r.when, whenWidth),
			r.contents)
	}
}

func runBackupsRestore(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	logger := cliLogger()
	out := cmd.OutOrStdout()

	if backupKind == kindChecklists {
		svc := checklist.NewService(st, cfg.Backups.ChecklistCapacity, logger)
		result, err := svc.RestoreBackup(ctx, backupUser, backupID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s from %s (%s)\n",
			theme.SuccessStyle.Render("restored"),
			pluralize(result.ChecklistCount, "checklist"),
			humanize.Time(result.BackupTime),
			pluralize(result.ItemCount, "item"))
		return nil
	}

	kind, err := document.ParseKind(backupKind)
	if err != nil {
		return err
	}
	svc := document.NewService(st, cfg.Backups.DocumentCapacity, logger)
	if _, err := svc.RestoreBackup(ctx, kind, backupUser, backupID); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s backup %s\n", theme.SuccessStyle.Render("restored"), kind, backupID)
	return nil
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + noun + "s"
}

// parseKindList splits a comma-separated list of domains.
func parseKindList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
