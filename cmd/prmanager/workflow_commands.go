package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/birabittoh/pr-manager/internal/api"
	"github.com/birabittoh/pr-manager/internal/dashboard"
	"github.com/birabittoh/pr-manager/internal/logging"
	"github.com/birabittoh/pr-manager/internal/remote"
	"github.com/birabittoh/pr-manager/internal/workflow"
)

type workflowRowJSON struct {
	ID           string `json:"id"`
	Publication  string `json:"publication_name"`
	DisplayName  string `json:"display_name"`
	Date         string `json:"date"`
	Downloaded   bool   `json:"downloaded"`
	OCRProcessed bool   `json:"ocr_processed"`
	Uploaded     bool   `json:"uploaded"`
}

type workflowJSON struct {
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
	Search     string            `json:"search,omitempty"`
	Rows       []workflowRowJSON `json:"rows"`
}

func newWorkflowCommand(ctx *commandContext) *cobra.Command {
	var page int
	var search string

	cmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"wf"},
		Short:   "Show one page of workflow entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := ctx.newController(dashboard.ViewWorkflow)
			if err != nil {
				return err
			}
			if err := controller.Store().Refresh(cmd.Context()); err != nil {
				logger, _ := ctx.ensureLogger()
				logger.Warn("publication labels unavailable; using derived names", logging.Error(err))
			}
			if _, err := controller.Pager().Load(cmd.Context(), page, search); err != nil {
				return err
			}

			pager := controller.Pager()
			window := pager.Window()
			rows := pager.Rows()
			if ctx.jsonOutput() {
				payload := workflowJSON{Page: window.Page, TotalPages: window.TotalPages, Search: window.Search, Rows: make([]workflowRowJSON, 0, len(rows))}
				for _, row := range rows {
					payload.Rows = append(payload.Rows, workflowRowJSON{
						ID:           row.ID,
						Publication:  row.Publication,
						DisplayName:  row.Label,
						Date:         row.Date,
						Downloaded:   row.Downloaded,
						OCRProcessed: row.OCRProcessed,
						Uploaded:     row.Uploaded,
					})
				}
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				if window.Search != "" {
					fmt.Fprintf(out, "No workflow entries match %q\n", window.Search)
				} else {
					fmt.Fprintln(out, "No workflow entries")
				}
				return nil
			}
			fmt.Fprintln(out, workflowTable(rows, pager.Controls()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number (1-based)")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Filter by publication name")
	return cmd
}

func workflowTable(rows []workflow.Row, controls workflow.Pagination) string {
	data := make([][]string, 0, len(rows))
	for _, row := range rows {
		data = append(data, []string{
			row.Label,
			row.DisplayDate,
			stageMark(row.Downloaded),
			stageMark(row.OCRProcessed),
			stageMark(row.Uploaded),
		})
	}
	return renderTable(
		[]string{"Publication", "Date", "Downloaded", "OCR", "Uploaded"},
		data,
		[]columnAlignment{alignLeft, alignLeft, alignCenter, alignCenter, alignCenter},
		paginationCaption(controls),
	)
}

// paginationCaption renders "« Page 2 of 5 »" with arrows only where paging is possible.
func paginationCaption(controls workflow.Pagination) string {
	if !controls.Visible {
		return ""
	}
	prev, next := " ", " "
	if controls.PrevEnabled {
		prev = "«"
	}
	if controls.NextEnabled {
		next = "»"
	}
	return fmt.Sprintf("%s Page %d of %d %s", prev, controls.Page, controls.TotalPages, next)
}

func stageMark(done bool) string {
	if done {
		return "✓"
	}
	return "·"
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "download <publication> <date>...",
		Short: "Queue manual downloads (dates as YYYY-MM-DD or YYYYMMDD)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := ctx.newController(dashboard.ViewPublications)
			if err != nil {
				return err
			}
			out, err := controller.Dispatch(cmd.Context(), dashboard.Intent{
				Kind:  dashboard.IntentDownload,
				Name:  args[0],
				Dates: args[1:],
			})
			if err != nil {
				return err
			}
			return printOutcome(cmd, ctx, out)
		},
	}
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Trigger an immediate check for new issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := ctx.newController(dashboard.ViewPublications)
			if err != nil {
				return err
			}
			out, err := controller.Dispatch(cmd.Context(), dashboard.Intent{Kind: dashboard.IntentCheck})
			if err != nil {
				return err
			}
			return printOutcome(cmd, ctx, out)
		},
	}
}

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "fetch <publication> <date>",
		Short: "Download a processed file (use -o - for stdout)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			publication := strings.TrimSpace(args[0])
			date, err := api.WireDate(args[1])
			if err != nil {
				return remote.Invalid("fetch", err.Error())
			}
			client, err := ctx.remoteClient()
			if err != nil {
				return err
			}

			if output == "-" {
				_, err := client.DownloadFile(cmd.Context(), publication, date, cmd.OutOrStdout())
				return err
			}
			target := output
			if target == "" {
				target = fmt.Sprintf("%s_%s.pdf", publication, date)
			}
			written, err := fetchToFile(cmd, client, publication, date, target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s (%d bytes)\n", target, written)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default <publication>_<date>.pdf)")
	return cmd
}

// fetchToFile streams into a temporary sibling and renames it into place on success.
func fetchToFile(cmd *cobra.Command, client *remote.Client, publication, date, target string) (int64, error) {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".prmanager-fetch-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	written, err := client.DownloadFile(cmd.Context(), publication, date, tmp)
	closeErr := tmp.Close()
	if err != nil {
		return 0, err
	}
	if closeErr != nil {
		return 0, fmt.Errorf("write %s: %w", target, closeErr)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return 0, fmt.Errorf("move download into place: %w", err)
	}
	return written, nil
}
