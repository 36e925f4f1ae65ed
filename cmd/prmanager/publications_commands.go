package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/birabittoh/pr-manager/internal/api"
	"github.com/birabittoh/pr-manager/internal/dashboard"
	"github.com/birabittoh/pr-manager/internal/publications"
)

func newPublicationsCommand(ctx *commandContext) *cobra.Command {
	pubCmd := &cobra.Command{
		Use:     "publications",
		Aliases: []string{"pubs"},
		Short:   "Manage configured publications",
	}

	pubCmd.AddCommand(newPublicationsListCommand(ctx))
	pubCmd.AddCommand(newPublicationsAddCommand(ctx))
	pubCmd.AddCommand(newPublicationsEditCommand(ctx))
	pubCmd.AddCommand(newPublicationsRemoveCommand(ctx))
	pubCmd.AddCommand(newPublicationsToggleCommand(ctx, "enable", true))
	pubCmd.AddCommand(newPublicationsToggleCommand(ctx, "disable", false))

	return pubCmd
}

// publicationsController returns a controller with the publication cache loaded.
func publicationsController(cmd *cobra.Command, ctx *commandContext) (*dashboard.Controller, error) {
	controller, err := ctx.newController(dashboard.ViewPublications)
	if err != nil {
		return nil, err
	}
	if _, err := controller.Dispatch(cmd.Context(), dashboard.Intent{Kind: dashboard.IntentShow, View: dashboard.ViewPublications}); err != nil {
		return nil, fmt.Errorf("load publications: %w", err)
	}
	return controller, nil
}

func newPublicationsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List publications",
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := publicationsController(cmd, ctx)
			if err != nil {
				return err
			}
			list := controller.Store().List()
			if ctx.jsonOutput() {
				if list == nil {
					list = []api.Publication{}
				}
				return writeJSON(cmd, list)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No publications configured")
				return nil
			}
			fmt.Fprintln(out, publicationsTable(list))
			return nil
		},
	}
}

func publicationsTable(list []api.Publication) string {
	rows := make([][]string, 0, len(list))
	for _, pub := range list {
		rows = append(rows, []string{
			pub.Name,
			pub.Label(),
			pub.IssueID,
			strconv.Itoa(pub.MaxScale),
			pub.Language,
			yesNo(pub.Enabled),
		})
	}
	return renderTable(
		[]string{"Name", "Display Name", "Issue", "Scale", "Lang", "Enabled"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignCenter},
		"",
	)
}

func newPublicationsAddCommand(ctx *commandContext) *cobra.Command {
	var in publications.Input

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a publication",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := publicationsController(cmd, ctx)
			if err != nil {
				return err
			}
			in.Name = args[0]
			out, err := controller.Dispatch(cmd.Context(), dashboard.Intent{Kind: dashboard.IntentAdd, Input: in})
			if err != nil {
				return err
			}
			return printOutcome(cmd, ctx, out)
		},
	}

	cmd.Flags().StringVar(&in.DisplayName, "display-name", "", "Display name (derived from the name when omitted)")
	cmd.Flags().StringVar(&in.IssueID, "issue-id", "", "Issue identifier used by the downloader")
	cmd.Flags().IntVar(&in.MaxScale, "max-scale", 0, "Maximum page scale")
	cmd.Flags().StringVar(&in.Language, "language", "", "Language code for OCR")
	return cmd
}

func newPublicationsEditCommand(ctx *commandContext) *cobra.Command {
	var displayName, issueID, language string
	var maxScale int

	cmd := &cobra.Command{
		Use:   "edit <name>",
		Short: "Edit publication fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch publications.Patch
			flags := cmd.Flags()
			if flags.Changed("display-name") {
				patch.DisplayName = &displayName
			}
			if flags.Changed("issue-id") {
				patch.IssueID = &issueID
			}
			if flags.Changed("max-scale") {
				patch.MaxScale = &maxScale
			}
			if flags.Changed("language") {
				patch.Language = &language
			}

			controller, err := publicationsController(cmd, ctx)
			if err != nil {
				return err
			}
			out, err := controller.Dispatch(cmd.Context(), dashboard.Intent{Kind: dashboard.IntentEdit, Name: args[0], Patch: patch})
			if err != nil {
				return err
			}
			return printOutcome(cmd, ctx, out)
		},
	}

	cmd.Flags().StringVar(&displayName, "display-name", "", "New display name (empty resets to the derived name)")
	cmd.Flags().StringVar(&issueID, "issue-id", "", "New issue identifier")
	cmd.Flags().IntVar(&maxScale, "max-scale", 0, "New maximum page scale")
	cmd.Flags().StringVar(&language, "language", "", "New language code")
	return cmd
}

func newPublicationsRemoveCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a publication",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !yes {
				confirmed, err := confirm(cmd, fmt.Sprintf("Delete publication %q? [y/N] ", name))
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}

			controller, err := publicationsController(cmd, ctx)
			if err != nil {
				return err
			}
			out, err := controller.Dispatch(cmd.Context(), dashboard.Intent{Kind: dashboard.IntentDelete, Name: name})
			if err != nil {
				return err
			}
			return printOutcome(cmd, ctx, out)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newPublicationsToggleCommand(ctx *commandContext, use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a publication",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := publicationsController(cmd, ctx)
			if err != nil {
				return err
			}
			out, err := controller.Dispatch(cmd.Context(), dashboard.Intent{Kind: dashboard.IntentToggle, Name: args[0], Enabled: enabled})
			if err != nil {
				return err
			}
			return printOutcome(cmd, ctx, out)
		},
	}
}

func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
