package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/birabittoh/pr-manager/internal/dashboard"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type outcomeJSON struct {
	Message    string `json:"message,omitempty"`
	Queued     int    `json:"queued,omitempty"`
	Discovered int    `json:"discovered"`
	Stale      bool   `json:"stale,omitempty"`
}

// printOutcome reports a dispatched intent's result.
func printOutcome(cmd *cobra.Command, ctx *commandContext, out dashboard.Outcome) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, outcomeJSON{
			Message:    out.Message,
			Queued:     out.Queued,
			Discovered: out.Discovered,
			Stale:      out.Stale,
		})
	}
	w := cmd.OutOrStdout()
	if out.Message != "" {
		fmt.Fprintln(w, out.Message)
	}
	if out.Stale {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: change applied but the refreshed view could not be loaded")
	}
	return nil
}
