package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/birabittoh/pr-manager/internal/api"
)

type statusJSON struct {
	BaseURL            string       `json:"base_url"`
	State              string       `json:"state"`
	Status             string       `json:"status,omitempty"`
	NextCheckInSeconds *int         `json:"next_check_in_seconds,omitempty"`
	ClockSkewSeconds   float64      `json:"clock_skew_seconds"`
	Threads            []api.Thread `json:"threads"`
	Error              string       `json:"error,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline liveness, next check countdown and worker threads",
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := ctx.newController("")
			if err != nil {
				return err
			}
			cfg, _ := ctx.ensureConfig()
			snap := controller.Monitor().Poll(cmd.Context())
			now := time.Now()

			if ctx.jsonOutput() {
				payload := statusJSON{
					BaseURL:          cfg.API.BaseURL,
					State:            snap.State(),
					Status:           snap.Status,
					ClockSkewSeconds: snap.ClockSkew.Seconds(),
					Threads:          snap.Threads,
				}
				if payload.Threads == nil {
					payload.Threads = []api.Thread{}
				}
				if snap.HasCountdown {
					remaining := int(snap.Remaining(now) / time.Second)
					payload.NextCheckInSeconds = &remaining
				}
				if snap.Err != nil {
					payload.Error = snap.Err.Error()
				}
				return writeJSON(cmd, payload)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			lines := renderSectionHeader("Pipeline", colorize)
			lines = append(lines, healthLines(snap, cfg.API.BaseURL, now, colorize)...)
			if threads := threadLines(snap, colorize); len(threads) > 0 {
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Threads", colorize)...)
				lines = append(lines, threads...)
			}
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}
