package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/birabittoh/pr-manager/internal/config"
	"github.com/birabittoh/pr-manager/internal/logging"
	"github.com/birabittoh/pr-manager/internal/mockapi"
)

const mockSeedDays = 14

func newMockServerCommand(ctx *commandContext) *cobra.Command {
	var bind string
	var noSeed bool

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve an in-memory pipeline backend for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			addr := strings.TrimSpace(bind)
			if addr == "" {
				addr = cfg.Mock.Bind
			}
			if addr == "" {
				addr = config.Default().Mock.Bind
			}

			server := mockapi.New(mockapi.WithLogger(logger))
			if cfg.Mock.Seed && !noSeed {
				server.Seed(mockSeedDays)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.ErrOrStderr(), "Mock pipeline listening on http://%s\n", addr)
			logger.Info("mock server starting", logging.String("bind", addr))
			return server.ListenAndServe(runCtx, addr)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (default mock.bind)")
	cmd.Flags().BoolVar(&noSeed, "no-seed", false, "Start with no publications or workflow entries")
	return cmd
}
