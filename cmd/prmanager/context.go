package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/birabittoh/pr-manager/internal/config"
	"github.com/birabittoh/pr-manager/internal/dashboard"
	"github.com/birabittoh/pr-manager/internal/health"
	"github.com/birabittoh/pr-manager/internal/logging"
	"github.com/birabittoh/pr-manager/internal/publications"
	"github.com/birabittoh/pr-manager/internal/remote"
	"github.com/birabittoh/pr-manager/internal/workflow"
)

type commandContext struct {
	configFlag *string
	apiFlag    *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, apiFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
			cfg.API.BaseURL = strings.TrimSpace(*c.apiFlag)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) remoteClient() (*remote.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return remote.New(cfg.API.BaseURL,
		remote.WithTimeout(cfg.RequestTimeout()),
		remote.WithLogger(logger),
	)
}

// newController wires the dashboard core against the configured backend.
// view overrides the configured default view when non-empty.
func (c *commandContext) newController(view dashboard.View) (*dashboard.Controller, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	client, err := c.remoteClient()
	if err != nil {
		return nil, err
	}
	if view == "" {
		view = dashboard.View(cfg.Dashboard.DefaultView)
	}

	store := publications.New(client, logger)
	pager := workflow.New(client, store, cfg.Dashboard.PageSize, logger)
	monitor := health.New(client, logger)
	return dashboard.New(store, pager, monitor, client, dashboard.Options{
		PollInterval: cfg.PollInterval(),
		View:         view,
		Logger:       logger,
	}), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
