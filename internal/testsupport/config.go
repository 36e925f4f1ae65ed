package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/birabittoh/pr-manager/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with a unique temp state directory per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Mock.Bind = "127.0.0.1:0"
	cfgVal.Mock.Seed = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBaseURL points the test config at a backend.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.BaseURL = url
	}
}

// WithPageSize overrides the workflow page size.
func WithPageSize(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dashboard.PageSize = size
	}
}

// WithView overrides the initial dashboard view.
func WithView(view string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dashboard.DefaultView = view
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
