package config

const (
	defaultConfigPath           = "~/.config/prmanager/config.toml"
	defaultAPIBaseURL           = "http://127.0.0.1:8000"
	defaultAPITimeoutSeconds    = 10
	defaultPollIntervalSeconds  = 30
	defaultPageSize             = 20
	defaultView                 = ViewWorkflow
	defaultCountdownTickSeconds = 1
	defaultStateDir             = "~/.local/share/prmanager"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultMockBind             = "127.0.0.1:8000"
)

// Dashboard view names accepted by dashboard.default_view.
const (
	ViewWorkflow     = "workflow"
	ViewPublications = "publications"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		API: API{
			BaseURL:        defaultAPIBaseURL,
			TimeoutSeconds: defaultAPITimeoutSeconds,
		},
		Dashboard: Dashboard{
			PollIntervalSeconds:  defaultPollIntervalSeconds,
			PageSize:             defaultPageSize,
			DefaultView:          defaultView,
			CountdownTickSeconds: defaultCountdownTickSeconds,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Mock: Mock{
			Bind: defaultMockBind,
			Seed: true,
		},
	}
}
