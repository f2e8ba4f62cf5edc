package config

const (
	defaultConfigPath     = "~/.config/squish/config.toml"
	projectConfigName     = "squish.toml"
	defaultOutputDir      = "~/Pictures/squish"
	defaultStateDir       = "~/.local/share/squish"
	defaultLogDir         = "~/.local/share/squish/logs"
	defaultPlanner        = PlannerAuto
	defaultLLMBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel       = "google/gemini-2.5-flash"
	defaultLLMReferer     = "https://github.com/squish-images/squish"
	defaultLLMTitle       = "squish compression strategist"
	defaultLLMTimeout     = 60
	defaultCwebpBinary    = "cwebp"
	defaultAvifencBinary  = "avifenc"
	defaultQuality        = 0.82
	defaultAttemptTimeout = 120
	defaultNtfyTimeout    = 10
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Planner provider names.
const (
	PlannerAuto = "auto"
	PlannerLLM  = "llm"
	PlannerMock = "mock"
	PlannerFile = "file"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
		},
		Planner: Planner{
			Provider: defaultPlanner,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeout,
		},
		Compression: Compression{
			CwebpBinary:    defaultCwebpBinary,
			AvifencBinary:  defaultAvifencBinary,
			DefaultQuality: defaultQuality,
			AttemptTimeout: defaultAttemptTimeout,
		},
		History: History{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
