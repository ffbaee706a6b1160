package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields resolves ${ENV_VAR} references in credential fields.
func expandSensitiveFields(cfg *Config) {
	cfg.Completion.APIKey = expandEnvVars(cfg.Completion.APIKey)
	cfg.Platform.X.ClientID = expandEnvVars(cfg.Platform.X.ClientID)
	cfg.Platform.X.ClientSecret = expandEnvVars(cfg.Platform.X.ClientSecret)
	cfg.Platform.X.AccountID = expandEnvVars(cfg.Platform.X.AccountID)
	cfg.Mentions.StreamToken = expandEnvVars(cfg.Mentions.StreamToken)
	cfg.History.Redis.Password = expandEnvVars(cfg.History.Redis.Password)
	if cfg.Platform.IRC != nil {
		cfg.Platform.IRC.Password = expandEnvVars(cfg.Platform.IRC.Password)
	}
}

// LoadDotEnv reads KEY=VALUE pairs from .env files into the process
// environment. Variables already set win; missing files are skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return &ConfigError{Message: "failed to read " + f + ": " + err.Error()}
		}
	}
	return nil
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only. A .env file next to
// the config file is loaded first.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if err := LoadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields left empty by the file.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Completion.Provider == "" {
		cfg.Completion.Provider = d.Completion.Provider
	}
	if cfg.Completion.Instructions == "" {
		cfg.Completion.Instructions = d.Completion.Instructions
	}
	if cfg.Completion.TimeoutSeconds == 0 {
		cfg.Completion.TimeoutSeconds = d.Completion.TimeoutSeconds
	}
	if cfg.Completion.Retries == 0 {
		cfg.Completion.Retries = d.Completion.Retries
	}
	if cfg.Completion.BackoffMs == 0 {
		cfg.Completion.BackoffMs = d.Completion.BackoffMs
	}
	if cfg.Platform.Kind == "" {
		cfg.Platform.Kind = d.Platform.Kind
	}
	if cfg.Platform.X.BaseURL == "" {
		cfg.Platform.X.BaseURL = d.Platform.X.BaseURL
	}
	if len(cfg.Platform.X.Scopes) == 0 {
		cfg.Platform.X.Scopes = d.Platform.X.Scopes
	}
	if cfg.Mentions.Strategy == "" {
		cfg.Mentions.Strategy = d.Mentions.Strategy
	}
	if cfg.Mentions.PollIntervalSeconds == 0 {
		cfg.Mentions.PollIntervalSeconds = d.Mentions.PollIntervalSeconds
	}
	if cfg.Mentions.PollTimeoutSeconds == 0 {
		cfg.Mentions.PollTimeoutSeconds = d.Mentions.PollTimeoutSeconds
	}
	if cfg.Mentions.Transport == "" {
		cfg.Mentions.Transport = d.Mentions.Transport
	}
	if cfg.History.WindowSize == 0 {
		cfg.History.WindowSize = DefaultWindowSize
	}
	if cfg.History.Store == "" {
		cfg.History.Store = d.History.Store
	}
	if cfg.History.Redis.KeyPrefix == "" {
		cfg.History.Redis.KeyPrefix = d.History.Redis.KeyPrefix
	}
	if cfg.Schedule.IntervalMinutes == 0 {
		cfg.Schedule.IntervalMinutes = d.Schedule.IntervalMinutes
	}
	if cfg.Schedule.Prompt == "" {
		cfg.Schedule.Prompt = DefaultSchedulePrompt
	}
	if cfg.Callback.Addr == "" {
		cfg.Callback.Addr = DefaultCallbackAddr
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
	if cfg.Platform.IRC != nil && cfg.Platform.IRC.Port == 0 {
		if cfg.Platform.IRC.UseTLS {
			cfg.Platform.IRC.Port = 6697
		} else {
			cfg.Platform.IRC.Port = 6667
		}
	}
}

// applyEnvOverrides reads REPLYBOT_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPLYBOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("REPLYBOT_PROVIDER"); v != "" {
		cfg.Completion.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("REPLYBOT_MODEL"); v != "" {
		cfg.Completion.Model = v
	}
	if v := os.Getenv("REPLYBOT_API_KEY"); v != "" {
		cfg.Completion.APIKey = v
	}
	if v := os.Getenv("REPLYBOT_ACCOUNT_ID"); v != "" {
		cfg.Platform.X.AccountID = v
	}
	if v := os.Getenv("REPLYBOT_HANDLE"); v != "" {
		cfg.Platform.X.Handle = v
	}
	if v := os.Getenv("REPLYBOT_CLIENT_ID"); v != "" {
		cfg.Platform.X.ClientID = v
	}
	if v := os.Getenv("REPLYBOT_CLIENT_SECRET"); v != "" {
		cfg.Platform.X.ClientSecret = v
	}
	if v := os.Getenv("REPLYBOT_STRATEGY"); v != "" {
		cfg.Mentions.Strategy = strings.ToLower(v)
	}
	if v := os.Getenv("REPLYBOT_POLL_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Mentions.PollIntervalSeconds = n
		}
	}
	if v := os.Getenv("REPLYBOT_WINDOW_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.History.WindowSize = n
		}
	}
	if v := os.Getenv("REPLYBOT_HISTORY_STORE"); v != "" {
		cfg.History.Store = strings.ToLower(v)
	}
	if v := os.Getenv("REPLYBOT_REDIS_ADDR"); v != "" {
		cfg.History.Redis.Addr = v
	}
	if v := os.Getenv("REPLYBOT_SUBJECTS"); v != "" {
		cfg.Schedule.Subjects = splitList(v)
	}

	// Provider SDK conventions, used only when nothing else set a key.
	if cfg.Completion.APIKey == "" {
		switch cfg.Completion.Provider {
		case "openai":
			cfg.Completion.APIKey = os.Getenv("OPENAI_API_KEY")
		case "claude":
			cfg.Completion.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
