package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}
	oneOf := func(path, value string, valid []string) {
		if value != "" && !slices.Contains(valid, value) {
			add(path, "must be one of %v, got %q", valid, value)
		}
	}

	// Completion
	c := cfg.Completion
	oneOf("completion.provider", c.Provider, []string{"openai", "claude", "gemini", "ollama"})
	if c.Provider != "ollama" && c.APIKey == "" {
		add("completion.apiKey", "required for provider %q", c.Provider)
	}
	if c.Retries < 0 {
		add("completion.retries", "must be >= 0, got %d", c.Retries)
	}
	if c.TimeoutSeconds < 0 {
		add("completion.timeoutSeconds", "must be >= 0, got %d", c.TimeoutSeconds)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		add("completion.temperature", "must be 0-2, got %g", *c.Temperature)
	}

	// Platform
	oneOf("platform.kind", cfg.Platform.Kind, []string{"x", "irc"})
	switch cfg.Platform.Kind {
	case "x":
		if cfg.Platform.X.AccountID == "" {
			add("platform.x.accountId", "required for platform x")
		}
	case "irc":
		irc := cfg.Platform.IRC
		if irc == nil {
			add("platform.irc", "required for platform irc")
			break
		}
		if irc.Server == "" {
			add("platform.irc.server", "server is required")
		}
		if irc.Nick == "" {
			add("platform.irc.nick", "nick is required")
		}
		if irc.Port < 0 || irc.Port > 65535 {
			add("platform.irc.port", "port must be 0-65535, got %d", irc.Port)
		}
		if irc.SASL && irc.Password == "" {
			add("platform.irc.sasl", "SASL requires a password to be set")
		}
	}

	// Mentions
	m := cfg.Mentions
	oneOf("mentions.strategy", m.Strategy, []string{"poll", "stream"})
	oneOf("mentions.transport", m.Transport, []string{"websocket", "irc"})
	if m.PollIntervalSeconds < 0 {
		add("mentions.pollIntervalSeconds", "must be >= 0, got %d", m.PollIntervalSeconds)
	}
	if m.MaxAttempts < 0 {
		add("mentions.maxAttempts", "must be >= 0, got %d", m.MaxAttempts)
	}
	if m.Strategy == "stream" && m.Transport == "websocket" && m.StreamURL == "" {
		add("mentions.streamUrl", "required for websocket streaming")
	}
	if m.Strategy == "stream" && m.StreamURL != "" &&
		!strings.HasPrefix(m.StreamURL, "ws://") && !strings.HasPrefix(m.StreamURL, "wss://") {
		add("mentions.streamUrl", "must be a ws:// or wss:// URL, got %q", m.StreamURL)
	}
	if cfg.Platform.Kind == "irc" {
		if m.Strategy == "poll" {
			add("mentions.strategy", "irc has no mention history to poll; use stream")
		}
		if m.Strategy == "stream" && m.Transport != "irc" {
			add("mentions.transport", "platform irc streams over transport irc")
		}
	}
	if m.Transport == "irc" && cfg.Platform.Kind != "irc" {
		add("mentions.transport", "transport irc requires platform irc")
	}
	if m.FallbackToPolling && cfg.Platform.Kind == "irc" {
		add("mentions.fallbackToPolling", "not available for platform irc")
	}

	// History
	h := cfg.History
	if h.WindowSize < 0 {
		add("history.windowSize", "must be >= 0, got %d", h.WindowSize)
	}
	oneOf("history.store", h.Store, []string{"memory", "sqlite", "redis"})
	if h.Store == "redis" && h.Redis.Addr == "" {
		add("history.redis.addr", "required for redis store")
	}

	// Schedule
	s := cfg.Schedule
	if s.Enabled {
		if len(s.Subjects) == 0 {
			add("schedule.subjects", "at least one subject is required when the schedule is enabled")
		}
		if s.IntervalMinutes <= 0 {
			add("schedule.intervalMinutes", "must be > 0, got %d", s.IntervalMinutes)
		}
	}

	// Logging
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	oneOf("logging.level", cfg.Logging.Level, validLogLevels)
	oneOf("logging.consoleStyle", cfg.Logging.ConsoleStyle, []string{"pretty", "compact", "json"})

	// Hooks
	for event, entries := range cfg.Hooks.ByEvent() {
		for i, e := range entries {
			if strings.TrimSpace(e.Command) == "" {
				add(fmt.Sprintf("hooks.%s[%d].command", event, i), "command is required")
			}
			if e.Timeout < 0 {
				add(fmt.Sprintf("hooks.%s[%d].timeout", event, i), "must be >= 0, got %d", e.Timeout)
			}
		}
	}

	return issues
}

// ByEvent returns the configured hooks keyed by their YAML name.
func (h HooksConfig) ByEvent() map[string][]HookEntry {
	return map[string][]HookEntry{
		"mentionReceived": h.MentionReceived,
		"replySent":       h.ReplySent,
		"mentionSkipped":  h.MentionSkipped,
		"updatePosted":    h.UpdatePosted,
		"botStart":        h.BotStart,
		"botStop":         h.BotStop,
	}
}
