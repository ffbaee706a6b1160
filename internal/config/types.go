package config

// Config is the root configuration for replybot.
type Config struct {
	Completion CompletionConfig `yaml:"completion,omitempty"`
	Platform   PlatformConfig   `yaml:"platform,omitempty"`
	Mentions   MentionsConfig   `yaml:"mentions,omitempty"`
	History    HistoryConfig    `yaml:"history,omitempty"`
	Schedule   ScheduleConfig   `yaml:"schedule,omitempty"`
	Callback   CallbackConfig   `yaml:"callback,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
	Hooks      HooksConfig      `yaml:"hooks,omitempty"`
}

// CompletionConfig selects and tunes the language-model provider.
type CompletionConfig struct {
	Provider       string   `yaml:"provider,omitempty"` // "openai" | "claude" | "gemini" | "ollama"
	Model          string   `yaml:"model,omitempty"`
	APIKey         string   `yaml:"apiKey,omitempty"`
	BaseURL        string   `yaml:"baseUrl,omitempty"`
	Instructions   string   `yaml:"instructions,omitempty"` // persona line placed in the system entry
	TimeoutSeconds int      `yaml:"timeoutSeconds,omitempty"`
	Retries        int      `yaml:"retries,omitempty"`   // total attempts per completion
	BackoffMs      int      `yaml:"backoffMs,omitempty"` // first retry delay
	MaxTokens      int      `yaml:"maxTokens,omitempty"`
	Temperature    *float64 `yaml:"temperature,omitempty"`
}

// PlatformConfig selects the social platform the bot lives on.
type PlatformConfig struct {
	Kind string     `yaml:"kind,omitempty"` // "x" | "irc"
	X    XConfig    `yaml:"x,omitempty"`
	IRC  *IRCConfig `yaml:"irc,omitempty"`
}

// XConfig holds X (Twitter) API v2 settings.
type XConfig struct {
	AccountID    string   `yaml:"accountId,omitempty"`
	Handle       string   `yaml:"handle,omitempty"`
	BaseURL      string   `yaml:"baseUrl,omitempty"`
	ClientID     string   `yaml:"clientId,omitempty"`
	ClientSecret string   `yaml:"clientSecret,omitempty"`
	RedirectURL  string   `yaml:"redirectUrl,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`
	TokenFile    string   `yaml:"tokenFile,omitempty"`    // defaults to credentials/x-token.json
	PrefixHandle bool     `yaml:"prefixHandle,omitempty"` // X notifies repliers implicitly; opt in to "@handle"
}

// IRCConfig defines IRC connection settings.
type IRCConfig struct {
	Server   string   `yaml:"server"`
	Port     int      `yaml:"port,omitempty"`
	Nick     string   `yaml:"nick"`
	Password string   `yaml:"password,omitempty"`
	Channels []string `yaml:"channels"`
	UseTLS   bool     `yaml:"useTLS,omitempty"`
	SASL     bool     `yaml:"sasl,omitempty"`
}

// MentionsConfig controls how mentions are obtained.
type MentionsConfig struct {
	Strategy            string `yaml:"strategy,omitempty"` // "poll" | "stream"
	PollIntervalSeconds int    `yaml:"pollIntervalSeconds,omitempty"`
	PollTimeoutSeconds  int    `yaml:"pollTimeoutSeconds,omitempty"`
	Transport           string `yaml:"transport,omitempty"` // "websocket" | "irc"
	StreamURL           string `yaml:"streamUrl,omitempty"`
	StreamToken         string `yaml:"streamToken,omitempty"`
	FallbackToPolling   bool   `yaml:"fallbackToPolling,omitempty"`
	MaxAttempts         int    `yaml:"maxAttempts,omitempty"` // poll cycles a failing mention gets before it is skipped
}

// HistoryConfig controls per-user conversation history.
type HistoryConfig struct {
	WindowSize int         `yaml:"windowSize,omitempty"`
	Store      string      `yaml:"store,omitempty"` // "memory" | "sqlite" | "redis"
	Path       string      `yaml:"path,omitempty"`  // sqlite file; defaults to data/replybot.db
	Redis      RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig locates a redis server for shared history.
type RedisConfig struct {
	Addr      string `yaml:"addr,omitempty"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty"`
}

// ScheduleConfig controls the periodic status update.
type ScheduleConfig struct {
	Enabled         bool     `yaml:"enabled,omitempty"`
	IntervalMinutes int      `yaml:"intervalMinutes,omitempty"`
	Subjects        []string `yaml:"subjects,omitempty"`
	Prompt          string   `yaml:"prompt,omitempty"` // template; {subject} is replaced
}

// CallbackConfig configures the OAuth callback receiver.
type CallbackConfig struct {
	Addr      string `yaml:"addr,omitempty"`
	RemoteURL string `yaml:"remoteUrl,omitempty"` // fetch the code from a receiver running elsewhere
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// HooksConfig maps lifecycle events to shell commands.
type HooksConfig struct {
	MentionReceived []HookEntry `yaml:"mentionReceived,omitempty"`
	ReplySent       []HookEntry `yaml:"replySent,omitempty"`
	MentionSkipped  []HookEntry `yaml:"mentionSkipped,omitempty"`
	UpdatePosted    []HookEntry `yaml:"updatePosted,omitempty"`
	BotStart        []HookEntry `yaml:"botStart,omitempty"`
	BotStop         []HookEntry `yaml:"botStop,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}
