package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultInstructions   = "Speak like a friendly social media account"
	DefaultSchedulePrompt = "Write a short post about {subject}"
	DefaultCallbackAddr   = "127.0.0.1:8765"
	DefaultWindowSize     = 6
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Completion: CompletionConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			Instructions:   DefaultInstructions,
			TimeoutSeconds: 30,
			Retries:        3,
			BackoffMs:      500,
			MaxTokens:      300,
		},
		Platform: PlatformConfig{
			Kind: "x",
			X: XConfig{
				BaseURL:     "https://api.twitter.com",
				RedirectURL: "http://" + DefaultCallbackAddr + "/auth",
				Scopes:      []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
			},
		},
		Mentions: MentionsConfig{
			Strategy:            "poll",
			PollIntervalSeconds: 60,
			PollTimeoutSeconds:  20,
			Transport:           "websocket",
		},
		History: HistoryConfig{
			WindowSize: DefaultWindowSize,
			Store:      "memory",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "replybot",
			},
		},
		Schedule: ScheduleConfig{
			IntervalMinutes: 240,
			Prompt:          DefaultSchedulePrompt,
		},
		Callback: CallbackConfig{
			Addr: DefaultCallbackAddr,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
