package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".replybot"

// Paths holds resolved filesystem paths for replybot data.
type Paths struct {
	Base        string // ~/.replybot
	Config      string // ~/.replybot/config.yaml
	Credentials string // ~/.replybot/credentials
	Logs        string // ~/.replybot/logs
	Data        string // ~/.replybot/data
}

// ResolvePaths computes all standard paths from the home directory.
// If REPLYBOT_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("REPLYBOT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:        base,
		Config:      filepath.Join(base, "config.yaml"),
		Credentials: filepath.Join(base, "credentials"),
		Logs:        filepath.Join(base, "logs"),
		Data:        filepath.Join(base, "data"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Credentials, p.Logs, p.Data} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// TokenFile is where the platform OAuth token is kept unless configured.
func (p Paths) TokenFile(cfg *Config) string {
	if cfg.Platform.X.TokenFile != "" {
		return cfg.Platform.X.TokenFile
	}
	return filepath.Join(p.Credentials, "x-token.json")
}

// HistoryDB is the SQLite file used by the sqlite history store.
func (p Paths) HistoryDB(cfg *Config) string {
	if cfg.History.Path != "" {
		return cfg.History.Path
	}
	return filepath.Join(p.Data, "replybot.db")
}
