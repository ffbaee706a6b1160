package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/replybot/internal/config"
)

// DefaultCommandTimeout bounds a shell hook with no timeout configured.
const DefaultCommandTimeout = 5 * time.Second

// configNames maps config keys to event names.
var configNames = map[string]string{
	"mentionReceived": EventMentionReceived,
	"replySent":       EventReplySent,
	"mentionSkipped":  EventMentionSkipped,
	"updatePosted":    EventUpdatePosted,
	"botStart":        EventBotStart,
	"botStop":         EventBotStop,
}

// CommandHandler runs command with sh -c, writing the payload as JSON to
// its stdin.
func CommandHandler(command string, timeout time.Duration) Handler {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return func(ctx context.Context, p Payload) error {
		input, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Stdin = bytes.NewReader(input)
		cmd.Env = append(cmd.Environ(), "REPLYBOT_EVENT="+p.Event)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("hook %q: %w: %s", command, err, msg)
			}
			return fmt.Errorf("hook %q: %w", command, err)
		}
		return nil
	}
}

// RegisterFromConfig installs the shell hooks declared in cfg. It returns
// how many were registered.
func RegisterFromConfig(m *Manager, cfg config.HooksConfig) int {
	n := 0
	for key, entries := range cfg.ByEvent() {
		event := configNames[key]
		for i, e := range entries {
			if strings.TrimSpace(e.Command) == "" {
				continue
			}
			name := fmt.Sprintf("config:%s[%d]", key, i)
			m.On(event, name, CommandHandler(e.Command, time.Duration(e.Timeout)*time.Millisecond))
			n++
		}
	}
	return n
}
