package callback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/replybot/internal/version"
)

// Remote fetches the authorization from a receiver running elsewhere, e.g.
// on a host reachable by the provider's redirect.
type Remote struct {
	BaseURL string
	HTTP    *http.Client
}

var _ Source = (*Remote)(nil)

// NewRemote creates a client for the receiver at baseURL.
func NewRemote(baseURL string) *Remote {
	return &Remote{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Take asks the receiver for the pending authorization. A 404 means none
// has arrived yet.
func (r *Remote) Take(ctx context.Context) (Authorization, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/get", nil)
	if err != nil {
		return Authorization{}, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := r.HTTP.Do(req)
	if err != nil {
		return Authorization{}, false, fmt.Errorf("callback receiver: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var a Authorization
		if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
			return Authorization{}, false, fmt.Errorf("callback receiver: bad response: %w", err)
		}
		return a, true, nil
	case http.StatusNotFound:
		return Authorization{}, false, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Authorization{}, false, fmt.Errorf("callback receiver: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// Await polls src every interval until an authorization arrives or ctx
// ends.
func Await(ctx context.Context, src Source, interval time.Duration) (Authorization, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		a, ok, err := src.Take(ctx)
		if err != nil {
			return Authorization{}, err
		}
		if ok {
			return a, nil
		}
		select {
		case <-ctx.Done():
			return Authorization{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
