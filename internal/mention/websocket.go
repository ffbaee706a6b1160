package mention

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/replybot/internal/domain"
	"github.com/soyeahso/replybot/internal/logging"
	"github.com/soyeahso/replybot/internal/version"
)

// Frame types sent by a mention relay.
const (
	FrameMention = "mention"
	FrameError   = "error"
	FramePing    = "ping"
)

// Frame is one message on the relay socket.
type Frame struct {
	Type    string          `json:"type"`
	Mention *domain.Mention `json:"mention,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

// WebsocketSubscriber reads mentions from a relay over a websocket.
type WebsocketSubscriber struct {
	URL         string
	Token       string
	Dialer      *websocket.Dialer
	IdleTimeout time.Duration // drop the connection after this long without a frame
	log         *logging.Logger
}

var _ Subscriber = (*WebsocketSubscriber)(nil)

// NewWebsocketSubscriber creates a subscriber for url. token, when set, is
// sent as a bearer credential.
func NewWebsocketSubscriber(url, token string, log *logging.Logger) *WebsocketSubscriber {
	return &WebsocketSubscriber{
		URL:         url,
		Token:       token,
		Dialer:      websocket.DefaultDialer,
		IdleTimeout: 2 * time.Minute,
		log:         log.Sub("mention.ws"),
	}
}

func (w *WebsocketSubscriber) Subscribe(ctx context.Context, push func(domain.Mention)) error {
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())
	if w.Token != "" {
		header.Set("Authorization", "Bearer "+w.Token)
	}

	conn, resp, err := w.Dialer.DialContext(ctx, w.URL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return &domain.SubscriptionProtocolError{
				Code:    fmt.Sprintf("%d", resp.StatusCode),
				Message: "relay refused the subscription",
			}
		}
		return &domain.TransientNetworkError{Op: "dial relay", Err: err}
	}
	defer conn.Close()
	w.log.Info().Str("url", w.URL).Msg("subscribed")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		if w.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(w.IdleTimeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &domain.TransientNetworkError{Op: "read relay", Err: err}
		}

		var f Frame
		if err := json.Unmarshal(msg, &f); err != nil {
			return &domain.SubscriptionProtocolError{Code: "malformed", Message: err.Error()}
		}
		switch f.Type {
		case FrameMention:
			if f.Mention == nil || f.Mention.ID == "" {
				return &domain.SubscriptionProtocolError{Code: "malformed", Message: "mention frame without an id"}
			}
			push(*f.Mention)
		case FrameError:
			return &domain.SubscriptionProtocolError{Code: f.Code, Message: f.Message}
		case FramePing:
		default:
			w.log.Debug().Str("type", f.Type).Msg("ignoring unknown frame")
		}
	}
}

// IsProtocolError reports whether err ends a subscription for good.
func IsProtocolError(err error) bool {
	var perr *domain.SubscriptionProtocolError
	return errors.As(err, &perr)
}
