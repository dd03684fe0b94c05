// Package twitch connects to Twitch chat over IRC on WebSocket.
package twitch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/keshon/togglebot/internal/config"
	"github.com/keshon/togglebot/internal/dispatch"
	"github.com/keshon/togglebot/internal/platform"
	"github.com/keshon/togglebot/pkg/retrylimit"
)

// DefaultURL is Twitch's IRC WebSocket endpoint.
const DefaultURL = "wss://irc-ws.chat.twitch.tv:443"

var errReconnect = errors.New("server requested reconnect")

// Client is one Twitch chat connection joined to a single channel.
type Client struct {
	name    string
	login   string
	channel string
	token   string
	url     string

	handler *platform.Handler
	limiter *retrylimit.AdaptiveLimiter
	retry   retrylimit.RetryConfig
	dialer  *websocket.Dialer
}

// Option configures a Client.
type Option func(*Client)

// WithURL overrides the server address.
func WithURL(url string) Option {
	return func(c *Client) { c.url = url }
}

// WithRetry replaces the reconnect policy.
func WithRetry(cfg retrylimit.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithLimiter replaces the outbound message pacing.
func WithLimiter(l *retrylimit.AdaptiveLimiter) Option {
	return func(c *Client) { c.limiter = l }
}

// New prepares a client for the configured platform p.
func New(p config.Platform, handler *platform.Handler, opts ...Option) (*Client, error) {
	token := strings.TrimPrefix(p.Credential(), "oauth:")
	if token == "" {
		return nil, errors.New("twitch: no token configured")
	}
	c := &Client{
		name:    p.Name,
		login:   strings.ToLower(p.Login),
		channel: strings.ToLower(strings.TrimPrefix(p.Channel, "#")),
		token:   token,
		url:     DefaultURL,
		handler: handler,
		// 20 messages per 30 seconds for regular accounts.
		limiter: retrylimit.NewAdaptiveLimiter(rate.Limit(20.0/30), rate.Limit(0.2), rate.Limit(1), rate.Limit(0.05), 0.5),
		retry:   retrylimit.DefaultRetryConfig(),
		dialer:  websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the platform name messages are dispatched under.
func (c *Client) Name() string { return c.name }

// Run connects and reconnects until ctx is done or authentication fails.
func (c *Client) Run(ctx context.Context) error {
	err := retrylimit.WithRetryConfig(ctx, func() error {
		return c.session(ctx)
	}, nil, c.retry)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Client) session(ctx context.Context) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			return &retrylimit.StatusError{Code: resp.StatusCode, Err: err}
		}
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for _, line := range []string{
		"CAP REQ :twitch.tv/tags twitch.tv/commands",
		"PASS oauth:" + c.token,
		"NICK " + c.login,
		"JOIN #" + c.channel,
	} {
		if err := write(conn, line); err != nil {
			return err
		}
	}

	out := make(chan string, 64)
	writeErr := make(chan error, 1)
	go c.writeLoop(ctx, conn, out, writeErr)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case werr := <-writeErr:
				return werr
			default:
			}
			return fmt.Errorf("read: %w", err)
		}
		for _, raw := range strings.Split(string(data), "\r\n") {
			if raw == "" {
				continue
			}
			if err := c.handleLine(ctx, ParseLine(raw), out); err != nil {
				return err
			}
		}
	}
}

func (c *Client) handleLine(ctx context.Context, l Line, out chan<- string) error {
	switch l.Command {
	case "PING":
		send(ctx, out, "PONG :"+l.Param(0))
	case "RECONNECT":
		return errReconnect
	case "001":
		log.Info().Str("component", "twitch").Str("platform", c.name).Str("channel", c.channel).Msg("connection ready")
	case "NOTICE":
		text := l.Param(1)
		if strings.Contains(text, "Login authentication failed") || strings.Contains(text, "Improperly formatted auth") {
			return retrylimit.Fatal(fmt.Errorf("twitch: %s", text))
		}
		ev := log.Warn().Str("component", "twitch").Str("platform", c.name).Str("notice", text)
		if l.Tags["msg-id"] == "msg_ratelimit" {
			c.limiter.RateLimited()
			ev = ev.Float64("send_limit", c.limiter.CurrentLimit())
		}
		ev.Msg("server notice")
	case "PRIVMSG":
		if strings.EqualFold(l.Nick(), c.login) {
			return nil
		}
		sender := l.Tags["display-name"]
		if sender == "" {
			sender = l.Nick()
		}
		msg := dispatch.Message{
			Platform: c.name,
			Text:     l.Param(1),
			Sender:   sender,
			Channel:  strings.TrimPrefix(l.Param(0), "#"),
		}
		parent := l.Tags["id"]
		go func() {
			reply, ok := c.handler.Handle(ctx, msg)
			if ok {
				send(ctx, out, privmsg(msg.Channel, parent, reply))
			}
		}()
	}
	return nil
}

func (c *Client) writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan string, errc chan<- error) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-out:
			chat := strings.Contains(line, "PRIVMSG ")
			if chat {
				if err := c.limiter.Wait(ctx); err != nil {
					return
				}
			}
			if err := write(conn, line); err != nil {
				errc <- err
				conn.Close()
				return
			}
			if chat {
				c.limiter.Success()
			}
		}
	}
}

func send(ctx context.Context, out chan<- string, line string) {
	select {
	case out <- line:
	case <-ctx.Done():
	}
}

func write(conn *websocket.Conn, line string) error {
	if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(line+"\r\n")); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
