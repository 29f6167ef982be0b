// Package relay implements the validator's client to the best-effort
// pub/sub relay transport (§6.1): a NIP-01-shaped websocket feed of
// ["REQ",...]/["EVENT",...] frames. The relay has no consensus role; the
// validator treats everything it delivers as untrusted input to be
// independently verified (§1, §5).
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/manastr/validator/pkg/event"
)

// ReconnectConfig bounds the backoff applied to dropped relay connections.
type ReconnectConfig struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultReconnectConfig matches the teacher's doubling-backoff convention,
// capped so a long outage does not push the delay out indefinitely.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// Client subscribes to and publishes KIND 31000-31006 events against one
// relay websocket endpoint, reconnecting with backoff on disconnect. It
// never validates event content; that is pkg/validator's job.
type Client struct {
	url       string
	reconnect ReconnectConfig
	logger    *log.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient constructs a Client against a relay websocket URL (e.g.
// "wss://relay.example.org").
func NewClient(url string) *Client {
	return &Client{
		url:       url,
		reconnect: DefaultReconnectConfig(),
		logger:    log.New(log.Writer(), "[relay] ", log.LstdFlags),
	}
}

// reqFrame is the outgoing NIP-01 subscription request: ["REQ", subID, filter].
type reqFrame struct {
	SubID  string
	Filter filter
}

type filter struct {
	Kinds []int `json:"kinds,omitempty"`
}

func (f reqFrame) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{"REQ", f.SubID, f.Filter})
}

// decodeFrame parses an incoming relay frame, recognizing the ["EVENT",
// subID, event] shape and ignoring other NIP-01 frame types (EOSE, NOTICE).
func decodeFrame(raw []byte) (label string, subID string, ev *event.Event, err error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", "", nil, fmt.Errorf("relay: malformed frame: %w", err)
	}
	if len(parts) < 1 {
		return "", "", nil, fmt.Errorf("relay: empty frame")
	}
	if err := json.Unmarshal(parts[0], &label); err != nil {
		return "", "", nil, fmt.Errorf("relay: frame label: %w", err)
	}
	if label != "EVENT" || len(parts) < 3 {
		return label, "", nil, nil
	}
	if err := json.Unmarshal(parts[1], &subID); err != nil {
		return label, "", nil, fmt.Errorf("relay: frame sub id: %w", err)
	}
	var e event.Event
	if err := json.Unmarshal(parts[2], &e); err != nil {
		return label, subID, nil, fmt.Errorf("relay: frame event: %w", err)
	}
	return label, subID, &e, nil
}

// Subscribe opens (and transparently maintains) a websocket connection to
// the relay, issues a REQ for the given kinds, and streams every delivered
// event onto the returned channel until ctx is cancelled. The channel is
// closed when ctx is done; transport errors are logged and retried with
// backoff rather than surfaced to the caller, matching the relay's
// best-effort contract (§6.1).
func (c *Client) Subscribe(ctx context.Context, kinds []int) (<-chan event.Event, error) {
	out := make(chan event.Event, 64)
	subID := uuid.NewString()

	go func() {
		defer close(out)
		delay := c.reconnect.BaseDelay
		for {
			if ctx.Err() != nil {
				return
			}
			if err := c.runOnce(ctx, subID, kinds, out); err != nil {
				c.logger.Printf("subscription loop error: %v", err)
			}
			if ctx.Err() != nil {
				return
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			delay *= 2
			if delay > c.reconnect.MaxDelay {
				delay = c.reconnect.MaxDelay
			}
		}
	}()

	return out, nil
}

func (c *Client) runOnce(ctx context.Context, subID string, kinds []int, out chan<- event.Event) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
	}()

	req := reqFrame{SubID: subID, Filter: filter{Kinds: kinds}}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write REQ: %w", err)
	}

	// Subscribe does not reset its reconnect delay after a successful
	// connection; the delay keeps doubling across reconnects up to MaxDelay.
	c.logger.Printf("connected, subscription %s, kinds=%v", subID, kinds)

	for {
		if ctx.Err() != nil {
			return nil
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		label, gotSubID, ev, err := decodeFrame(raw)
		if err != nil {
			c.logger.Printf("dropping malformed frame: %v", err)
			continue
		}
		if label != "EVENT" || gotSubID != subID || ev == nil {
			continue
		}
		select {
		case out <- *ev:
		case <-ctx.Done():
			return nil
		}
	}
}

// Publish sends ["EVENT", ev] over the current connection. If no connection
// is currently established, Publish returns an error; callers that need
// delivery guarantees should retry at a higher level, matching the relay's
// best-effort contract.
func (c *Client) Publish(ctx context.Context, ev event.Event) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("relay: not connected")
	}

	frame := []interface{}{"EVENT", ev}
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("relay: publish: %w", err)
	}
	return nil
}
