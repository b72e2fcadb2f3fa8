package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/filedash/filedash/pkg/logger"
	"github.com/filedash/filedash/pkg/protocol"
)

// SSEClient subscribes to the server's change event stream. Hosts use it to
// flip the presentation-only modified flag when a file changes remotely;
// the record store itself is never mutated from events.
type SSEClient struct {
	baseURL      string
	httpClient   *http.Client
	reconnectMin time.Duration
	reconnectMax time.Duration
	mu           sync.RWMutex
	authToken    string
}

// NewSSEClient creates a new SSE client.
func NewSSEClient(baseURL string) *SSEClient {
	return &SSEClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 0, // No timeout for SSE
		},
		reconnectMin: 1 * time.Second,
		reconnectMax: 30 * time.Second,
	}
}

// SetAuthToken sets the bearer token for SSE requests.
func (c *SSEClient) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

// Subscribe connects to the event stream and returns a channel of events.
// The channel closes when the context is cancelled. Connection drops are
// retried with exponential backoff.
func (c *SSEClient) Subscribe(ctx context.Context) <-chan protocol.Event {
	events := make(chan protocol.Event, 100)
	go c.subscribeLoop(ctx, events)
	return events
}

func (c *SSEClient) subscribeLoop(ctx context.Context, events chan<- protocol.Event) {
	defer close(events)

	delay := c.reconnectMin
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := c.connect(ctx, events)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("event stream error: %v (reconnecting in %s)", err, delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.reconnectMax {
				delay = c.reconnectMax
			}
			continue
		}
		delay = c.reconnectMin
	}
}

func (c *SSEClient) connect(ctx context.Context, events chan<- protocol.Event) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/events", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	c.mu.RLock()
	token := c.authToken
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event protocol.Event
		if err := json.Unmarshal([]byte(line[len("data: "):]), &event); err != nil {
			logger.Debug("skipping malformed event: %v", err)
			continue
		}

		select {
		case events <- event:
		case <-ctx.Done():
			return nil
		}
	}
	return scanner.Err()
}
