// Package client provides the HTTP client for the file service API, with
// retry, auth, and online tracking. It implements explorer.Fetcher.
package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/filedash/filedash/pkg/logger"
	"github.com/filedash/filedash/pkg/models"
	"github.com/filedash/filedash/pkg/protocol"
	"github.com/filedash/filedash/pkg/retry"
)

// ErrNotFound reports that the server has no data for the requested user or
// entry. Folder-contents fetches translate it to an empty listing; the root
// listing surfaces it so the host can show an initial-load error.
var ErrNotFound = errors.New("not found")

// Client talks to the file service API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig retry.Config

	mu        sync.RWMutex
	online    bool
	lastPing  time.Time
	authToken string
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RetryConfig retry.Config
	AuthToken   string
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retryConfig: cfg.RetryConfig,
		online:      true,
		authToken:   cfg.AuthToken,
	}
}

// SetAuthToken sets the bearer token for requests.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

// AuthToken returns the current bearer token.
func (c *Client) AuthToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken
}

func (c *Client) applyAuth(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

// IsOnline returns true if the server was reachable on the last call.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online != online {
		if online {
			logger.Info("server is back online")
		} else {
			logger.Error("server is offline")
		}
	}
	c.online = online
	c.lastPing = time.Now()
}

// Ping checks if the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.setOnline(false)
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	c.setOnline(true)
	return nil
}

// Login authenticates with username/password and stores the token.
func (c *Client) Login(ctx context.Context, username, password string) (*protocol.LoginResponse, error) {
	body, _ := json.Marshal(protocol.LoginRequest{Username: username, Password: password})

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/auth/token", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("login failed (%d): %s", resp.StatusCode, string(data))
	}

	var result protocol.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parse login response: %w", err)
	}

	c.SetAuthToken(result.Token)
	return &result, nil
}

// FetchRoot fetches the root listing for a user. A 404 surfaces as
// ErrNotFound so session start can report it.
func (c *Client) FetchRoot(ctx context.Context, userID int64) ([]models.Entry, error) {
	url := c.baseURL + "/api/v1/files/" + strconv.FormatInt(userID, 10)
	return c.fetchListing(ctx, url, false)
}

// FetchChildren fetches the contents of a folder. A 404 degrades to an
// empty listing: the folder simply has nothing to show.
func (c *Client) FetchChildren(ctx context.Context, userID, folderID int64) ([]models.Entry, error) {
	url := c.baseURL + "/api/v1/files/" + strconv.FormatInt(userID, 10) +
		"/folders/" + strconv.FormatInt(folderID, 10)
	return c.fetchListing(ctx, url, true)
}

func (c *Client) fetchListing(ctx context.Context, url string, emptyOnNotFound bool) ([]models.Entry, error) {
	return retry.DoWithResult(ctx, c.retryConfig, func() ([]models.Entry, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept-Encoding", "gzip")
		c.applyAuth(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.setOnline(false)
			return nil, retry.Transient(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusNotFound && emptyOnNotFound:
			c.setOnline(true)
			return nil, nil
		case resp.StatusCode == http.StatusNotFound:
			c.setOnline(true)
			return nil, ErrNotFound
		case resp.StatusCode >= 500:
			c.setOnline(false)
			return nil, retry.Transient(fmt.Errorf("server error: %d", resp.StatusCode))
		default:
			return nil, fmt.Errorf("server returned %d", resp.StatusCode)
		}

		c.setOnline(true)

		var reader io.Reader = resp.Body
		if resp.Header.Get("Content-Encoding") == "gzip" {
			gr, err := gzip.NewReader(resp.Body)
			if err != nil {
				return nil, err
			}
			defer gr.Close()
			reader = gr
		}

		var listing protocol.ListResponse
		if err := json.NewDecoder(reader).Decode(&listing); err != nil {
			return nil, fmt.Errorf("decode listing: %w", err)
		}
		return listing.Entries, nil
	})
}

// RequestFile fires a download request for a file. The server rejects
// folder ids with 409; the data model is never mutated either way.
func (c *Client) RequestFile(ctx context.Context, userID, fileID int64) error {
	body, _ := json.Marshal(protocol.RequestFileRequest{FileID: fileID})
	url := c.baseURL + "/api/v1/files/" + strconv.FormatInt(userID, 10) + "/request"

	return retry.Do(ctx, c.retryConfig, func() error {
		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		c.applyAuth(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.setOnline(false)
			return retry.Transient(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted:
			c.setOnline(true)
			return nil
		case resp.StatusCode >= 500:
			c.setOnline(false)
			return retry.Transient(fmt.Errorf("server error: %d", resp.StatusCode))
		default:
			data, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("request rejected (%d): %s", resp.StatusCode, string(data))
		}
	})
}
