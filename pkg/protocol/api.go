// Package protocol defines the API request/response types.
package protocol

import (
	"time"

	"github.com/filedash/filedash/pkg/models"
)

// ListResponse is returned by the root-listing and folder-contents
// endpoints. Entries preserve server ordering.
type ListResponse struct {
	Entries []models.Entry `json:"entries"`
}

// RequestFileRequest is the body for POST /api/v1/files/{userID}/request.
type RequestFileRequest struct {
	FileID int64 `json:"file_id"`
}

// RequestFileResponse acknowledges a download request.
type RequestFileResponse struct {
	FileID   int64  `json:"file_id"`
	Name     string `json:"name,omitempty"`
	Accepted bool   `json:"accepted"`
}

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
}

// LoginRequest is the body for POST /api/v1/auth/token.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
}

// Event types published on the SSE stream.
const (
	EventRequested = "requested"
	EventModified  = "modified"
)

// Event represents a file change notification.
type Event struct {
	Type      string `json:"type"`
	UserID    int64  `json:"user_id"`
	EntryID   int64  `json:"entry_id"`
	Name      string `json:"name,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
