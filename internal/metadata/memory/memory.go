// Package memory provides an in-memory metadata store, used for tests and
// demo deployments without a database.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/filedash/filedash/internal/auth"
	"github.com/filedash/filedash/internal/metadata"
	"github.com/filedash/filedash/pkg/models"
)

// Store keeps each user's entries in insertion order. It also doubles as
// the credential source when running without a database.
type Store struct {
	mu        sync.RWMutex
	entries   map[int64][]models.Entry
	creds     map[string]auth.Credentials
	requested map[int64]map[int64]bool // userID -> fileID -> requested
}

// New creates a store seeded with the given per-user entries.
func New(entries map[int64][]models.Entry) *Store {
	if entries == nil {
		entries = make(map[int64][]models.Entry)
	}
	return &Store{
		entries:   entries,
		creds:     make(map[string]auth.Credentials),
		requested: make(map[int64]map[int64]bool),
	}
}

// AddUser registers login credentials for a user.
func (s *Store) AddUser(username string, userID int64, passwordHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[username] = auth.Credentials{UserID: userID, PasswordHash: passwordHash}
}

// Lookup implements auth.UserSource.
func (s *Store) Lookup(ctx context.Context, username string) (*auth.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	creds, ok := s.creds[username]
	if !ok {
		return nil, auth.ErrUnknownUser
	}
	return &creds, nil
}

// seedUser is one user's block in a seed file.
type seedUser struct {
	UserID       int64          `json:"user_id"`
	Username     string         `json:"username"`
	PasswordHash string         `json:"password_hash"`
	Entries      []models.Entry `json:"entries"`
}

// LoadSeed creates a store from a JSON seed file.
func LoadSeed(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var users []seedUser
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	s := New(nil)
	for _, u := range users {
		s.entries[u.UserID] = u.Entries
		if u.Username != "" {
			s.creds[u.Username] = auth.Credentials{UserID: u.UserID, PasswordHash: u.PasswordHash}
		}
	}
	return s, nil
}

// RootListing returns root-level entries and their immediate children.
func (s *Store) RootListing(ctx context.Context, userID int64) ([]models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, ok := s.entries[userID]
	if !ok {
		return nil, metadata.ErrUserNotFound
	}

	rootIDs := make(map[int64]bool)
	var listing []models.Entry
	for _, e := range all {
		if e.IsRoot() {
			listing = append(listing, e)
			rootIDs[e.ID] = true
		}
	}
	for _, e := range all {
		if !e.IsRoot() && rootIDs[e.ParentID] {
			listing = append(listing, e)
		}
	}
	return listing, nil
}

// Children returns the direct children of a folder in stored order.
func (s *Store) Children(ctx context.Context, userID, folderID int64) ([]models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var children []models.Entry
	for _, e := range s.entries[userID] {
		if e.ParentID == folderID {
			children = append(children, e)
		}
	}
	return children, nil
}

// FileByID returns the entry if it exists and is a file.
func (s *Store) FileByID(ctx context.Context, userID, fileID int64) (*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries[userID] {
		if e.ID == fileID && !e.IsFolder {
			entry := e
			return &entry, nil
		}
	}
	return nil, nil
}

// MarkRequested records a download request for a file.
func (s *Store) MarkRequested(ctx context.Context, userID, fileID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.requested[userID] == nil {
		s.requested[userID] = make(map[int64]bool)
	}
	s.requested[userID][fileID] = true
	return nil
}

// WasRequested reports whether a download request was recorded.
func (s *Store) WasRequested(userID, fileID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requested[userID][fileID]
}

// Close is a no-op for the memory store.
func (s *Store) Close() error {
	return nil
}
