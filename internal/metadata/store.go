// Package metadata defines the server-side entry store interface.
package metadata

import (
	"context"
	"errors"

	"github.com/filedash/filedash/pkg/models"
)

// ErrUserNotFound reports that a user has no entries at all.
var ErrUserNotFound = errors.New("user not found")

// Store provides read access to a user's entry records. The server never
// invents hierarchy: it serves the rows it has, in stored order.
type Store interface {
	// RootListing returns a user's root-level entries together with their
	// immediate children (the initial payload a session is seeded with).
	// Returns ErrUserNotFound when the user has no entries.
	RootListing(ctx context.Context, userID int64) ([]models.Entry, error)

	// Children returns the direct children of a folder in stored order.
	// An unknown folder yields an empty listing.
	Children(ctx context.Context, userID, folderID int64) ([]models.Entry, error)

	// FileByID returns the entry if it exists and is a file.
	FileByID(ctx context.Context, userID, fileID int64) (*models.Entry, error)

	// MarkRequested records a download request for a file.
	MarkRequested(ctx context.Context, userID, fileID int64) error

	Close() error
}
