package explorer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/filedash/filedash/pkg/models"
)

// ErrNotAFile is returned when a download request targets a folder id or an
// id that is not in the store.
var ErrNotAFile = errors.New("selected entry is not a file")

// Session is one user's view over the incremental index: the loader-backed
// store, the active ancestor path, and the selection state. All methods are
// safe for concurrent use; mutation is visible to subsequent reads.
type Session struct {
	mu        sync.Mutex
	loader    *Loader
	selection *Selection
	path      []models.Entry
	fetcher   Fetcher
	userID    int64
}

// NewSession creates a session for the given user. Each session owns its
// own store, load set, and selection; nothing is shared between sessions.
func NewSession(fetcher Fetcher, userID int64) *Session {
	return &Session{
		loader:    NewLoader(fetcher, userID),
		selection: NewSelection(),
		fetcher:   fetcher,
		userID:    userID,
	}
}

// UserID returns the session's user id.
func (s *Session) UserID() int64 {
	return s.userID
}

// Loader exposes the folder loader for hosts that trigger loads directly
// (tree expansion, FUSE readdir).
func (s *Session) Loader() *Loader {
	return s.loader
}

// Start fetches the root listing and positions the session on the first
// root folder. This is the only load whose failure surfaces to the caller.
func (s *Session) Start(ctx context.Context) error {
	if err := s.loader.LoadRoot(ctx); err != nil {
		return fmt.Errorf("load root listing: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	roots := s.loader.Children(0)
	if len(roots) > 0 && roots[0].IsFolder {
		s.path = []models.Entry{roots[0]}
		s.selection.Reset(roots[0].ID)
	}
	return nil
}

// NavigateTo makes the folder with the given id the active folder: the
// active path becomes its ancestor chain, the selection resets to the
// folder itself, and its contents are loaded if unknown. Ids that resolve
// to files or to nothing are ignored.
func (s *Session) NavigateTo(ctx context.Context, folderID int64) {
	entry, ok := s.loader.Entry(folderID)
	if !ok || !entry.IsFolder {
		return
	}

	s.loader.LoadFolder(ctx, folderID)

	s.mu.Lock()
	defer s.mu.Unlock()
	// Resolve after the load: ancestors may have arrived with it.
	s.path = s.loader.Resolve(folderID)
	s.selection.Reset(folderID)
}

// NavigateUp moves to the parent of the active folder. No-op at a root.
func (s *Session) NavigateUp(ctx context.Context) {
	s.mu.Lock()
	if len(s.path) < 2 {
		s.mu.Unlock()
		return
	}
	parent := s.path[len(s.path)-2]
	s.mu.Unlock()

	s.NavigateTo(ctx, parent.ID)
}

// Path returns a copy of the active ancestor chain, root first.
func (s *Session) Path() []models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := make([]models.Entry, len(s.path))
	copy(path, s.path)
	return path
}

// Contents returns the visible entries of the active folder in store order.
func (s *Session) Contents() []models.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contentsLocked()
}

func (s *Session) contentsLocked() []models.Entry {
	if len(s.path) == 0 {
		return nil
	}
	return s.loader.Children(s.path[len(s.path)-1].ID)
}

// Select applies a click on an entry of the active folder, with the
// modifier keys held at the time of the event.
func (s *Session) Select(id int64, rangeMod, toggleMod bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.Select(id, s.contentsLocked(), rangeMod, toggleMod)
}

// MoveCursor moves the effective cursor by delta visible positions from the
// anchor, clamped at the list bounds, and selects the landing entry with
// the given modifiers. With no anchored position the first entry is chosen.
func (s *Session) MoveCursor(delta int, rangeMod, toggleMod bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	visible := s.contentsLocked()
	if len(visible) == 0 {
		return
	}

	idx := -1
	if anchor, ok := s.selection.Anchor(); ok {
		idx = indexOf(visible, anchor)
	}
	next := idx + delta
	if next < 0 {
		next = 0
	}
	if next > len(visible)-1 {
		next = len(visible) - 1
	}
	s.selection.Select(visible[next].ID, visible, rangeMod, toggleMod)
}

// Activate opens the anchored entry: folders become the active folder,
// files are ignored.
func (s *Session) Activate(ctx context.Context) {
	s.mu.Lock()
	anchor, ok := s.selection.Anchor()
	s.mu.Unlock()
	if !ok {
		return
	}
	s.NavigateTo(ctx, anchor)
}

// SelectAll selects every entry of the active folder, as Ctrl+A does.
func (s *Session) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.SelectAll(s.contentsLocked())
}

// ClearSelection empties the selection, as Escape does.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.Clear()
}

// Selected returns the selected ids.
func (s *Session) Selected() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.IDs()
}

// IsSelected returns true if the id is currently selected.
func (s *Session) IsSelected(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.IsSelected(id)
}

// Anchor returns the current range-selection pivot.
func (s *Session) Anchor() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Anchor()
}

// RequestDownload fires a download request for a file. Folder ids and
// unknown ids are rejected before any remote call; the store is never
// mutated by a download request.
func (s *Session) RequestDownload(ctx context.Context, fileID int64) error {
	if !s.loader.HasFile(fileID) {
		return fmt.Errorf("request download of %d: %w", fileID, ErrNotAFile)
	}
	if err := s.fetcher.RequestFile(ctx, s.userID, fileID); err != nil {
		return fmt.Errorf("request download of %d: %w", fileID, err)
	}
	return nil
}
