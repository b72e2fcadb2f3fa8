package explorer

import (
	"context"
	"sync"

	"github.com/filedash/filedash/pkg/logger"
	"github.com/filedash/filedash/pkg/models"
)

// Fetcher is the data-access boundary to the remote file service. The two
// listing calls return FileSystemEntry-shaped records; RequestFile fires a
// side-effecting download request.
type Fetcher interface {
	FetchRoot(ctx context.Context, userID int64) ([]models.Entry, error)
	FetchChildren(ctx context.Context, userID, folderID int64) ([]models.Entry, error)
	RequestFile(ctx context.Context, userID, fileID int64) error
}

// Loader orchestrates on-demand folder loads: check the load set, fetch
// from the remote, append into the store, roll back the mark on failure.
// It owns the store and load set; all access to either goes through its
// mutex, so UI events and fetch completions from any goroutine are safe.
type Loader struct {
	mu      sync.Mutex
	store   *Store
	loads   *LoadSet
	fetcher Fetcher
	userID  int64
}

// NewLoader creates a loader over an empty store.
func NewLoader(fetcher Fetcher, userID int64) *Loader {
	return &Loader{
		store:   NewStore(nil),
		loads:   NewLoadSet(),
		fetcher: fetcher,
		userID:  userID,
	}
}

// LoadRoot fetches the root listing and seeds the store with it. Root-level
// entries are marked pre-loaded: their children arrive in the same payload.
// Unlike folder loads, a root load failure is returned to the caller so the
// host can surface an initial-load error state.
func (l *Loader) LoadRoot(ctx context.Context) error {
	entries, err := l.fetcher.FetchRoot(ctx, l.userID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.store.InsertMany(entries)
	for _, e := range entries {
		if e.IsRoot() {
			l.loads.MarkLoaded(e.ID)
		}
	}
	return nil
}

// LoadFolder fetches the folder's children unless they are already loaded
// or a fetch is in flight. The folder is marked loaded before the fetch is
// issued, so rapid repeated events for the same folder produce exactly one
// remote request. A failed fetch unmarks the folder (permitting retry) and
// degrades to "folder appears empty"; it is never raised to the caller.
func (l *Loader) LoadFolder(ctx context.Context, folderID int64) {
	l.mu.Lock()
	if l.loads.IsLoaded(folderID) {
		l.mu.Unlock()
		return
	}
	l.loads.MarkLoaded(folderID)
	l.mu.Unlock()

	entries, err := l.fetcher.FetchChildren(ctx, l.userID, folderID)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.loads.Unmark(folderID)
		logger.Error("loading contents of folder %d failed: %v", folderID, err)
		return
	}
	l.store.InsertMany(entries)
}

// IsLoaded reports whether the folder's contents are known.
func (l *Loader) IsLoaded(folderID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads.IsLoaded(folderID)
}

// Entry returns a copy of the entry with the given id.
func (l *Loader) Entry(id int64) (models.Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e := l.store.FindByID(id); e != nil {
		return *e, true
	}
	return models.Entry{}, false
}

// Children returns the known children of a folder in insertion order.
func (l *Loader) Children(parentID int64) []models.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.FindByParent(parentID)
}

// Resolve returns the root-first ancestor chain for targetID.
func (l *Loader) Resolve(targetID int64) []models.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ResolvePath(l.store, targetID)
}

// HasFile returns true only if the id exists and refers to a file.
func (l *Loader) HasFile(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.HasFileWithID(id)
}

// StoreLen returns the number of entries in the backing store.
func (l *Loader) StoreLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Len()
}
