package explorer

// LoadSet tracks which folders already have their contents fetched. It is
// the sole duplicate-fetch guard: the Store does not deduplicate, so
// re-fetching a loaded folder would append its children a second time.
type LoadSet struct {
	loaded map[int64]struct{}
}

// NewLoadSet creates an empty load set.
func NewLoadSet() *LoadSet {
	return &LoadSet{loaded: make(map[int64]struct{})}
}

// IsLoaded returns true if the folder's contents have been fetched (or a
// fetch is in flight).
func (l *LoadSet) IsLoaded(folderID int64) bool {
	_, ok := l.loaded[folderID]
	return ok
}

// MarkLoaded records the folder as fetched. Idempotent.
func (l *LoadSet) MarkLoaded(folderID int64) {
	l.loaded[folderID] = struct{}{}
}

// Unmark rolls back a failed fetch so a later retry can run.
func (l *LoadSet) Unmark(folderID int64) {
	delete(l.loaded, folderID)
}

// Count returns the number of loaded folders.
func (l *LoadSet) Count() int {
	return len(l.loaded)
}
