// Package explorer implements the incremental hierarchical index behind the
// file browser: a flat record store populated lazily from the server, a
// load-state tracker that prevents duplicate fetches, path reconstruction,
// and the multi-selection state machine.
package explorer

import "github.com/filedash/filedash/pkg/models"

// Store is a flat, append-only collection of entries keyed by id. It does
// not deduplicate; the Loader guarantees each folder's children are fetched
// at most once. Iteration order is insertion order.
type Store struct {
	entries []models.Entry
}

// NewStore creates a store holding the given initial entries.
func NewStore(initial []models.Entry) *Store {
	entries := make([]models.Entry, len(initial))
	copy(entries, initial)
	return &Store{entries: entries}
}

// Insert appends a single entry.
func (s *Store) Insert(entry models.Entry) {
	s.entries = append(s.entries, entry)
}

// InsertMany appends entries in order. No deduplication is performed.
func (s *Store) InsertMany(entries []models.Entry) {
	s.entries = append(s.entries, entries...)
}

// FindByID returns the entry with the given id, or nil.
func (s *Store) FindByID(id int64) *models.Entry {
	for i := range s.entries {
		if s.entries[i].ID == id {
			return &s.entries[i]
		}
	}
	return nil
}

// FindByParent returns the children of parentID in insertion order.
func (s *Store) FindByParent(parentID int64) []models.Entry {
	var children []models.Entry
	for _, e := range s.entries {
		if e.ParentID == parentID {
			children = append(children, e)
		}
	}
	return children
}

// HasFileWithID returns true only if an entry with the id exists and is a
// file. Folder ids return false even when present.
func (s *Store) HasFileWithID(id int64) bool {
	for _, e := range s.entries {
		if e.ID == id && !e.IsFolder {
			return true
		}
	}
	return false
}

// Exists returns true if any entry has the given id.
func (s *Store) Exists(id int64) bool {
	return s.FindByID(id) != nil
}

// Len returns the number of entries in the store.
func (s *Store) Len() int {
	return len(s.entries)
}

// All returns every entry in insertion order.
func (s *Store) All() []models.Entry {
	return s.entries
}

// Folders returns all folder entries in insertion order.
func (s *Store) Folders() []models.Entry {
	var folders []models.Entry
	for _, e := range s.entries {
		if e.IsFolder {
			folders = append(folders, e)
		}
	}
	return folders
}

// Files returns all file entries in insertion order.
func (s *Store) Files() []models.Entry {
	var files []models.Entry
	for _, e := range s.entries {
		if !e.IsFolder {
			files = append(files, e)
		}
	}
	return files
}
