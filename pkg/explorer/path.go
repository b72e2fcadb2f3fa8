package explorer

import "github.com/filedash/filedash/pkg/models"

// ResolvePath reconstructs the ordered ancestor chain from a root entry down
// to targetID by walking parent links in the store. A parent id that cannot
// be resolved truncates the chain silently: the partial path built so far is
// returned. An unknown targetID yields an empty path.
//
// Ancestors may arrive in later folder loads, so callers re-resolve after
// every load rather than caching the result.
func ResolvePath(store *Store, targetID int64) []models.Entry {
	var path []models.Entry

	currentID := targetID
	for currentID != 0 {
		entry := store.FindByID(currentID)
		if entry == nil {
			break
		}
		path = append([]models.Entry{*entry}, path...)
		currentID = entry.ParentID
	}

	return path
}
