package explorer

import "github.com/filedash/filedash/pkg/models"

// Selection is the multi-selection state machine: the set of selected ids
// plus the anchor, the most recently selected id used as the pivot for
// range selection.
type Selection struct {
	selected  map[int64]struct{}
	anchor    int64
	hasAnchor bool
}

// NewSelection creates an empty selection.
func NewSelection() *Selection {
	return &Selection{selected: make(map[int64]struct{})}
}

// Select applies a selection event for id against the visible ordered list.
// Range selection operates on visible positions, so the ordering of visible
// matters. The range modifier is checked before the toggle modifier; when
// the anchor cannot be located in the visible list a range select falls
// through to a plain replace.
func (s *Selection) Select(id int64, visible []models.Entry, rangeMod, toggleMod bool) {
	switch {
	case rangeMod && s.hasAnchor && len(visible) > 0:
		anchorIdx := indexOf(visible, s.anchor)
		targetIdx := indexOf(visible, id)
		if anchorIdx == -1 || targetIdx == -1 {
			s.replace(id)
			break
		}
		start, end := anchorIdx, targetIdx
		if start > end {
			start, end = end, start
		}
		s.selected = make(map[int64]struct{}, end-start+1)
		for i := start; i <= end; i++ {
			s.selected[visible[i].ID] = struct{}{}
		}
	case toggleMod:
		if _, ok := s.selected[id]; ok {
			delete(s.selected, id)
		} else {
			s.selected[id] = struct{}{}
		}
	default:
		s.replace(id)
	}

	s.anchor = id
	s.hasAnchor = true
}

func (s *Selection) replace(id int64) {
	s.selected = map[int64]struct{}{id: {}}
}

// Reset replaces the selection with a single implicit selection, as happens
// when navigation enters a new folder.
func (s *Selection) Reset(id int64) {
	s.replace(id)
	s.anchor = id
	s.hasAnchor = true
}

// SelectAll selects every visible entry, anchoring on the last one so a
// following range selection pivots from the end of the list.
func (s *Selection) SelectAll(visible []models.Entry) {
	s.selected = make(map[int64]struct{}, len(visible))
	for _, e := range visible {
		s.selected[e.ID] = struct{}{}
	}
	if n := len(visible); n > 0 {
		s.anchor = visible[n-1].ID
		s.hasAnchor = true
	}
}

// Clear empties the selection and drops the anchor.
func (s *Selection) Clear() {
	s.selected = make(map[int64]struct{})
	s.hasAnchor = false
}

// IsSelected returns true if id is in the selection.
func (s *Selection) IsSelected(id int64) bool {
	_, ok := s.selected[id]
	return ok
}

// IDs returns the selected ids. Order is unspecified.
func (s *Selection) IDs() []int64 {
	ids := make([]int64, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of selected ids.
func (s *Selection) Len() int {
	return len(s.selected)
}

// Anchor returns the range-selection pivot, and false when none is set.
func (s *Selection) Anchor() (int64, bool) {
	return s.anchor, s.hasAnchor
}

func indexOf(entries []models.Entry, id int64) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}
