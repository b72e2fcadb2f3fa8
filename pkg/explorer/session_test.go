package explorer

import (
	"context"
	"errors"
	"testing"

	"github.com/filedash/filedash/pkg/models"
)

func sessionFetcher() *fakeFetcher {
	f := newFakeFetcher()
	f.roots = []models.Entry{
		folder(1, 0, "Docs"),
		folder(2, 0, "Pics"),
	}
	return f
}

// The end-to-end scenario: two root folders, navigating into Docs fetches
// its contents exactly once, and the fetched file becomes visible.
func TestSessionScenario(t *testing.T) {
	ctx := context.Background()
	f := sessionFetcher()
	f.children[1] = []models.Entry{file(3, 1, "a.txt", 100)}

	s := NewSession(f, 7)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Roots are pre-marked loaded, so entering Docs must not fetch.
	s.NavigateTo(ctx, 1)
	if got := f.callCount(1); got != 0 {
		t.Fatalf("fetch count for pre-loaded root = %d, want 0", got)
	}

	// Docs' children arrived with the root listing in real payloads; here
	// they did not, so unmark to exercise the on-demand load.
	s.Loader().mu.Lock()
	s.Loader().loads.Unmark(1)
	s.Loader().mu.Unlock()

	s.NavigateTo(ctx, 1)
	s.NavigateTo(ctx, 1)
	if got := f.callCount(1); got != 1 {
		t.Fatalf("fetch count = %d, want 1", got)
	}

	contents := s.Contents()
	if len(contents) != 1 || contents[0].ID != 3 || contents[0].Name != "a.txt" {
		t.Fatalf("contents = %+v, want [a.txt]", contents)
	}
	if !s.Loader().HasFile(3) {
		t.Error("HasFile(3) = false after load")
	}
}

func TestSessionStartPositionsOnFirstRootFolder(t *testing.T) {
	ctx := context.Background()
	s := NewSession(sessionFetcher(), 7)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	path := s.Path()
	if len(path) != 1 || path[0].ID != 1 {
		t.Fatalf("initial path = %v, want [Docs]", pathIDs(path))
	}
	if ids := s.Selected(); len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("initial selection = %v, want [1]", ids)
	}
}

func TestSessionStartFailure(t *testing.T) {
	f := newFakeFetcher()
	f.failRoot = errors.New("boom")

	s := NewSession(f, 7)
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("Start should surface the initial load failure")
	}
}

func TestSessionNavigateToIgnoresFilesAndUnknownIDs(t *testing.T) {
	ctx := context.Background()
	f := sessionFetcher()
	f.roots = append(f.roots, file(9, 1, "readme.txt", 5))

	s := NewSession(f, 7)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	before := s.Path()
	s.NavigateTo(ctx, 9)  // file
	s.NavigateTo(ctx, 77) // unknown
	after := s.Path()
	if len(after) != len(before) || after[0].ID != before[0].ID {
		t.Fatalf("path changed: %v -> %v", pathIDs(before), pathIDs(after))
	}
}

func TestSessionNavigationResetsSelection(t *testing.T) {
	ctx := context.Background()
	f := sessionFetcher()
	f.children[2] = []models.Entry{
		file(4, 2, "x.jpg", 1),
		file(5, 2, "y.jpg", 1),
	}

	s := NewSession(f, 7)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s.Loader().mu.Lock()
	s.Loader().loads.Unmark(2)
	s.Loader().mu.Unlock()
	s.NavigateTo(ctx, 2)
	s.Select(4, false, false)
	s.Select(5, false, true)
	if len(s.Selected()) != 2 {
		t.Fatalf("selection = %v, want two ids", s.Selected())
	}

	s.NavigateTo(ctx, 1)
	if ids := s.Selected(); len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("selection after navigation = %v, want [1]", ids)
	}
}

func TestSessionNavigateUp(t *testing.T) {
	ctx := context.Background()
	f := sessionFetcher()
	f.children[1] = []models.Entry{folder(6, 1, "projects")}
	f.children[6] = nil

	s := NewSession(f, 7)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// At a root, up is a no-op.
	s.NavigateUp(ctx)
	if path := s.Path(); len(path) != 1 || path[0].ID != 1 {
		t.Fatalf("path after up at root = %v", pathIDs(path))
	}

	s.Loader().mu.Lock()
	s.Loader().loads.Unmark(1)
	s.Loader().mu.Unlock()
	s.NavigateTo(ctx, 1)
	s.NavigateTo(ctx, 6)
	if path := pathIDs(s.Path()); len(path) != 2 || path[0] != 1 || path[1] != 6 {
		t.Fatalf("path = %v, want [1 6]", path)
	}

	s.NavigateUp(ctx)
	if path := pathIDs(s.Path()); len(path) != 1 || path[0] != 1 {
		t.Fatalf("path after up = %v, want [1]", path)
	}
	if ids := s.Selected(); len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("selection after up = %v, want [1]", ids)
	}
}

func TestSessionMoveCursorClampsAtBounds(t *testing.T) {
	ctx := context.Background()
	f := sessionFetcher()
	f.children[2] = []models.Entry{
		file(4, 2, "x.jpg", 1),
		file(5, 2, "y.jpg", 1),
		file(6, 2, "z.jpg", 1),
	}

	s := NewSession(f, 7)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Loader().mu.Lock()
	s.Loader().loads.Unmark(2)
	s.Loader().mu.Unlock()
	s.NavigateTo(ctx, 2)

	// Anchor (the folder itself) is not in the visible list: Down lands on
	// the first entry.
	s.MoveCursor(1, false, false)
	if ids := s.Selected(); len(ids) != 1 || ids[0] != 4 {
		t.Fatalf("selection after first Down = %v, want [4]", ids)
	}

	s.MoveCursor(1, false, false)
	s.MoveCursor(1, false, false)
	s.MoveCursor(1, false, false) // clamped at the last entry
	if ids := s.Selected(); len(ids) != 1 || ids[0] != 6 {
		t.Fatalf("selection after Downs = %v, want [6]", ids)
	}

	for i := 0; i < 5; i++ {
		s.MoveCursor(-1, false, false) // clamped at the first entry
	}
	if ids := s.Selected(); len(ids) != 1 || ids[0] != 4 {
		t.Fatalf("selection after Ups = %v, want [4]", ids)
	}
}

func TestSessionMoveCursorWithRangeModifier(t *testing.T) {
	ctx := context.Background()
	f := sessionFetcher()
	f.children[2] = []models.Entry{
		file(4, 2, "x.jpg", 1),
		file(5, 2, "y.jpg", 1),
		file(6, 2, "z.jpg", 1),
	}

	s := NewSession(f, 7)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Loader().mu.Lock()
	s.Loader().loads.Unmark(2)
	s.Loader().mu.Unlock()
	s.NavigateTo(ctx, 2)

	s.Select(4, false, false)
	s.MoveCursor(1, true, false)

	want := map[int64]bool{4: true, 5: true}
	ids := s.Selected()
	if len(ids) != 2 {
		t.Fatalf("selection = %v, want [4 5]", ids)
	}
	for _, id := range ids {
		if !want[id] {
			t.Fatalf("selection = %v, want [4 5]", ids)
		}
	}

	// The anchor follows the cursor, so the next ranged step pivots on 5.
	s.MoveCursor(1, true, false)
	want = map[int64]bool{5: true, 6: true}
	ids = s.Selected()
	if len(ids) != 2 {
		t.Fatalf("selection = %v, want [5 6]", ids)
	}
	for _, id := range ids {
		if !want[id] {
			t.Fatalf("selection = %v, want [5 6]", ids)
		}
	}
}

func TestSessionSelectAllAndClear(t *testing.T) {
	ctx := context.Background()
	f := sessionFetcher()
	f.children[2] = []models.Entry{
		file(4, 2, "x.jpg", 1),
		file(5, 2, "y.jpg", 1),
		file(6, 2, "z.jpg", 1),
	}

	s := NewSession(f, 7)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Loader().mu.Lock()
	s.Loader().loads.Unmark(2)
	s.Loader().mu.Unlock()
	s.NavigateTo(ctx, 2)

	s.SelectAll()
	if ids := s.Selected(); len(ids) != 3 {
		t.Fatalf("selection after select-all = %v, want three ids", ids)
	}
	for _, id := range []int64{4, 5, 6} {
		if !s.IsSelected(id) {
			t.Errorf("IsSelected(%d) = false after select-all", id)
		}
	}

	s.ClearSelection()
	if ids := s.Selected(); len(ids) != 0 {
		t.Fatalf("selection after clear = %v, want empty", ids)
	}

	// The cleared anchor makes the next cursor move land on the first entry.
	s.MoveCursor(1, false, false)
	if ids := s.Selected(); len(ids) != 1 || ids[0] != 4 {
		t.Fatalf("selection after cursor move = %v, want [4]", ids)
	}
}

func TestSessionActivateOpensFolder(t *testing.T) {
	ctx := context.Background()
	f := sessionFetcher()
	f.children[1] = []models.Entry{
		folder(6, 1, "projects"),
		file(7, 1, "notes.txt", 10),
	}

	s := NewSession(f, 7)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Loader().mu.Lock()
	s.Loader().loads.Unmark(1)
	s.Loader().mu.Unlock()
	s.NavigateTo(ctx, 1)

	// Enter on a file: nothing happens.
	s.Select(7, false, false)
	s.Activate(ctx)
	if path := pathIDs(s.Path()); len(path) != 1 {
		t.Fatalf("path after activating a file = %v", path)
	}

	s.Select(6, false, false)
	s.Activate(ctx)
	if path := pathIDs(s.Path()); len(path) != 2 || path[1] != 6 {
		t.Fatalf("path after activating a folder = %v, want [1 6]", path)
	}
}

func TestSessionRequestDownloadGuards(t *testing.T) {
	ctx := context.Background()
	f := sessionFetcher()
	f.children[1] = []models.Entry{file(3, 1, "a.txt", 100)}

	s := NewSession(f, 7)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Loader().mu.Lock()
	s.Loader().loads.Unmark(1)
	s.Loader().mu.Unlock()
	s.NavigateTo(ctx, 1)

	// Folder ids are rejected before any remote call.
	if err := s.RequestDownload(ctx, 1); !errors.Is(err, ErrNotAFile) {
		t.Fatalf("RequestDownload(folder) = %v, want ErrNotAFile", err)
	}
	if err := s.RequestDownload(ctx, 99); !errors.Is(err, ErrNotAFile) {
		t.Fatalf("RequestDownload(unknown) = %v, want ErrNotAFile", err)
	}
	if len(f.requested) != 0 {
		t.Fatalf("remote requests fired for rejected ids: %v", f.requested)
	}

	if err := s.RequestDownload(ctx, 3); err != nil {
		t.Fatalf("RequestDownload(file) = %v", err)
	}
	if len(f.requested) != 1 || f.requested[0] != 3 {
		t.Fatalf("requested = %v, want [3]", f.requested)
	}
	// The store is never mutated by a download request.
	if got := s.Loader().StoreLen(); got != 3 {
		t.Errorf("store size after request = %d, want 3", got)
	}
}
