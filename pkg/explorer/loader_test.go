package explorer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/filedash/filedash/pkg/models"
)

// fakeFetcher is an in-memory Fetcher with per-folder failure injection and
// an optional gate to hold a fetch in flight.
type fakeFetcher struct {
	mu        sync.Mutex
	roots     []models.Entry
	children  map[int64][]models.Entry
	failRoot  error
	fail      map[int64]error
	calls     map[int64]int
	rootCalls int
	requested []int64

	gate chan struct{} // if set, FetchChildren blocks until closed
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		children: make(map[int64][]models.Entry),
		fail:     make(map[int64]error),
		calls:    make(map[int64]int),
	}
}

func (f *fakeFetcher) FetchRoot(ctx context.Context, userID int64) ([]models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rootCalls++
	if f.failRoot != nil {
		return nil, f.failRoot
	}
	return f.roots, nil
}

func (f *fakeFetcher) FetchChildren(ctx context.Context, userID, folderID int64) ([]models.Entry, error) {
	f.mu.Lock()
	f.calls[folderID]++
	gate := f.gate
	err := f.fail[folderID]
	entries := f.children[folderID]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (f *fakeFetcher) RequestFile(ctx context.Context, userID, fileID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, fileID)
	return nil
}

func (f *fakeFetcher) callCount(folderID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[folderID]
}

func TestLoadRootMarksRootEntriesLoaded(t *testing.T) {
	f := newFakeFetcher()
	f.roots = []models.Entry{
		folder(1, 0, "Docs"),
		folder(2, 0, "Pics"),
		file(3, 1, "a.txt", 100), // first-level child in the same payload
	}

	l := NewLoader(f, 7)
	if err := l.LoadRoot(context.Background()); err != nil {
		t.Fatalf("LoadRoot: %v", err)
	}

	if !l.IsLoaded(1) || !l.IsLoaded(2) {
		t.Error("root-level folders should be pre-marked loaded")
	}
	if l.IsLoaded(3) {
		t.Error("non-root entry should not be marked loaded")
	}
	if l.StoreLen() != 3 {
		t.Errorf("store size = %d, want 3", l.StoreLen())
	}

	// Navigating into a pre-marked root must not fetch.
	l.LoadFolder(context.Background(), 1)
	if got := f.callCount(1); got != 0 {
		t.Errorf("fetch count for pre-loaded folder = %d, want 0", got)
	}
}

func TestLoadRootFailureSurfaces(t *testing.T) {
	f := newFakeFetcher()
	f.failRoot = errors.New("user not found")

	l := NewLoader(f, 7)
	if err := l.LoadRoot(context.Background()); err == nil {
		t.Fatal("LoadRoot should return the fetch error")
	}
	if l.StoreLen() != 0 {
		t.Errorf("store size after failed root load = %d, want 0", l.StoreLen())
	}
}

func TestLoadFolderAtMostOnceWhileInFlight(t *testing.T) {
	f := newFakeFetcher()
	f.children[1] = []models.Entry{file(3, 1, "a.txt", 100)}
	f.gate = make(chan struct{})

	l := NewLoader(f, 7)
	l.mu.Lock()
	l.store.Insert(folder(1, 0, "Docs"))
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.LoadFolder(context.Background(), 1)
		close(done)
	}()

	// Wait for the first fetch to be issued and held in flight.
	deadline := time.After(2 * time.Second)
	for f.callCount(1) == 0 {
		select {
		case <-deadline:
			t.Fatal("first fetch never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// Repeated UI events while the fetch is pending: all no-ops.
	for i := 0; i < 5; i++ {
		l.LoadFolder(context.Background(), 1)
	}

	close(f.gate)
	<-done

	if got := f.callCount(1); got != 1 {
		t.Fatalf("fetch count = %d, want 1", got)
	}
	if got := len(l.Children(1)); got != 1 {
		t.Fatalf("children appended %d times' worth, want exactly one append", got)
	}
}

func TestLoadFolderFailureUnmarksAndAllowsRetry(t *testing.T) {
	f := newFakeFetcher()
	f.fail[1] = errors.New("connection refused")
	f.children[1] = []models.Entry{file(3, 1, "a.txt", 100)}

	l := NewLoader(f, 7)
	l.mu.Lock()
	l.store.Insert(folder(1, 0, "Docs"))
	l.mu.Unlock()

	l.LoadFolder(context.Background(), 1)
	if l.IsLoaded(1) {
		t.Fatal("folder should be unmarked after a failed fetch")
	}
	if got := len(l.Children(1)); got != 0 {
		t.Fatalf("children after failed fetch = %d, want 0 (folder appears empty)", got)
	}

	// Server recovers: the next navigation issues a new fetch.
	f.mu.Lock()
	delete(f.fail, 1)
	f.mu.Unlock()

	l.LoadFolder(context.Background(), 1)
	if got := f.callCount(1); got != 2 {
		t.Fatalf("fetch count after retry = %d, want 2", got)
	}
	if !l.IsLoaded(1) {
		t.Fatal("folder should be marked loaded after successful retry")
	}
}

func TestLoadFolderNeverRefetchesAfterSuccess(t *testing.T) {
	f := newFakeFetcher()
	f.children[1] = []models.Entry{
		file(3, 1, "a.txt", 100),
		file(4, 1, "b.txt", 200),
	}

	l := NewLoader(f, 7)
	l.mu.Lock()
	l.store.Insert(folder(1, 0, "Docs"))
	l.mu.Unlock()

	for i := 0; i < 4; i++ {
		l.LoadFolder(context.Background(), 1)
	}

	if got := f.callCount(1); got != 1 {
		t.Fatalf("fetch count = %d, want 1", got)
	}
	if got := len(l.Children(1)); got != 2 {
		t.Fatalf("children = %d, want 2 (no duplicate appends)", got)
	}
}

func TestLoadFolderEmptyResult(t *testing.T) {
	f := newFakeFetcher()

	l := NewLoader(f, 7)
	l.mu.Lock()
	l.store.Insert(folder(1, 0, "Docs"))
	l.mu.Unlock()

	l.LoadFolder(context.Background(), 1)
	if !l.IsLoaded(1) {
		t.Fatal("empty folder should still be marked loaded")
	}
	if got := len(l.Children(1)); got != 0 {
		t.Fatalf("children = %d, want 0", got)
	}
}

func TestLateCompletionsForDistinctFoldersAreIndependent(t *testing.T) {
	f := newFakeFetcher()
	f.children[1] = []models.Entry{file(3, 1, "a.txt", 1)}
	f.children[2] = []models.Entry{file(4, 2, "b.jpg", 1)}

	l := NewLoader(f, 7)
	l.mu.Lock()
	l.store.InsertMany([]models.Entry{folder(1, 0, "Docs"), folder(2, 0, "Pics")})
	l.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range []int64{1, 2, 1, 2} {
		wg.Add(1)
		go func(folderID int64) {
			defer wg.Done()
			l.LoadFolder(context.Background(), folderID)
		}(id)
	}
	wg.Wait()

	if f.callCount(1) != 1 || f.callCount(2) != 1 {
		t.Fatalf("fetch counts = %d/%d, want 1/1", f.callCount(1), f.callCount(2))
	}
	if len(l.Children(1)) != 1 || len(l.Children(2)) != 1 {
		t.Fatalf("children = %d/%d, want 1/1", len(l.Children(1)), len(l.Children(2)))
	}
}
