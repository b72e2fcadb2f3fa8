package explorer

import (
	"testing"

	"github.com/filedash/filedash/pkg/models"
)

func folder(id, parent int64, name string) models.Entry {
	return models.Entry{ID: id, ParentID: parent, Name: name, IsFolder: true}
}

func file(id, parent int64, name string, size int64) models.Entry {
	return models.Entry{ID: id, ParentID: parent, Name: name, Size: size}
}

func TestStoreEmptyQueries(t *testing.T) {
	s := NewStore(nil)

	if got := s.FindByID(1); got != nil {
		t.Errorf("FindByID on empty store = %v, want nil", got)
	}
	if got := s.FindByParent(0); len(got) != 0 {
		t.Errorf("FindByParent on empty store returned %d entries", len(got))
	}
	if s.HasFileWithID(1) {
		t.Error("HasFileWithID on empty store returned true")
	}
	if s.Len() != 0 {
		t.Errorf("Len on empty store = %d", s.Len())
	}
}

func TestStoreInsertManyGrowsWithoutDedup(t *testing.T) {
	s := NewStore([]models.Entry{folder(1, 0, "Docs")})

	children := []models.Entry{
		file(3, 1, "a.txt", 100),
		file(4, 1, "b.txt", 200),
	}
	s.InsertMany(children)
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}

	// The store trusts its callers: appending again duplicates.
	s.InsertMany(children)
	if s.Len() != 5 {
		t.Fatalf("Len after duplicate append = %d, want 5", s.Len())
	}
	if got := s.FindByParent(1); len(got) != 4 {
		t.Fatalf("FindByParent(1) after duplicate append = %d entries, want 4", len(got))
	}
}

func TestStoreFindByParentPreservesInsertionOrder(t *testing.T) {
	s := NewStore(nil)
	s.InsertMany([]models.Entry{
		folder(1, 0, "Docs"),
		file(5, 1, "zebra.txt", 1),
		file(3, 1, "apple.txt", 1),
		folder(4, 1, "nested"),
		file(9, 2, "other-parent.txt", 1),
	})

	got := s.FindByParent(1)
	wantIDs := []int64{5, 3, 4}
	if len(got) != len(wantIDs) {
		t.Fatalf("FindByParent(1) = %d entries, want %d", len(got), len(wantIDs))
	}
	for i, want := range wantIDs {
		if got[i].ID != want {
			t.Errorf("FindByParent(1)[%d].ID = %d, want %d", i, got[i].ID, want)
		}
	}
}

func TestStoreFindByID(t *testing.T) {
	s := NewStore([]models.Entry{
		folder(1, 0, "Docs"),
		file(3, 1, "a.txt", 100),
	})

	e := s.FindByID(3)
	if e == nil {
		t.Fatal("FindByID(3) = nil")
	}
	if e.Name != "a.txt" || e.Size != 100 {
		t.Errorf("FindByID(3) = %+v", e)
	}
	if s.FindByID(99) != nil {
		t.Error("FindByID(99) should be nil")
	}
}

func TestStoreHasFileWithID(t *testing.T) {
	s := NewStore([]models.Entry{
		folder(1, 0, "Docs"),
		file(3, 1, "a.txt", 100),
	})

	tests := []struct {
		id   int64
		want bool
	}{
		{3, true},   // file
		{1, false},  // folder with that id exists, still false
		{99, false}, // absent
	}
	for _, tt := range tests {
		if got := s.HasFileWithID(tt.id); got != tt.want {
			t.Errorf("HasFileWithID(%d) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestStoreFoldersAndFiles(t *testing.T) {
	s := NewStore([]models.Entry{
		folder(1, 0, "Docs"),
		file(3, 1, "a.txt", 100),
		folder(2, 0, "Pics"),
	})

	if got := s.Folders(); len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Errorf("Folders() = %+v", got)
	}
	if got := s.Files(); len(got) != 1 || got[0].ID != 3 {
		t.Errorf("Files() = %+v", got)
	}
}
