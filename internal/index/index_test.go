package index

import (
	"reflect"
	"testing"

	"github.com/libraz/mygramdb/internal/storage"
)

func TestIndexSearchAnd(t *testing.T) {
	idx := New(2, 0)
	idx.AddDocument(1, "tokyo station")
	idx.AddDocument(2, "tokyo tower")
	idx.AddDocument(3, "osaka castle")

	tests := []struct {
		name string
		text string
		want []storage.DocId
	}{
		{name: "shared term matches both", text: "tokyo", want: []storage.DocId{1, 2}},
		{name: "unique term matches one", text: "station", want: []storage.DocId{1}},
		{name: "no match", text: "kyoto", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idx.SearchAnd(idx.GenerateQueryNgrams(tt.text))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SearchAnd(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestIndexRemoveDocument(t *testing.T) {
	idx := New(2, 0)
	idx.AddDocument(1, "tokyo station")
	idx.AddDocument(2, "tokyo tower")

	idx.RemoveDocument(1, "tokyo station")

	got := idx.SearchAnd(idx.GenerateQueryNgrams("tokyo"))
	want := []storage.DocId{2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SearchAnd() after RemoveDocument = %v, want %v", got, want)
	}

	if pl := idx.GetPostingList("st"); pl.Size() != 0 {
		t.Errorf("posting list for a removed-only n-gram still has entries: %d", pl.Size())
	}
}

func TestIndexSearchNot(t *testing.T) {
	idx := New(2, 0)
	idx.AddDocument(1, "tokyo station")
	idx.AddDocument(2, "tokyo tower")

	results := idx.SearchAnd(idx.GenerateQueryNgrams("tokyo"))
	got := idx.SearchNot(results, idx.GenerateQueryNgrams("tower"))

	want := []storage.DocId{1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SearchNot() = %v, want %v", got, want)
	}
}

func TestIndexSearchAndTopK(t *testing.T) {
	idx := New(2, 0)
	idx.AddDocument(1, "tokyo station")
	idx.AddDocument(2, "tokyo tower")
	idx.AddDocument(3, "tokyo bay")

	grams := idx.GenerateQueryNgrams("tokyo")

	asc := idx.SearchAndTopK(grams, 2, false)
	if want := []storage.DocId{1, 2}; !reflect.DeepEqual(asc, want) {
		t.Errorf("SearchAndTopK(asc) = %v, want %v", asc, want)
	}

	desc := idx.SearchAndTopK(grams, 2, true)
	if want := []storage.DocId{3, 2}; !reflect.DeepEqual(desc, want) {
		t.Errorf("SearchAndTopK(desc) = %v, want %v", desc, want)
	}
}

func TestIndexSnapshotRestoreRoundTrip(t *testing.T) {
	idx := New(2, 0)
	idx.AddDocument(1, "tokyo station")
	idx.AddDocument(2, "osaka castle")

	snap := idx.Snapshot()

	restored := New(2, 0)
	restored.Restore(snap)

	got := restored.SearchAnd(restored.GenerateQueryNgrams("tokyo"))
	want := []storage.DocId{1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SearchAnd() after Restore = %v, want %v", got, want)
	}
}

func TestIndexRebuildFromDocStore(t *testing.T) {
	idx := New(2, 0)
	idx.RebuildFromDocStore(map[storage.DocId]string{
		1: "tokyo station",
		2: "osaka castle",
	})

	got := idx.SearchAnd(idx.GenerateQueryNgrams("tokyo"))
	want := []storage.DocId{1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SearchAnd() after RebuildFromDocStore = %v, want %v", got, want)
	}

	text := idx.SnapshotText()
	if text[1] != "tokyo station" {
		t.Errorf("SnapshotText()[1] = %q, want %q", text[1], "tokyo station")
	}
}

func TestIndexKanjiHybridWidths(t *testing.T) {
	idx := New(3, 2)
	idx.AddDocument(1, "東京タワー")

	got := idx.SearchAnd(idx.GenerateQueryNgrams("東京"))
	want := []storage.DocId{1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SearchAnd() for kanji bigram = %v, want %v", got, want)
	}
}
