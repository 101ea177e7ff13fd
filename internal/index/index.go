// Package index maintains the N-gram → PostingList map plus the set of live
// DocIds, with intersection and top-k-by-id search.
package index

import (
	"sort"
	"sync"

	"github.com/libraz/mygramdb/internal/ngram"
	"github.com/libraz/mygramdb/internal/storage"
)

// PostingList is the ordered set of DocIds containing one N-gram. Ascending,
// no duplicates.
type PostingList struct {
	ids []storage.DocId
}

// Size returns the number of documents in the list.
func (p *PostingList) Size() int {
	if p == nil {
		return 0
	}
	return len(p.ids)
}

func (p *PostingList) insert(id storage.DocId) {
	i := sort.Search(len(p.ids), func(i int) bool { return p.ids[i] >= id })
	if i < len(p.ids) && p.ids[i] == id {
		return
	}
	p.ids = append(p.ids, 0)
	copy(p.ids[i+1:], p.ids[i:])
	p.ids[i] = id
}

func (p *PostingList) remove(id storage.DocId) {
	i := sort.Search(len(p.ids), func(i int) bool { return p.ids[i] >= id })
	if i < len(p.ids) && p.ids[i] == id {
		p.ids = append(p.ids[:i], p.ids[i+1:]...)
	}
}

// Index maps n-grams to posting lists for one table. Mutated only by the
// ApplyWorker; readers take the read lock.
type Index struct {
	mu      sync.RWMutex
	postings map[string]*PostingList
	textByID map[storage.DocId]string // last-indexed text, needed to remove on update/delete

	ngramSize      int
	kanjiNgramSize int
}

// New returns an empty Index configured with the table's n-gram widths.
func New(ngramSize, kanjiNgramSize int) *Index {
	return &Index{
		postings:       make(map[string]*PostingList),
		textByID:       make(map[storage.DocId]string),
		ngramSize:      ngramSize,
		kanjiNgramSize: kanjiNgramSize,
	}
}

func (idx *Index) ngramsFor(text string) []string {
	normalized := ngram.Normalize(text)
	if idx.kanjiNgramSize > 0 {
		return ngram.GenerateHybrid(normalized, idx.ngramSize, idx.kanjiNgramSize)
	}
	if idx.ngramSize == 0 {
		return ngram.GenerateHybrid(normalized, 2, 0)
	}
	return ngram.Generate(normalized, idx.ngramSize)
}

// GenerateQueryNgrams tokenises search text the same way documents are
// tokenised, so SearchHandler and Index agree on vocabulary.
func (idx *Index) GenerateQueryNgrams(text string) []string {
	return idx.ngramsFor(text)
}

// AddDocument indexes text under id. A non-empty text is required for the
// document to appear in any posting list, per the Index invariant.
func (idx *Index) AddDocument(id storage.DocId, text string) {
	grams := idx.ngramsFor(text)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.textByID[id] = text
	for _, g := range grams {
		pl, ok := idx.postings[g]
		if !ok {
			pl = &PostingList{}
			idx.postings[g] = pl
		}
		pl.insert(id)
	}
}

// RemoveDocument removes id from the posting lists of every n-gram in text.
func (idx *Index) RemoveDocument(id storage.DocId, text string) {
	grams := idx.ngramsFor(text)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	delete(idx.textByID, id)
	for _, g := range grams {
		if pl, ok := idx.postings[g]; ok {
			pl.remove(id)
			if pl.Size() == 0 {
				delete(idx.postings, g)
			}
		}
	}
}

// GetPostingList returns the posting list for one n-gram, or nil.
func (idx *Index) GetPostingList(g string) *PostingList {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.postings[g]
}

// SearchAnd intersects the posting lists of every n-gram, ascending.
func (idx *Index) SearchAnd(grams []string) []storage.DocId {
	if len(grams) == 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	lists := make([][]storage.DocId, 0, len(grams))
	for _, g := range grams {
		pl, ok := idx.postings[g]
		if !ok || pl.Size() == 0 {
			return nil
		}
		lists = append(lists, pl.ids)
	}

	sort.Slice(lists, func(i, j int) bool { return len(lists[i]) < len(lists[j]) })

	result := lists[0]
	for _, l := range lists[1:] {
		result = intersect(result, l)
		if len(result) == 0 {
			break
		}
	}
	return append([]storage.DocId(nil), result...)
}

// SearchAndTopK runs the full SearchAnd intersection, optionally reverses it
// into descending order, and keeps the first k results. Backs the SearchHandler's
// top-k optimisation for single-term, unfiltered, primary-key-ordered
// queries with a bounded OFFSET+LIMIT window.
func (idx *Index) SearchAndTopK(grams []string, k int, reverse bool) []storage.DocId {
	full := idx.SearchAnd(grams)
	if reverse {
		for i, j := 0, len(full)-1; i < j; i, j = i+1, j-1 {
			full[i], full[j] = full[j], full[i]
		}
	}
	if k >= 0 && k < len(full) {
		full = full[:k]
	}
	return full
}

// SearchNot removes any DocId present in the union of notGrams' posting
// lists from results.
func (idx *Index) SearchNot(results []storage.DocId, notGrams []string) []storage.DocId {
	if len(notGrams) == 0 {
		return results
	}

	idx.mu.RLock()
	excluded := make(map[storage.DocId]struct{})
	for _, g := range notGrams {
		if pl, ok := idx.postings[g]; ok {
			for _, id := range pl.ids {
				excluded[id] = struct{}{}
			}
		}
	}
	idx.mu.RUnlock()

	out := results[:0:0]
	for _, id := range results {
		if _, skip := excluded[id]; !skip {
			out = append(out, id)
		}
	}
	return out
}

// Clear empties the index, for TRUNCATE/DROP apply.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.postings = make(map[string]*PostingList)
	idx.textByID = make(map[storage.DocId]string)
}

// Snapshot returns every (ngram, sorted docids) pair, for dump serialization.
func (idx *Index) Snapshot() map[string][]storage.DocId {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make(map[string][]storage.DocId, len(idx.postings))
	for g, pl := range idx.postings {
		out[g] = append([]storage.DocId(nil), pl.ids...)
	}
	return out
}

// SnapshotText returns the per-document indexed text, for compact-mode dumps
// that store text instead of posting lists and rebuild on load.
func (idx *Index) SnapshotText() map[storage.DocId]string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make(map[storage.DocId]string, len(idx.textByID))
	for id, text := range idx.textByID {
		out[id] = text
	}
	return out
}

// Restore repopulates the index from a prior Snapshot without re-tokenising,
// for a non-compact dump load.
func (idx *Index) Restore(postings map[string][]storage.DocId) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.postings = make(map[string]*PostingList, len(postings))
	for g, ids := range postings {
		sorted := append([]storage.DocId(nil), ids...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		idx.postings[g] = &PostingList{ids: sorted}
	}
}

// RebuildFromDocStore re-tokenises every document's stored text (DocId→text map
// supplied by the caller) into fresh posting lists. Backs compact-mode dump
// restore, where the dump stores text instead of posting lists.
func (idx *Index) RebuildFromDocStore(textByID map[storage.DocId]string) {
	idx.mu.Lock()
	idx.postings = make(map[string]*PostingList)
	idx.textByID = make(map[storage.DocId]string)
	idx.mu.Unlock()

	for id, text := range textByID {
		idx.AddDocument(id, text)
	}
}

func intersect(a, b []storage.DocId) []storage.DocId {
	out := make([]storage.DocId, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
