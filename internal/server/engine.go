package server

import (
	"sort"
	"time"

	"github.com/libraz/mygramdb/internal/cache"
	"github.com/libraz/mygramdb/internal/catalog"
	"github.com/libraz/mygramdb/internal/queryspec"
	"github.com/libraz/mygramdb/internal/storage"
)

// execResult is the full, pre-pagination result set plus the timing that
// decides cache admission.
type execResult struct {
	ids         []storage.DocId
	queryCostMs float64
	fromCache   bool
}

// execute runs SearchHandler/CountHandler's shared pipeline: n-gram lookup,
// ascending-by-selectivity term ordering (delegated to Index.SearchAnd),
// NOT subtraction, filter application, and the top-k shortcut for the
// common single-term primary-key-ordered page request. Consults the cache
// first and writes the full result back with its cost; a truncated top-k
// result is not cached.
func execute(tc *catalog.TableContext, qc *cache.QueryCache, q queryspec.Query, key cache.Key) execResult {
	if qc != nil && qc.IsEnabled() {
		if res, miss, err := qc.Lookup(key); err == nil && miss == cache.MissNone {
			return execResult{ids: res.Ids, queryCostMs: res.QueryCostMs, fromCache: true}
		}
	}

	start := time.Now()

	terms := append([]string{q.SearchText}, q.AndTerms...)
	var allGrams []string
	perTermGrams := make([][]string, 0, len(terms))
	for _, t := range terms {
		grams := tc.Index.GenerateQueryNgrams(t)
		perTermGrams = append(perTermGrams, grams)
		allGrams = append(allGrams, grams...)
	}

	singleTerm := len(terms) == 1
	wantTopK := q.Type == queryspec.Search &&
		singleTerm &&
		len(q.NotTerms) == 0 &&
		len(q.Filters) == 0 &&
		q.Offset <= 10000 &&
		(q.OrderBy == nil || q.OrderBy.IsPrimaryKey())

	var ids []storage.DocId
	usedTopK := false
	if wantTopK && coversLessThanHalf(tc, allGrams, q.Offset+effectiveLimit(q)) {
		usedTopK = true
		reverse := q.OrderBy == nil || q.OrderBy.Order == queryspec.Desc
		ids = tc.Index.SearchAndTopK(allGrams, q.Offset+effectiveLimit(q), reverse)
	} else {
		ids = tc.Index.SearchAnd(allGrams)
	}

	for _, notTerm := range q.NotTerms {
		notGrams := tc.Index.GenerateQueryNgrams(notTerm)
		ids = tc.Index.SearchNot(ids, notGrams)
	}

	if len(q.Filters) > 0 {
		ids = applyFilters(tc, ids, q.Filters)
	}

	costMs := float64(time.Since(start)) / float64(time.Millisecond)

	if qc != nil && qc.IsEnabled() && !usedTopK {
		_ = qc.Insert(key, q.Table, ids, costMs)
	}

	return execResult{ids: ids, queryCostMs: costMs}
}

func effectiveLimit(q queryspec.Query) int {
	if q.LimitExplicit {
		return q.Limit
	}
	return 20
}

// coversLessThanHalf estimates selectivity from the smallest posting list
// among the query's n-grams: the top-k shortcut only pays off when the
// requested window covers under half the estimated results, without running
// the full intersection first to find out.
func coversLessThanHalf(tc *catalog.TableContext, grams []string, window int) bool {
	smallest := -1
	for _, g := range grams {
		pl := tc.Index.GetPostingList(g)
		size := pl.Size()
		if smallest == -1 || size < smallest {
			smallest = size
		}
	}
	if smallest <= 0 {
		return false
	}
	return window*2 < smallest
}

func applyFilters(tc *catalog.TableContext, ids []storage.DocId, filters []queryspec.FilterCondition) []storage.DocId {
	out := ids[:0:0]
	for _, id := range ids {
		keep := true
		for _, f := range filters {
			v, ok := tc.Docs.GetFilterValue(id, f.Column)
			if !ok || !matchFilter(v, f) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, id)
		}
	}
	return out
}

func matchFilter(v storage.FilterValue, f queryspec.FilterCondition) bool {
	cmp := compareFilterValue(v, f.Value)
	switch f.Op {
	case queryspec.OpEQ:
		return cmp == 0
	case queryspec.OpNE:
		return cmp != 0
	case queryspec.OpGT:
		return cmp > 0
	case queryspec.OpGTE:
		return cmp >= 0
	case queryspec.OpLT:
		return cmp < 0
	case queryspec.OpLTE:
		return cmp <= 0
	default:
		return false
	}
}

// compareFilterValue returns -1/0/1 comparing v against the literal
// representation of a filter's right-hand side, dispatched on v.Kind so
// comparisons never cross types. It returns -2 when the literal does not
// parse as v's kind, when a Bool differs, and for a Null value.
func compareFilterValue(v storage.FilterValue, lit string) int {
	switch v.Kind {
	case storage.FilterString:
		return stringsCompare(v.Str, lit)
	case storage.FilterInt, storage.FilterTimeOfDay:
		n, ok := parseInt(lit)
		if !ok {
			return -2
		}
		return int64Compare(v.Int, n)
	case storage.FilterUint, storage.FilterEpoch:
		n, ok := parseUint(lit)
		if !ok {
			return -2
		}
		return uint64Compare(v.Uint, n)
	case storage.FilterDouble:
		n, ok := parseFloat(lit)
		if !ok {
			return -2
		}
		return float64Compare(v.Double, n)
	case storage.FilterBool:
		b := lit == "true" || lit == "1"
		if v.Bool == b {
			return 0
		}
		return -2
	default:
		return -2
	}
}

// sortAndPaginate orders the full result set by (column, direction) —
// primary-key descending when unspecified, approximated by DocId since DocId
// assignment order tracks insertion order — then slices the requested
// window.
func sortAndPaginate(tc *catalog.TableContext, ids []storage.DocId, q queryspec.Query) []storage.DocId {
	sorted := append([]storage.DocId(nil), ids...)

	desc := q.OrderBy == nil || q.OrderBy.Order == queryspec.Desc
	if q.OrderBy == nil || q.OrderBy.IsPrimaryKey() {
		sort.Slice(sorted, func(i, j int) bool {
			if desc {
				return sorted[i] > sorted[j]
			}
			return sorted[i] < sorted[j]
		})
	} else {
		col := q.OrderBy.Column
		sort.Slice(sorted, func(i, j int) bool {
			vi, _ := tc.Docs.GetFilterValue(sorted[i], col)
			vj, _ := tc.Docs.GetFilterValue(sorted[j], col)
			c := compareFilterValues(vi, vj)
			if desc {
				return c > 0
			}
			return c < 0
		})
	}

	offset := q.Offset
	limit := effectiveLimit(q)
	if offset >= len(sorted) {
		return nil
	}
	end := offset + limit
	if end > len(sorted) {
		end = len(sorted)
	}
	return sorted[offset:end]
}

func compareFilterValues(a, b storage.FilterValue) int {
	switch a.Kind {
	case storage.FilterString:
		return stringsCompare(a.Str, b.Str)
	case storage.FilterInt, storage.FilterTimeOfDay:
		return int64Compare(a.Int, b.Int)
	case storage.FilterUint, storage.FilterEpoch:
		return uint64Compare(a.Uint, b.Uint)
	case storage.FilterDouble:
		return float64Compare(a.Double, b.Double)
	default:
		return 0
	}
}

func stringsCompare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func int64Compare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func uint64Compare(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func float64Compare(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
