package cache

import (
	"sort"
	"strconv"
	"strings"

	"github.com/libraz/mygramdb/internal/ngram"
	"github.com/libraz/mygramdb/internal/queryspec"
)

// Key is a content hash of a canonicalised query fingerprint; 128 bits wide
// (two FNV-1a 64-bit passes over disjoint seeds give 128 bits without
// adding a hashing dependency).
type Key [16]byte

// Fingerprint renders the canonical string for a query: command, table,
// normalised primary text, AND terms in original order, NOT terms in
// original order, FILTER clauses sorted by column name, explicit-or-defaulted
// SORT, explicit-or-defaulted LIMIT (defaulted limits canonicalise to the
// same token regardless of the configured default, so pagination-agnostic
// lookup works across requests that didn't specify one), OFFSET.
func Fingerprint(q queryspec.Query, primaryKeyColumn string) string {
	var b strings.Builder

	switch q.Type {
	case queryspec.Search:
		b.WriteString("SEARCH")
	case queryspec.Count:
		b.WriteString("COUNT")
	}
	b.WriteByte(' ')
	b.WriteString(q.Table)
	b.WriteByte(' ')
	b.WriteString(ngram.Normalize(q.SearchText))

	for _, t := range q.AndTerms {
		b.WriteString(" AND ")
		b.WriteString(ngram.Normalize(t))
	}
	for _, t := range q.NotTerms {
		b.WriteString(" NOT ")
		b.WriteString(ngram.Normalize(t))
	}

	filters := append([]queryspec.FilterCondition(nil), q.Filters...)
	sort.Slice(filters, func(i, j int) bool { return filters[i].Column < filters[j].Column })
	for _, f := range filters {
		b.WriteString(" FILTER ")
		b.WriteString(f.Column)
		b.WriteByte(' ')
		b.WriteString(f.Op.String())
		b.WriteByte(' ')
		b.WriteString(f.Value)
	}

	col := primaryKeyColumn
	order := "DESC"
	if q.OrderBy != nil {
		if !q.OrderBy.IsPrimaryKey() {
			col = q.OrderBy.Column
		}
		if q.OrderBy.Order == queryspec.Asc {
			order = "ASC"
		}
	}
	b.WriteString(" SORT ")
	b.WriteString(col)
	b.WriteByte(' ')
	b.WriteString(order)

	// Defaulted limit/offset canonicalise to the same token as any other
	// defaulted lookup, independent of the configured default value, so a
	// cache entry inserted under one default_limit is still a hit when the
	// handler later paginates with a different window over the same
	// pre-pagination result set.
	b.WriteString(" LIMIT ")
	if q.LimitExplicit {
		b.WriteString(strconv.Itoa(q.Limit))
	} else {
		b.WriteString("*")
	}
	b.WriteString(" OFFSET ")
	if q.OffsetExplicit {
		b.WriteString(strconv.Itoa(q.Offset))
	} else {
		b.WriteString("*")
	}

	return b.String()
}

// HashKey content-hashes a fingerprint into a Key.
func HashKey(fingerprint string) Key {
	var k Key
	h1 := fnv1a64(fingerprint, 0xcbf29ce484222325)
	h2 := fnv1a64(fingerprint, 0x100000001b3^0x9e3779b97f4a7c15)
	putUint64(k[0:8], h1)
	putUint64(k[8:16], h2)
	return k
}

func fnv1a64(s string, seed uint64) uint64 {
	h := seed
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 0x100000001b3
	}
	return h
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}
