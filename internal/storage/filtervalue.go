// Package storage holds the document model mirrored from upstream rows: the
// tagged FilterValue union, the Document and DocStore types, and DocId
// assignment.
package storage

import "fmt"

// FilterKind tags the concrete type carried by a FilterValue.
type FilterKind int

const (
	FilterNull FilterKind = iota
	FilterBool
	FilterInt
	FilterUint
	FilterDouble
	FilterString
	FilterTimeOfDay // seconds since midnight, signed
	FilterEpoch     // epoch-seconds, unsigned
)

// FilterValue is a tagged union over the column types the index filters on.
// Comparability is type-preserving: comparing across Kind always yields
// false.
type FilterValue struct {
	Kind   FilterKind
	Bool   bool
	Int    int64
	Uint   uint64
	Double float64
	Str    string
}

// Null reports whether the value is the unset/NULL variant.
func (v FilterValue) Null() bool { return v.Kind == FilterNull }

func (v FilterValue) String() string {
	switch v.Kind {
	case FilterNull:
		return "<null>"
	case FilterBool:
		return fmt.Sprintf("%t", v.Bool)
	case FilterInt:
		return fmt.Sprintf("%d", v.Int)
	case FilterUint, FilterEpoch:
		return fmt.Sprintf("%d", v.Uint)
	case FilterDouble:
		return fmt.Sprintf("%g", v.Double)
	case FilterString:
		return v.Str
	case FilterTimeOfDay:
		return fmt.Sprintf("%ds", v.Int)
	default:
		return "<unknown>"
	}
}
