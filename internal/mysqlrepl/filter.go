package mysqlrepl

import (
	"math"
	"strconv"

	"github.com/libraz/mygramdb/internal/config"
	"github.com/libraz/mygramdb/internal/logging"
	"github.com/libraz/mygramdb/internal/storage"
	"go.uber.org/zap"
)

// maxFilterValueSize caps a configured required-filter literal: a malicious
// or malformed binlog value could otherwise claim multi-GB columns.
const maxFilterValueSize = 1024 * 1024

// FilterEvaluator runs the required-predicate gate before a row is accepted
// into the index, and extracts the optional filter columns on accepted rows.
type FilterEvaluator struct {
	Log *zap.Logger
}

// EvaluateRequired returns true iff every required predicate in tc is
// satisfied by row's extracted column values. A missing column or a
// malformed/oversized literal rejects the row (fail-closed).
func (f FilterEvaluator) EvaluateRequired(row map[string]string, tc config.TableConfig) bool {
	if len(tc.RequiredFilters) == 0 {
		return true
	}

	for _, rf := range tc.RequiredFilters {
		raw, ok := row[rf.Name]
		if !ok {
			logging.Event("mysql_binlog_warning").
				Field("type", "required_filter_column_not_found").
				Field("column_name", rf.Name).
				Warn(f.Log)
			return false
		}
		if !f.compare(raw, rf) {
			return false
		}
	}
	return true
}

func (f FilterEvaluator) compare(raw string, filter config.RequiredFilterConfig) bool {
	if len(filter.Value) > maxFilterValueSize {
		logging.Event("mysql_binlog_warning").
			Field("type", "filter_value_too_large").
			Field("value_size", len(filter.Value)).
			Field("max_size", maxFilterValueSize).
			Field("filter_name", filter.Name).
			Warn(f.Log)
		return false
	}

	isNull := raw == ""
	switch filter.Op {
	case "IS NULL":
		return isNull
	case "IS NOT NULL":
		return !isNull
	}
	if isNull {
		return false
	}

	switch filter.Type {
	case "double", "float":
		return f.compareFloat(raw, filter)
	case "string", "varchar", "text":
		return f.compareString(raw, filter)
	case "timestamp", "datetime", "date":
		return f.compareUint(raw, filter)
	default:
		return f.compareInt(raw, filter)
	}
}

func (f FilterEvaluator) compareInt(raw string, filter config.RequiredFilterConfig) bool {
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		f.warnParse("invalid_integer_filter", raw, filter.Name)
		return false
	}
	target, err := strconv.ParseInt(filter.Value, 10, 64)
	if err != nil {
		f.warnParse("invalid_integer_filter", filter.Value, filter.Name)
		return false
	}
	return applyOp(filter.Op, func(op string) bool {
		switch op {
		case "=":
			return val == target
		case "!=":
			return val != target
		case "<":
			return val < target
		case ">":
			return val > target
		case "<=":
			return val <= target
		case ">=":
			return val >= target
		}
		return false
	})
}

func (f FilterEvaluator) compareUint(raw string, filter config.RequiredFilterConfig) bool {
	val, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		f.warnParse("invalid_unsigned_integer_filter", raw, filter.Name)
		return false
	}
	target, err := strconv.ParseUint(filter.Value, 10, 64)
	if err != nil {
		f.warnParse("invalid_unsigned_integer_filter", filter.Value, filter.Name)
		return false
	}
	return applyOp(filter.Op, func(op string) bool {
		switch op {
		case "=":
			return val == target
		case "!=":
			return val != target
		case "<":
			return val < target
		case ">":
			return val > target
		case "<=":
			return val <= target
		case ">=":
			return val >= target
		}
		return false
	})
}

func (f FilterEvaluator) compareFloat(raw string, filter config.RequiredFilterConfig) bool {
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		f.warnParse("invalid_float_filter", raw, filter.Name)
		return false
	}
	target, err := strconv.ParseFloat(filter.Value, 64)
	if err != nil {
		f.warnParse("invalid_float_filter", filter.Value, filter.Name)
		return false
	}
	const eps = 1e-9
	return applyOp(filter.Op, func(op string) bool {
		switch op {
		case "=":
			return math.Abs(val-target) < eps
		case "!=":
			return math.Abs(val-target) >= eps
		case "<":
			return val < target
		case ">":
			return val > target
		case "<=":
			return val <= target
		case ">=":
			return val >= target
		}
		return false
	})
}

func (f FilterEvaluator) compareString(raw string, filter config.RequiredFilterConfig) bool {
	return applyOp(filter.Op, func(op string) bool {
		switch op {
		case "=":
			return raw == filter.Value
		case "!=":
			return raw != filter.Value
		case "<":
			return raw < filter.Value
		case ">":
			return raw > filter.Value
		case "<=":
			return raw <= filter.Value
		case ">=":
			return raw >= filter.Value
		}
		return false
	})
}

func applyOp(op string, f func(string) bool) bool { return f(op) }

func (f FilterEvaluator) warnParse(kind, value, column string) {
	logging.Event("mysql_binlog_warning").
		Field("type", kind).
		Field("reason", "parse_error").
		Field("value", value).
		Field("column_name", column).
		Warn(f.Log)
}

// ExtractFilters converts each configured filter column's string value into
// a typed FilterValue. A parse failure drops just that one column; it never
// rejects the row (that is EvaluateRequired's job).
func (f FilterEvaluator) ExtractFilters(row map[string]string, filters []config.FilterConfig, tz string) map[string]storage.FilterValue {
	out := make(map[string]storage.FilterValue, len(filters))
	for _, fc := range filters {
		raw, ok := row[fc.Name]
		if !ok {
			continue
		}
		v, ok := parseFilterValue(raw, fc.Type, tz)
		if !ok {
			continue
		}
		out[fc.Name] = v
	}
	return out
}

// ExtractAllFilters extracts both the required-filter columns (also exposed
// as bindable document filters) and the optional filter columns, merging
// both maps.
func (f FilterEvaluator) ExtractAllFilters(row map[string]string, tc config.TableConfig) map[string]storage.FilterValue {
	out := make(map[string]storage.FilterValue, len(tc.RequiredFilters)+len(tc.Filters))
	for _, rf := range tc.RequiredFilters {
		raw, ok := row[rf.Name]
		if !ok {
			continue
		}
		if v, ok := parseFilterValue(raw, rf.Type, "+00:00"); ok {
			out[rf.Name] = v
		}
	}
	for k, v := range f.ExtractFilters(row, tc.Filters, "+00:00") {
		out[k] = v
	}
	return out
}

func parseFilterValue(raw, typ, tz string) (storage.FilterValue, bool) {
	switch typ {
	case "tinyint", "smallint", "int", "mediumint", "bigint":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return storage.FilterValue{}, false
		}
		return storage.FilterValue{Kind: storage.FilterInt, Int: n}, true
	case "tinyint_unsigned", "smallint_unsigned", "int_unsigned", "mediumint_unsigned":
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return storage.FilterValue{}, false
		}
		return storage.FilterValue{Kind: storage.FilterUint, Uint: n}, true
	case "float", "double":
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return storage.FilterValue{}, false
		}
		return storage.FilterValue{Kind: storage.FilterDouble, Double: n}, true
	case "boolean":
		return storage.FilterValue{Kind: storage.FilterBool, Bool: raw == "1" || raw == "true"}, true
	case "string", "varchar", "text":
		return storage.FilterValue{Kind: storage.FilterString, Str: raw}, true
	case "datetime", "date":
		sec, ok := parseDatetimeToEpoch(raw, tz)
		if !ok {
			return storage.FilterValue{}, false
		}
		return storage.FilterValue{Kind: storage.FilterEpoch, Uint: sec}, true
	case "timestamp":
		sec, ok := parseDatetimeToEpoch(raw, "+00:00")
		if !ok {
			return storage.FilterValue{}, false
		}
		return storage.FilterValue{Kind: storage.FilterEpoch, Uint: sec}, true
	case "time":
		sec, ok := parseTimeOfDay(raw)
		if !ok {
			return storage.FilterValue{}, false
		}
		return storage.FilterValue{Kind: storage.FilterTimeOfDay, Int: sec}, true
	default:
		return storage.FilterValue{}, false
	}
}
