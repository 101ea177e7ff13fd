package mysqlrepl

import (
	"fmt"
	"unicode/utf8"

	"github.com/go-mysql-org/go-mysql/replication"
)

// stringifyRow converts one decoded go-mysql row (already typed: int64,
// uint64, float64, string, []byte, nil, ...) into the column-name → string
// map the rest of the pipeline (FilterEvaluator, text extraction) works
// against, using the table's configured ordinal column list since TABLE_MAP
// does not carry names on the wire. A NULL column maps to the empty string,
// which is what FilterEvaluator's IS NULL / IS NOT NULL checks test for.
//
// go-mysql-org/go-mysql/replication already performs the bit-exact column
// decoding (packed integers, NULL bitmaps, NEWDECIMAL, DATETIME2/TIME2/
// TIMESTAMP2, ENUM/SET, JSON, geometry) — this function only re-renders its
// typed output back to canonical strings, so the project does not duplicate
// that wire-format logic.
func stringifyRow(row []interface{}, columns []string) map[string]string {
	out := make(map[string]string, len(row))
	for i, v := range row {
		if i >= len(columns) {
			break
		}
		if v == nil {
			out[columns[i]] = "" // NULL
			continue
		}
		out[columns[i]] = stringifyValue(v)
	}
	return out
}

func stringifyValue(v interface{}) string {
	switch x := v.(type) {
	case []byte:
		return sanitizeUTF8(string(x))
	case string:
		return sanitizeUTF8(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

// sanitizeUTF8 replaces malformed byte sequences with the Unicode
// replacement character before the string enters the row image.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		out = append(out, r)
	}
	return string(out)
}

// buildTableMetadata converts a replication.TableMapEvent plus the table's
// configured ordinal column list into our TableMetadata shape.
func buildTableMetadata(ev *replication.TableMapEvent, columnNames []string) *TableMetadata {
	cols := make([]ColumnMeta, 0, len(ev.ColumnType))
	for i, t := range ev.ColumnType {
		name := ""
		if i < len(columnNames) {
			name = columnNames[i]
		}
		var meta uint16
		if i < len(ev.ColumnMeta) {
			meta = ev.ColumnMeta[i]
		}
		nullable := bitmapIsSet(ev.NullBitmap, i)
		cols = append(cols, ColumnMeta{
			Type:     t,
			Meta:     meta,
			Nullable: nullable,
			Name:     name,
		})
	}
	return &TableMetadata{
		TableID: ev.TableID,
		DB:      string(ev.Schema),
		Table:   string(ev.Table),
		Columns: cols,
	}
}

func bitmapIsSet(bitmap []byte, i int) bool {
	byteIdx := i / 8
	if byteIdx >= len(bitmap) {
		return false
	}
	return bitmap[byteIdx]&(1<<uint(i%8)) != 0
}
