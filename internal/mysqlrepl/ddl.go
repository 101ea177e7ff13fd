package mysqlrepl

import "strings"

// DdlVerb classifies a detected DDL statement.
type DdlVerb int

const (
	DdlNone DdlVerb = iota
	DdlTruncate
	DdlDrop
	DdlAlter
)

func (v DdlVerb) String() string {
	switch v {
	case DdlTruncate:
		return "TRUNCATE"
	case DdlDrop:
		return "DROP"
	case DdlAlter:
		return "ALTER"
	default:
		return ""
	}
}

// DetectDdl hand-tokenises an uppercased SQL statement for TRUNCATE TABLE
// <t>, DROP TABLE [IF EXISTS] <t>, and ALTER TABLE <t>, matching an optional
// backtick-quoted table name. A hand-rolled tokeniser is used in place of a
// regex per the project's explicit "zero runtime dependency" rule for DDL
// detection (see SPEC_FULL.md §9).
func DetectDdl(sqlUpper string) (verb DdlVerb, table string, ok bool) {
	tokens := tokenize(sqlUpper)
	if len(tokens) == 0 {
		return DdlNone, "", false
	}

	switch tokens[0] {
	case "TRUNCATE":
		rest := tokens[1:]
		if len(rest) > 0 && rest[0] == "TABLE" {
			rest = rest[1:]
		}
		if len(rest) == 0 {
			return DdlNone, "", false
		}
		return DdlTruncate, unquote(rest[0]), true

	case "DROP":
		rest := tokens[1:]
		if len(rest) == 0 || rest[0] != "TABLE" {
			return DdlNone, "", false
		}
		rest = rest[1:]
		if len(rest) >= 2 && rest[0] == "IF" && rest[1] == "EXISTS" {
			rest = rest[2:]
		}
		if len(rest) == 0 {
			return DdlNone, "", false
		}
		return DdlDrop, unquote(rest[0]), true

	case "ALTER":
		rest := tokens[1:]
		if len(rest) == 0 || rest[0] != "TABLE" {
			return DdlNone, "", false
		}
		rest = rest[1:]
		if len(rest) == 0 {
			return DdlNone, "", false
		}
		return DdlAlter, unquote(rest[0]), true
	}

	return DdlNone, "", false
}

// tokenize splits on whitespace, treating a backtick-quoted identifier
// (which may itself contain whitespace) as a single token.
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := false

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range s {
		switch {
		case r == '`':
			cur.WriteRune(r)
			inQuote = !inQuote
			if !inQuote {
				flush()
			}
		case inQuote:
			cur.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func unquote(tok string) string {
	tok = strings.TrimSuffix(strings.TrimPrefix(tok, "`"), "`")
	// A qualified name db.table or db.`table` keeps only the table part.
	if i := strings.LastIndex(tok, "."); i >= 0 {
		tok = tok[i+1:]
	}
	return strings.TrimSuffix(strings.TrimPrefix(tok, "`"), "`")
}
