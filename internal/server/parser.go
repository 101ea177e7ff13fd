// Package server implements the newline-terminated text request protocol:
// parsing, routing to handlers, and response-line formatting.
package server

import (
	"strconv"
	"strings"

	"github.com/libraz/mygramdb/internal/errs"
	"github.com/libraz/mygramdb/internal/queryspec"
)

// tokenize splits a request line on whitespace, treating a double-quoted
// span as one token (so text and literal values may contain spaces).
func tokenize(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ' ' || r == '\t':
			if inQuotes {
				cur.WriteRune(r)
			} else {
				flush()
			}
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// ParseLine parses one request line into a Query. The caller is responsible
// for enforcing max_query_length before calling this.
func ParseLine(line string) (queryspec.Query, error) {
	toks := tokenize(strings.TrimRight(line, "\r\n"))
	if len(toks) == 0 {
		return queryspec.Query{}, errs.New(errs.InvalidInput, "empty request")
	}

	cmd := strings.ToUpper(toks[0])
	rest := toks[1:]

	switch cmd {
	case "SEARCH":
		return parseSearchOrCount(queryspec.Search, rest)
	case "COUNT":
		return parseSearchOrCount(queryspec.Count, rest)
	case "GET":
		if len(rest) != 2 {
			return queryspec.Query{}, errs.New(errs.InvalidInput, "GET requires <table> <primary_key>")
		}
		return queryspec.Query{Type: queryspec.Get, Table: rest[0], PrimaryKey: rest[1]}, nil
	case "INFO":
		return queryspec.Query{Type: queryspec.Info}, nil
	case "CONFIG":
		return parseSubcommand(queryspec.ConfigCmd, rest)
	case "DUMP":
		return parseSubcommand(queryspec.DumpCmd, rest)
	case "CACHE":
		return parseSubcommand(queryspec.CacheCmd, rest)
	case "DEBUG":
		return parseSubcommand(queryspec.DebugCmd, rest)
	default:
		return queryspec.Query{}, errs.New(errs.InvalidInput, "unknown command: "+cmd)
	}
}

func parseSubcommand(t queryspec.Type, rest []string) (queryspec.Query, error) {
	if len(rest) == 0 {
		return queryspec.Query{}, errs.New(errs.InvalidInput, "missing subcommand")
	}
	q := queryspec.Query{Type: t, Sub: strings.ToUpper(rest[0])}
	if len(rest) > 1 {
		q.Arg = rest[1]
	}
	return q, nil
}

func parseSearchOrCount(t queryspec.Type, rest []string) (queryspec.Query, error) {
	if len(rest) < 2 {
		return queryspec.Query{}, errs.New(errs.InvalidInput, "requires <table> <text>")
	}
	q := queryspec.Query{Type: t, Table: rest[0], SearchText: rest[1]}

	i := 2
	for i < len(rest) {
		switch strings.ToUpper(rest[i]) {
		case "AND":
			if i+1 >= len(rest) {
				return queryspec.Query{}, errs.New(errs.InvalidInput, "AND requires a term")
			}
			q.AndTerms = append(q.AndTerms, rest[i+1])
			i += 2
		case "NOT":
			if i+1 >= len(rest) {
				return queryspec.Query{}, errs.New(errs.InvalidInput, "NOT requires a term")
			}
			q.NotTerms = append(q.NotTerms, rest[i+1])
			i += 2
		case "FILTER":
			if i+3 >= len(rest) {
				return queryspec.Query{}, errs.New(errs.InvalidInput, "FILTER requires <col> <op> <value>")
			}
			op, err := parseOp(rest[i+2])
			if err != nil {
				return queryspec.Query{}, err
			}
			q.Filters = append(q.Filters, queryspec.FilterCondition{Column: rest[i+1], Op: op, Value: rest[i+3]})
			i += 4
		case "SORT":
			if t == queryspec.Count {
				return queryspec.Query{}, errs.New(errs.InvalidInput, "COUNT does not accept SORT")
			}
			if i+2 >= len(rest) {
				return queryspec.Query{}, errs.New(errs.InvalidInput, "SORT requires <col> <ASC|DESC>")
			}
			order := queryspec.Desc
			switch strings.ToUpper(rest[i+2]) {
			case "ASC":
				order = queryspec.Asc
			case "DESC":
				order = queryspec.Desc
			default:
				return queryspec.Query{}, errs.New(errs.InvalidInput, "SORT direction must be ASC or DESC")
			}
			col := rest[i+1]
			if col == "_pk" || col == "primary_key" {
				col = ""
			}
			q.OrderBy = &queryspec.OrderBy{Column: col, Order: order}
			i += 3
		case "LIMIT":
			if t == queryspec.Count {
				return queryspec.Query{}, errs.New(errs.InvalidInput, "COUNT does not accept LIMIT")
			}
			if i+1 >= len(rest) {
				return queryspec.Query{}, errs.New(errs.InvalidInput, "LIMIT requires a value")
			}
			n, err := strconv.Atoi(rest[i+1])
			if err != nil || n < 0 {
				return queryspec.Query{}, errs.New(errs.InvalidInput, "LIMIT must be a non-negative integer")
			}
			q.Limit = n
			q.LimitExplicit = true
			i += 2
		case "OFFSET":
			if t == queryspec.Count {
				return queryspec.Query{}, errs.New(errs.InvalidInput, "COUNT does not accept OFFSET")
			}
			if i+1 >= len(rest) {
				return queryspec.Query{}, errs.New(errs.InvalidInput, "OFFSET requires a value")
			}
			n, err := strconv.Atoi(rest[i+1])
			if err != nil || n < 0 {
				return queryspec.Query{}, errs.New(errs.InvalidInput, "OFFSET must be a non-negative integer")
			}
			q.Offset = n
			q.OffsetExplicit = true
			i += 2
		default:
			return queryspec.Query{}, errs.New(errs.InvalidInput, "unexpected token: "+rest[i])
		}
	}
	return q, nil
}

func parseOp(tok string) (queryspec.FilterOp, error) {
	switch tok {
	case "=":
		return queryspec.OpEQ, nil
	case "!=":
		return queryspec.OpNE, nil
	case ">":
		return queryspec.OpGT, nil
	case ">=":
		return queryspec.OpGTE, nil
	case "<":
		return queryspec.OpLT, nil
	case "<=":
		return queryspec.OpLTE, nil
	default:
		return 0, errs.New(errs.InvalidInput, "unknown filter operator: "+tok)
	}
}
