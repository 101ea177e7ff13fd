package server

import (
	"reflect"
	"testing"

	"github.com/libraz/mygramdb/internal/queryspec"
)

func TestTokenizeQuotedSpans(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{name: "plain tokens", line: "SEARCH places tokyo", want: []string{"SEARCH", "places", "tokyo"}},
		{name: "quoted span keeps spaces", line: `SEARCH places "tokyo station"`, want: []string{"SEARCH", "places", "tokyo station"}},
		{name: "extra whitespace collapses", line: "SEARCH   places\ttokyo", want: []string{"SEARCH", "places", "tokyo"}},
		{name: "empty line", line: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tokenize(tt.line); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("tokenize(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseLineSearch(t *testing.T) {
	q, err := ParseLine("SEARCH places tokyo AND station NOT closed FILTER status = 1 SORT name ASC LIMIT 10 OFFSET 5\r\n")
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if q.Type != queryspec.Search || q.Table != "places" || q.SearchText != "tokyo" {
		t.Fatalf("ParseLine() = %+v", q)
	}
	if !reflect.DeepEqual(q.AndTerms, []string{"station"}) {
		t.Errorf("AndTerms = %v, want [station]", q.AndTerms)
	}
	if !reflect.DeepEqual(q.NotTerms, []string{"closed"}) {
		t.Errorf("NotTerms = %v, want [closed]", q.NotTerms)
	}
	if len(q.Filters) != 1 || q.Filters[0].Column != "status" || q.Filters[0].Op != queryspec.OpEQ || q.Filters[0].Value != "1" {
		t.Errorf("Filters = %+v", q.Filters)
	}
	if q.OrderBy == nil || q.OrderBy.Column != "name" || q.OrderBy.Order != queryspec.Asc {
		t.Errorf("OrderBy = %+v", q.OrderBy)
	}
	if !q.LimitExplicit || q.Limit != 10 {
		t.Errorf("Limit = %d explicit=%v, want 10/true", q.Limit, q.LimitExplicit)
	}
	if !q.OffsetExplicit || q.Offset != 5 {
		t.Errorf("Offset = %d explicit=%v, want 5/true", q.Offset, q.OffsetExplicit)
	}
}

func TestParseLineSortPrimaryKeySentinel(t *testing.T) {
	q, err := ParseLine("SEARCH places tokyo SORT _pk DESC")
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if q.OrderBy == nil || !q.OrderBy.IsPrimaryKey() {
		t.Errorf("OrderBy = %+v, want the primary-key sentinel", q.OrderBy)
	}
}

func TestParseLineCountRejectsSortAndLimit(t *testing.T) {
	if _, err := ParseLine("COUNT places tokyo SORT name ASC"); err == nil {
		t.Errorf("ParseLine(COUNT ... SORT) returned nil error")
	}
	if _, err := ParseLine("COUNT places tokyo LIMIT 5"); err == nil {
		t.Errorf("ParseLine(COUNT ... LIMIT) returned nil error")
	}
	if _, err := ParseLine("COUNT places tokyo OFFSET 5"); err == nil {
		t.Errorf("ParseLine(COUNT ... OFFSET) returned nil error")
	}
}

func TestParseLineGet(t *testing.T) {
	q, err := ParseLine("GET places 42")
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if q.Type != queryspec.Get || q.Table != "places" || q.PrimaryKey != "42" {
		t.Errorf("ParseLine(GET) = %+v", q)
	}
}

func TestParseLineGetWrongArity(t *testing.T) {
	if _, err := ParseLine("GET places"); err == nil {
		t.Errorf("ParseLine(GET places) returned nil error")
	}
	if _, err := ParseLine("GET places 42 extra"); err == nil {
		t.Errorf("ParseLine(GET places 42 extra) returned nil error")
	}
}

func TestParseLineSubcommands(t *testing.T) {
	tests := []struct {
		line    string
		wantTyp queryspec.Type
		wantSub string
		wantArg string
	}{
		{line: "CONFIG SHOW", wantTyp: queryspec.ConfigCmd, wantSub: "SHOW"},
		{line: "DUMP SAVE /tmp/snap.mgdb", wantTyp: queryspec.DumpCmd, wantSub: "SAVE", wantArg: "/tmp/snap.mgdb"},
		{line: "CACHE CLEAR places", wantTyp: queryspec.CacheCmd, wantSub: "CLEAR", wantArg: "places"},
		{line: "DEBUG STATS", wantTyp: queryspec.DebugCmd, wantSub: "STATS"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			q, err := ParseLine(tt.line)
			if err != nil {
				t.Fatalf("ParseLine(%q) error = %v", tt.line, err)
			}
			if q.Type != tt.wantTyp || q.Sub != tt.wantSub || q.Arg != tt.wantArg {
				t.Errorf("ParseLine(%q) = %+v, want type=%v sub=%v arg=%v", tt.line, q, tt.wantTyp, tt.wantSub, tt.wantArg)
			}
		})
	}
}

func TestParseLineInfo(t *testing.T) {
	q, err := ParseLine("INFO")
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if q.Type != queryspec.Info {
		t.Errorf("ParseLine(INFO).Type = %v, want Info", q.Type)
	}
}

func TestParseLineErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "empty request", line: ""},
		{name: "unknown command", line: "FROBNICATE places"},
		{name: "search missing text", line: "SEARCH places"},
		{name: "and missing term", line: "SEARCH places tokyo AND"},
		{name: "not missing term", line: "SEARCH places tokyo NOT"},
		{name: "filter missing parts", line: "SEARCH places tokyo FILTER status ="},
		{name: "filter bad operator", line: "SEARCH places tokyo FILTER status ~= 1"},
		{name: "sort missing direction", line: "SEARCH places tokyo SORT name"},
		{name: "sort bad direction", line: "SEARCH places tokyo SORT name SIDEWAYS"},
		{name: "limit not a number", line: "SEARCH places tokyo LIMIT abc"},
		{name: "limit negative", line: "SEARCH places tokyo LIMIT -1"},
		{name: "offset not a number", line: "SEARCH places tokyo OFFSET abc"},
		{name: "unexpected token", line: "SEARCH places tokyo BOGUS"},
		{name: "missing subcommand", line: "CONFIG"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseLine(tt.line); err == nil {
				t.Errorf("ParseLine(%q) returned nil error", tt.line)
			}
		})
	}
}

func TestParseOp(t *testing.T) {
	tests := []struct {
		tok     string
		want    queryspec.FilterOp
		wantErr bool
	}{
		{tok: "=", want: queryspec.OpEQ},
		{tok: "!=", want: queryspec.OpNE},
		{tok: ">", want: queryspec.OpGT},
		{tok: ">=", want: queryspec.OpGTE},
		{tok: "<", want: queryspec.OpLT},
		{tok: "<=", want: queryspec.OpLTE},
		{tok: "~=", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.tok, func(t *testing.T) {
			got, err := parseOp(tt.tok)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseOp(%q) returned nil error", tt.tok)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseOp(%q) error = %v", tt.tok, err)
			}
			if got != tt.want {
				t.Errorf("parseOp(%q) = %v, want %v", tt.tok, got, tt.want)
			}
		})
	}
}
