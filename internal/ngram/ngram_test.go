package ngram

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "collapses internal whitespace", in: "Hello   World", want: "hello world"},
		{name: "trims edges", in: "  Quick Fox  ", want: "quick fox"},
		{name: "already normalized", in: "tokyo station", want: "tokyo station"},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name string
		s    string
		n    int
		want []string
	}{
		{name: "basic bigrams", s: "abcd", n: 2, want: []string{"ab", "bc", "cd"}},
		{name: "shorter than n returns whole string", s: "ab", n: 3, want: []string{"ab"}},
		{name: "empty input", s: "", n: 2, want: nil},
		{name: "zero n defaults to 2", s: "abc", n: 0, want: []string{"ab", "bc"}},
		{name: "multi-byte runes counted as codepoints", s: "東京都庁", n: 2, want: []string{"東京", "京都", "都庁"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(tt.s, tt.n)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Generate(%q, %d) = %v, want %v", tt.s, tt.n, got, tt.want)
			}
		})
	}
}

func TestGenerateHybrid(t *testing.T) {
	tests := []struct {
		name          string
		s             string
		latinN, kanjiN int
		want          []string
	}{
		{
			name:   "mixed latin and kanji runs split at different widths",
			s:      "東京tokyo",
			latinN: 3,
			kanjiN: 2,
			want:   append(Generate("東京", 2), Generate("tokyo", 3)...),
		},
		{
			name:   "kanjiN zero falls back to latinN",
			s:      "東京",
			latinN: 2,
			kanjiN: 0,
			want:   Generate("東京", 2),
		},
		{
			name:   "pure latin run uses latinN only",
			s:      "station",
			latinN: 2,
			kanjiN: 3,
			want:   Generate("station", 2),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateHybrid(tt.s, tt.latinN, tt.kanjiN)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GenerateHybrid(%q, %d, %d) = %v, want %v", tt.s, tt.latinN, tt.kanjiN, got, tt.want)
			}
		})
	}
}
