// Package ngram implements the N-gram tokeniser the Index uses as its
// inverted-index term. Latin text is n-grammed at a fixed codepoint width;
// CJK (kanji) text can use a separate, usually smaller, width when a table
// configures kanji_ngram_size.
package ngram

import "strings"

// Normalize collapses runs of whitespace to single spaces, trims edges, and
// lower-cases the input. Shared by both indexing and the cache-key
// canonicaliser so that search text and cache fingerprints agree on what
// "the same text" means.
func Normalize(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}

// Generate returns the size-n sliding-window codepoint n-grams of s. Inputs
// shorter than n produce a single n-gram padded by returning the whole
// string as-is (matching the "always searchable" expectation for short
// terms).
func Generate(s string, n int) []string {
	if n <= 0 {
		n = 2
	}
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= n {
		return []string{string(runes)}
	}

	grams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+n]))
	}
	return grams
}

// isKanji reports whether r falls in the CJK Unified Ideographs block,
// the common case for "kanji" n-gram treatment.
func isKanji(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || (r >= 0x3400 && r <= 0x4DBF)
}

// GenerateHybrid splits s into runs of kanji and non-kanji codepoints,
// n-gramming kanji runs at kanjiN and everything else at latinN. When
// kanjiN is 0, every run uses latinN (or the default width if that is also
// zero); this matches the decoder's rule that "always use hybrid n-grams if
// kanji_ngram_size is configured" generalized to a single-width fallback.
func GenerateHybrid(s string, latinN, kanjiN int) []string {
	if latinN <= 0 {
		latinN = 2
	}
	if kanjiN <= 0 {
		kanjiN = latinN
	}

	runes := []rune(s)
	var grams []string
	var run []rune
	runIsKanji := false

	flush := func() {
		if len(run) == 0 {
			return
		}
		width := latinN
		if runIsKanji {
			width = kanjiN
		}
		grams = append(grams, Generate(string(run), width)...)
		run = run[:0]
	}

	for _, r := range runes {
		k := isKanji(r)
		if len(run) > 0 && k != runIsKanji {
			flush()
		}
		runIsKanji = k
		run = append(run, r)
	}
	flush()

	return grams
}
