package extractor

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// collapse composes the text to NFC, folds whitespace runs (including
// non-breaking spaces) into single spaces and trims the ends.
func collapse(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// splitLabel separates a headword label like "cat (n.)" into the name and
// its part of speech. "n., v." becomes "n, v".
func splitLabel(label string) (name, pos string) {
	label = collapse(label)
	open := strings.Index(label, "(")
	if open < 0 {
		return label, ""
	}
	name = strings.TrimSpace(label[:open])
	rest := label[open+1:]
	if end := strings.Index(rest, ")"); end >= 0 {
		rest = rest[:end]
	}

	var parts []string
	for _, p := range strings.Split(rest, ",") {
		if p = keepAlnum(p); p != "" {
			parts = append(parts, p)
		}
	}
	return name, strings.Join(parts, ", ")
}

func keepAlnum(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// canonical reduces a word to the form used for loose spelling matches:
// lowercase, no hyphens, spaces or apostrophes, no plural "s".
func canonical(word string) string {
	w := strings.Map(func(r rune) rune {
		switch r {
		case '-', ' ', '\'', '’':
			return -1
		}
		return unicode.ToLower(r)
	}, word)
	if len(w) > 3 {
		w = strings.TrimSuffix(w, "s")
	}
	return w
}
