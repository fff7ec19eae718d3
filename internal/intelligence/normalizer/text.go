// Package normalizer turns free-text trial descriptions into canonical values:
// cleaned labels, study keys, participant counts and dexmedetomidine doses in
// mcg-based units.  Every function is total: text that cannot be parsed
// yields an absent value, never an error.
package normalizer

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ---------------------------------------------------------------------------
// Patterns
// ---------------------------------------------------------------------------

var (
	whitespaceRe    = regexp.MustCompile(`\s+`)
	footnoteYearRe  = regexp.MustCompile(`\b(\d{4})\d{1,3}\b`)
	authorYearRe    = regexp.MustCompile(`^(.+?)\s*(\d{4})`)
	nonLetterRe     = regexp.MustCompile(`[^A-Za-z]+`)
	nonAlnumRe      = regexp.MustCompile(`[^A-Za-z0-9]+`)
	underscoreRunRe = regexp.MustCompile(`_+`)
	firstIntRe      = regexp.MustCompile(`\d+`)
	yearRe          = regexp.MustCompile(`\d{4}`)
)

// asciiFolder decomposes, drops combining marks and then any rune outside
// ASCII ("Müller" -> "Muller").
var asciiFolder = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
)

// CleanText applies NFKC, turns line breaks into spaces and collapses runs of
// whitespace.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CleanStudyLabel removes footnote reference digits glued to the publication
// year: "Abd Ellatif 20241" -> "Abd Ellatif 2024".
func CleanStudyLabel(s string) string {
	return footnoteYearRe.ReplaceAllString(CleanText(s), "$1")
}

// ASCIIFold strips diacritics and non-ASCII runes.
func ASCIIFold(s string) string {
	out, _, err := transform.String(asciiFolder, s)
	if err != nil {
		return s
	}
	return out
}

// StudyKey derives the join key shared by the table, the RoB workbook, the
// adjudication file and trial PDFs: "van Norden 2021" -> "van_norden_2021".
// Labels without a year fall back to a lowercased token string.
func StudyKey(label string) string {
	folded := ASCIIFold(CleanText(label))
	if m := authorYearRe.FindStringSubmatch(folded); m != nil {
		author := nonLetterRe.ReplaceAllString(m[1], "_")
		author = underscoreRunRe.ReplaceAllString(strings.Trim(author, "_"), "_")
		if author != "" {
			return strings.ToLower(author + "_" + m[2])
		}
	}
	key := nonAlnumRe.ReplaceAllString(folded, "_")
	return strings.ToLower(strings.Trim(key, "_"))
}

// ParseNTotal returns the first integer in a sample-size cell.
func ParseNTotal(s string) *int {
	m := firstIntRe.FindString(s)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &n
}

// ParseYear returns the first four-digit run in a study label.
func ParseYear(label string) *int {
	m := yearRe.FindString(label)
	if m == "" {
		return nil
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &y
}

// HasYear reports whether label contains a four-digit run.
func HasYear(label string) bool {
	return yearRe.MatchString(label)
}

//Personal.AI order the ending
