// Package references links curated trials to the DOI of their cited source.
// Study cells carry the footnote number glued to the year ("Momeni 2021100"
// cites reference 100); the numbered reference list supplies the URL.
package references

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/DexAtlas/internal/domain/trial"
	"github.com/turtacn/DexAtlas/internal/intelligence/normalizer"
)

// Link is one row of reference_links.json.
type Link struct {
	TrialID         string  `json:"trial_id"`
	StudyLabel      string  `json:"study_label"`
	ReferenceNumber *int    `json:"reference_number"`
	ReferenceURL    *string `json:"reference_url"`
}

var (
	footnoteRe  = regexp.MustCompile(`(?:19|20)\d{2}(\d{1,3})\b`)
	entryHeadRe = regexp.MustCompile(`^\s*(\d{1,3})\s*[.)\]]\s+(.*)$`)
	doiURLRe    = regexp.MustCompile(`(?i)https?://(?:dx\.)?doi\.org/\S+`)
	bareDOIRe   = regexp.MustCompile(`(?i)\b(10\.\d{4,9}/\S+)`)
)

// ParseReferenceNumber returns the footnote number glued to the year of a raw
// study cell, or nil when there is none.
func ParseReferenceNumber(study string) *int {
	m := footnoteRe.FindStringSubmatch(normalizer.CleanText(study))
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n == 0 {
		return nil
	}
	return &n
}

// ExtractURL returns the URL of one reference entry.  A DOI URL in the entry
// wins; a bare DOI becomes https://doi.org/<doi>.
func ExtractURL(entry string) string {
	if u := doiURLRe.FindString(entry); u != "" {
		return trimTrailing(u)
	}
	if m := bareDOIRe.FindStringSubmatch(entry); m != nil {
		return "https://doi.org/" + trimTrailing(m[1])
	}
	return ""
}

func trimTrailing(s string) string {
	return strings.TrimRight(s, ".,;)]")
}

// ParseList splits a numbered reference list into entries keyed by number.
// Lines that do not start a new entry continue the previous one.  A repeated
// number keeps its first entry.
func ParseList(text string) map[int]string {
	out := map[int]string{}
	current := 0
	var buf strings.Builder
	flush := func() {
		if current > 0 {
			if _, dup := out[current]; !dup {
				out[current] = strings.TrimSpace(buf.String())
			}
		}
		buf.Reset()
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if m := entryHeadRe.FindStringSubmatch(line); m != nil {
			flush()
			current, _ = strconv.Atoi(m[1])
			buf.WriteString(m[2])
			continue
		}
		if current > 0 && strings.TrimSpace(line) != "" {
			buf.WriteByte(' ')
			buf.WriteString(strings.TrimSpace(line))
		}
	}
	flush()
	return out
}

// Build links every record to its reference.  rawStudy maps a trial id to the
// uncleaned study cell; entries is the parsed reference list.  The result is
// sorted by trial id.  An empty reference list yields no links.
func Build(records []*trial.TrialRecord, rawStudy map[string]string, entries map[int]string) []Link {
	if len(entries) == 0 {
		return []Link{}
	}
	out := make([]Link, 0, len(records))
	for _, r := range records {
		l := Link{TrialID: r.TrialID, StudyLabel: r.StudyLabel}
		if n := ParseReferenceNumber(rawStudy[r.TrialID]); n != nil {
			l.ReferenceNumber = n
			if u := ExtractURL(entries[*n]); u != "" {
				l.ReferenceURL = &u
			}
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrialID < out[j].TrialID })
	return out
}

//Personal.AI order the ending
