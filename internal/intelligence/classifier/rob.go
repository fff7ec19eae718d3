package classifier

import (
	"github.com/turtacn/DexAtlas/internal/intelligence/normalizer"
	"github.com/turtacn/DexAtlas/pkg/types/trial"
)

// RobEntry is one row of the RoB2 workbook.
type RobEntry struct {
	StudyKey    string
	StudyLabel  string
	OverallRaw  string
	FallbackRaw string
}

// RobIndex is an immutable lookup of workbook rows by study key.  Duplicate
// keys keep the first row.
type RobIndex struct {
	entries map[string]RobEntry
	keys    []string
}

// NewRobIndex builds the index in workbook order.
func NewRobIndex(entries []RobEntry) *RobIndex {
	idx := &RobIndex{entries: make(map[string]RobEntry, len(entries))}
	for _, e := range entries {
		if e.StudyKey == "" {
			continue
		}
		if _, dup := idx.entries[e.StudyKey]; dup {
			continue
		}
		idx.entries[e.StudyKey] = e
		idx.keys = append(idx.keys, e.StudyKey)
	}
	return idx
}

// Lookup returns the entry for key.
func (x *RobIndex) Lookup(key string) (RobEntry, bool) {
	if x == nil {
		return RobEntry{}, false
	}
	e, ok := x.entries[key]
	return e, ok
}

// Keys returns the deduplicated keys in workbook order.
func (x *RobIndex) Keys() []string {
	if x == nil {
		return nil
	}
	out := make([]string, len(x.keys))
	copy(out, x.keys)
	return out
}

// Len returns the number of distinct keys.
func (x *RobIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.keys)
}

// RobResult is the standardized RoB judgement of one record.
type RobResult struct {
	Raw       string
	Std       trial.RobCategory
	Flags     []string
	Defaulted bool
}

// StandardizeRob applies the column precedence: a valid overall column wins,
// then a valid fallback column (flagged), then "Some concerns" (flagged as
// defaulted).  A nil entry means the trial was absent from the workbook.
func StandardizeRob(entry *RobEntry) RobResult {
	if entry == nil {
		return RobResult{
			Std:       trial.RobSomeConcerns,
			Flags:     []string{trial.FlagRobUnmatched},
			Defaulted: true,
		}
	}
	overall := normalizer.CleanText(entry.OverallRaw)
	fallback := normalizer.CleanText(entry.FallbackRaw)

	if trial.RobCategory(overall).IsValid() {
		return RobResult{Raw: overall, Std: trial.RobCategory(overall)}
	}
	if trial.RobCategory(fallback).IsValid() {
		return RobResult{
			Raw:   fallback,
			Std:   trial.RobCategory(fallback),
			Flags: []string{trial.FlagRobFallbackCol13},
		}
	}
	raw := overall
	if raw == "" {
		raw = fallback
	}
	return RobResult{
		Raw:       raw,
		Std:       trial.RobSomeConcerns,
		Flags:     []string{trial.FlagRobMissingDefaulted},
		Defaulted: true,
	}
}

//Personal.AI order the ending
