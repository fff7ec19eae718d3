// Package classifier maps free-text trial fields onto the closed vocabularies
// of the curated dataset: comparator class, timing phase, route, RoB2
// category and the representative dexmedetomidine arm.  All classifiers are
// total functions over immutable inputs and are safe for concurrent use.
package classifier

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/DexAtlas/pkg/types/trial"
)

// ComparatorRules is the YAML rule file of the comparator classifier.
type ComparatorRules struct {
	IncludeTerms []string `yaml:"include_terms"`
	ExcludeTerms []string `yaml:"exclude_terms"`
}

// ParseComparatorRules decodes a rule file.  At least one include term is
// required, otherwise no row could ever be retained.
func ParseComparatorRules(data []byte) (ComparatorRules, error) {
	var rules ComparatorRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("comparator rules: %w", err)
	}
	if len(normalizeTerms(rules.IncludeTerms)) == 0 {
		return rules, fmt.Errorf("comparator rules: include_terms must not be empty")
	}
	return rules, nil
}

// ComparatorClassifier assigns a ControlClass to comparator-arm text.
type ComparatorClassifier struct {
	include []string
	exclude []string
}

// NewComparatorClassifier lowercases and deduplicates the rule terms.
func NewComparatorClassifier(rules ComparatorRules) *ComparatorClassifier {
	return &ComparatorClassifier{
		include: normalizeTerms(rules.IncludeTerms),
		exclude: normalizeTerms(rules.ExcludeTerms),
	}
}

// Classify scans lowercased text for rule terms:
// include only -> placebo_or_saline, both -> mixed_control,
// exclude only -> active_control, neither -> unclear.
func (c *ComparatorClassifier) Classify(text string) trial.ControlClass {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return trial.ControlUnclear
	}
	inc := containsAny(t, c.include)
	exc := containsAny(t, c.exclude)
	switch {
	case inc && !exc:
		return trial.ControlPlaceboOrSaline
	case inc && exc:
		return trial.ControlMixed
	case exc:
		return trial.ControlActive
	default:
		return trial.ControlUnclear
	}
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}

func normalizeTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

//Personal.AI order the ending
