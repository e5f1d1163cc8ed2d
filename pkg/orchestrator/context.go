package orchestrator

import (
	"regexp"
	"unicode/utf8"
)

const (
	// contextCharBudget caps the prior-step output carried into the
	// next step's message.
	contextCharBudget = 4000

	// richOutputMin is the length past which an output qualifies as
	// context on size alone.
	richOutputMin = 200

	truncationMarker = "\n...[truncated]"
)

// dataMarkerRe matches domain-data signals: currency amounts, decimals,
// percentages, reference numbers, ticket-style identifiers.
var dataMarkerRe = regexp.MustCompile(`[$€£]\s?\d|\d+[.,]\d+|\d+\s?%|#\d+|\b[A-Z]{2,}-\d+\b`)

// SelectContext picks one prior-step output to carry forward: the
// longest output that is either longer than richOutputMin or contains a
// data marker, falling back to the most recent non-empty output. The
// result is truncated to the context budget.
func SelectContext(outputs []string) string {
	var best string
	for _, out := range outputs {
		if out == "" {
			continue
		}
		if len(out) > richOutputMin || dataMarkerRe.MatchString(out) {
			if len(out) > len(best) {
				best = out
			}
		}
	}
	if best == "" {
		for i := len(outputs) - 1; i >= 0; i-- {
			if outputs[i] != "" {
				best = outputs[i]
				break
			}
		}
	}
	return truncate(best)
}

func truncate(s string) string {
	if len(s) <= contextCharBudget {
		return s
	}
	// Back up to a rune boundary so the cut never ships invalid UTF-8.
	cut := contextCharBudget
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMarker
}
