package metrics

import (
	"fmt"
	"regexp"
	"strings"
)

// AnswerMatch is the comparison of a model answer against the accepted labels
type AnswerMatch struct {
	Expected string  `json:"expected" yaml:"expected"`
	Actual   string  `json:"actual" yaml:"actual"`
	Score    float64 `json:"score" yaml:"score"`
	Method   string  `json:"method" yaml:"method"`
	Notes    string  `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Correct reports whether the answer counts as a hit.
func (m AnswerMatch) Correct() bool {
	return m.Method == "exact" || m.Method == "substring"
}

// CompareAnswer scores answer against every accepted label and keeps the best.
func CompareAnswer(answer string, accepted []string) AnswerMatch {
	best := AnswerMatch{Actual: answer, Method: "expected_missing", Notes: "No accepted answers"}
	for i, expected := range accepted {
		m := compareAnswer(expected, answer)
		if i == 0 || m.Score > best.Score {
			best = m
		}
	}
	return best
}

func compareAnswer(expected, actual string) AnswerMatch {
	match := AnswerMatch{
		Expected: expected,
		Actual:   actual,
	}

	expNorm := normalizeForComparison(expected)
	actNorm := normalizeForComparison(actual)

	if expNorm == "" {
		match.Method = "expected_missing"
		match.Notes = "Expected value is empty (no ground truth)"
		return match
	}
	if actNorm == "" {
		match.Method = "actual_missing"
		match.Notes = "Model returned no answer"
		return match
	}

	if expNorm == actNorm {
		match.Score = 1.0
		match.Method = "exact"
		match.Notes = "Exact match"
		return match
	}

	// Models often wrap the word, e.g. "ねこの絵" or "a cat".
	if strings.Contains(actNorm, expNorm) {
		match.Score = 0.8
		match.Method = "substring"
		match.Notes = "Answer contains the label"
		return match
	}

	similarity := calculateSimilarity(expNorm, actNorm)
	match.Score = similarity
	if similarity > 0.7 {
		match.Method = "fuzzy_high"
	} else if similarity > 0.4 {
		match.Method = "fuzzy_medium"
	} else {
		match.Method = "no_match"
	}
	match.Notes = fmt.Sprintf("Similarity %.2f", similarity)

	return match
}

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// normalizeForComparison lower-cases text and drops whitespace and
// punctuation, including the Japanese full stop and brackets.
func normalizeForComparison(text string) string {
	return nonWord.ReplaceAllString(strings.ToLower(text), "")
}

// calculateSimilarity calculates similarity ratio (0.0 to 1.0) using Levenshtein distance
func calculateSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) == 0 || len(r2) == 0 {
		return 0.0
	}

	distance := levenshteinDistance(r1, r2)
	return 1.0 - float64(distance)/float64(max(len(r1), len(r2)))
}

// levenshteinDistance works on runes so multi-byte characters count once.
func levenshteinDistance(s1, s2 []rune) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(s2)]
}
