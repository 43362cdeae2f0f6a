/*
Package grounding attaches deterministic, locally-verifiable facts to a user
query before the generative call: the canonical condition the query is about,
and which known foods it literally mentions. Matching is substring-based on
purpose. It is cheap, deterministic, needs no model, and still works when the
generation backend is down.
*/
package grounding

import (
	"strings"

	"nutribot/internal/knowledge"
)

// conditionKeywords maps canonical condition keys to the phrasings users
// actually type. Order is significant: the first key with any matching
// keyword wins, so more specific conditions must stay ahead of generic ones.
var conditionKeywords = []struct {
	Key      string
	Keywords []string
}{
	{"migraine", []string{"migraine", "headache", "head pain"}},
	{"type2_diabetes", []string{"diabetes", "type 2", "type2", "blood sugar"}},
	{"hypertension", []string{"hypertension", "high blood pressure", "high bp"}},
	{"acidity", []string{"acidity", "acid reflux", "heartburn", "gerd"}},
}

// Result is the grounding outcome for a single request. ConditionEntry is
// non-nil exactly when ConditionKey is non-empty.
type Result struct {
	ConditionKey   string
	ConditionEntry *knowledge.ConditionEntry
	MatchedFoods   map[string]struct{}
}

// Grounded reports whether the query produced any deterministic grounding.
func (r Result) Grounded() bool {
	return r.ConditionKey != "" || len(r.MatchedFoods) > 0
}

// FoodList returns the matched foods as a sorted-insensitive display slice
// with first letters capitalized.
func (r Result) FoodList() []string {
	foods := make([]string, 0, len(r.MatchedFoods))
	for name := range r.MatchedFoods {
		foods = append(foods, capitalize(name))
	}
	return foods
}

// Match grounds userText against the knowledge base. It is pure and total:
// no I/O, no external calls, identical output for identical input.
func Match(userText string, kb *knowledge.Base) Result {
	lowered := strings.ToLower(userText)

	result := Result{MatchedFoods: map[string]struct{}{}}

	for _, row := range conditionKeywords {
		for _, keyword := range row.Keywords {
			if strings.Contains(lowered, keyword) {
				result.ConditionKey = row.Key
				if entry, ok := kb.Lookup(row.Key); ok {
					result.ConditionEntry = &entry
				}
				break
			}
		}
		if result.ConditionKey != "" {
			break
		}
	}

	// Multi-word names match as whole phrases: "brown rice" only matches
	// when that exact substring appears.
	for name := range kb.AllFoodNames() {
		if strings.Contains(lowered, name) {
			result.MatchedFoods[name] = struct{}{}
		}
	}

	return result
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
