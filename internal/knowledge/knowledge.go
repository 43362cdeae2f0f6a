/*
Package knowledge loads the condition-and-food knowledge base used to ground
user queries before any generative call. The base is read once at startup and
is immutable afterwards, so it is safe for unlimited concurrent readers.
*/
package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// DataLoadError reports an unreadable or malformed knowledge source.
type DataLoadError struct {
	Path string
	Err  error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("knowledge base load failed for %s: %v", e.Path, e.Err)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// ConditionEntry holds the curated guidance for one canonical condition key.
type ConditionEntry struct {
	Eat    []string `json:"eat"`
	Avoid  []string `json:"avoid"`
	Timing []string `json:"timing"`
}

// FoodAttributes carries descriptive attributes for a catalog food.
// Only the food name participates in matching.
type FoodAttributes struct {
	Category string `json:"category"`
	Notes    string `json:"notes"`
}

type sourceFile struct {
	Conditions map[string]ConditionEntry `json:"conditions"`
	Foods      map[string]FoodAttributes `json:"foods"`
}

// Base is the in-memory knowledge base.
type Base struct {
	conditions map[string]ConditionEntry
	catalog    map[string]struct{}
	loaded     bool
}

// Load reads the knowledge source at path. If the source is missing or
// malformed the returned base is empty but usable, Loaded reports false,
// and the *DataLoadError describes what went wrong. The process never
// crashes over a bad knowledge file.
func Load(path string) (*Base, error) {
	empty := &Base{
		conditions: map[string]ConditionEntry{},
		catalog:    map[string]struct{}{},
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return empty, &DataLoadError{Path: path, Err: err}
	}

	var src sourceFile
	if err := json.Unmarshal(raw, &src); err != nil {
		return empty, &DataLoadError{Path: path, Err: err}
	}

	b := &Base{
		conditions: make(map[string]ConditionEntry, len(src.Conditions)),
		catalog:    make(map[string]struct{}, len(src.Foods)),
		loaded:     true,
	}
	for key, entry := range src.Conditions {
		b.conditions[strings.ToLower(strings.TrimSpace(key))] = entry
	}
	for name := range src.Foods {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		b.catalog[name] = struct{}{}
	}
	return b, nil
}

// Loaded reports whether a real knowledge source backs this base.
// A false value lets callers distinguish "no match" from "no data".
func (b *Base) Loaded() bool { return b.loaded }

// Lookup returns the guidance for a canonical condition key.
func (b *Base) Lookup(conditionKey string) (ConditionEntry, bool) {
	entry, ok := b.conditions[strings.ToLower(conditionKey)]
	return entry, ok
}

// AllFoodNames returns the catalog of known food names, lowercase and
// deduplicated. The returned map is shared and must not be mutated.
func (b *Base) AllFoodNames() map[string]struct{} {
	return b.catalog
}
