package geminiservice

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

/* =================================================================================
						RESPONSE INTERPRETATION
	Extracts a StructuredRecommendation from free-form model output under an
	ordered list of extraction contracts, degrading to a plain-text envelope
	when none of them hold. Parse failures never escape this boundary.
=================================================================================*/

// DefaultDisclaimer backfills the disclaimer field when the model leaves it
// empty. The invariant is that a structured result always carries one.
const DefaultDisclaimer = "This is general dietary guidance, not medical advice. Please consult a healthcare professional for personal concerns."

var (
	jsonTagBlockRe = regexp.MustCompile(`(?is)<json>(.*?)</json>`)
	jsonFenceRe    = regexp.MustCompile("(?is)```json(.*?)```")
)

// An extractor pulls a candidate JSON document out of raw model text.
// Extractors are tried in fixed priority order; the first whose candidate
// parses and validates wins.
type extractor struct {
	name    string
	extract func(raw string) (string, bool)
}

var extractors = []extractor{
	{name: "direct_object", extract: extractDirectObject},
	{name: "delimited_block", extract: extractDelimitedBlock},
}

// extractDirectObject treats the whole payload as one JSON object. This is
// the contract the structured-output generation mode produces.
func extractDirectObject(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return "", false
	}
	return trimmed, true
}

// extractDelimitedBlock looks for a <json>...</json> block first, then a
// ```json fenced block. First occurrence, non-greedy, spans newlines.
func extractDelimitedBlock(raw string) (string, bool) {
	if m := jsonTagBlockRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := jsonFenceRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

// requiredKeys is the StructuredRecommendation top-level field set. A
// candidate document missing any of them fails validation and falls through
// to the next contract.
var requiredKeys = []string{
	"condition_detected",
	"foods_to_eat",
	"foods_to_avoid",
	"timing_and_tips",
	"explanation",
	"disclaimer",
}

// decodeCandidate parses and validates one extracted candidate. The error is
// internal only; it is folded into the degraded path, never surfaced.
func decodeCandidate(candidate string) (*StructuredRecommendation, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &keys); err != nil {
		return nil, err
	}
	for _, key := range requiredKeys {
		if _, ok := keys[key]; !ok {
			return nil, fmt.Errorf("missing required key %q", key)
		}
	}

	var rec StructuredRecommendation
	if err := json.Unmarshal([]byte(candidate), &rec); err != nil {
		return nil, err
	}
	if strings.TrimSpace(rec.Disclaimer) == "" {
		rec.Disclaimer = DefaultDisclaimer
	}
	return &rec, nil
}

// Interpret turns raw model text into a RecommendationEnvelope. When every
// extraction contract fails the envelope carries the trimmed raw text as the
// reply with no structured payload; the text is still useful to a human.
func Interpret(rawText string, grounded bool) Envelope {
	for _, ex := range extractors {
		candidate, ok := ex.extract(rawText)
		if !ok {
			continue
		}
		rec, err := decodeCandidate(candidate)
		if err != nil {
			log.Debug().Str("extractor", ex.name).Err(err).Msg("Extraction contract did not hold")
			continue
		}
		return Envelope{
			Reply:      summarizeReply(rec),
			Structured: rec,
			Grounded:   grounded,
		}
	}

	return Envelope{
		Reply:      strings.TrimSpace(rawText),
		Structured: nil,
		Grounded:   grounded,
	}
}

// summarizeReply produces a short human-readable line instead of echoing the
// structured payload.
func summarizeReply(rec *StructuredRecommendation) string {
	condition := strings.TrimSpace(rec.ConditionDetected)
	if condition == "" {
		return "Here is a dietary analysis based on your question."
	}
	return fmt.Sprintf("Here is an analysis regarding '%s'.", condition)
}
