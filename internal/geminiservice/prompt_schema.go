package geminiservice

import (
	"encoding/json"
	"fmt"
	"strings"

	"nutribot/internal/grounding"
)

/* =================================================================================
							STRUCTURED OUTPUT CONTRACT
	The exact JSON shape the model must produce and the interpreter validates
=================================================================================*/

// FoodsToEat splits positive suggestions into primary picks and fallbacks.
type FoodsToEat struct {
	MainSuggestions []string `json:"main_suggestions"`
	Alternatives    []string `json:"alternatives"`
}

// StructuredRecommendation is the machine-validated result extracted from
// model output. The schema is enforced by the interpreter, not trusted to
// the model.
type StructuredRecommendation struct {
	ConditionDetected string     `json:"condition_detected"`
	FoodsToEat        FoodsToEat `json:"foods_to_eat"`
	FoodsToAvoid      []string   `json:"foods_to_avoid"`
	TimingAndTips     []string   `json:"timing_and_tips"`
	Explanation       string     `json:"explanation"`
	Disclaimer        string     `json:"disclaimer"`
}

// Envelope is what the pipeline returns to the routing layer. Structured is
// nil exactly when extraction or validation failed; Reply is always a
// non-empty, user-presentable string.
type Envelope struct {
	Reply      string                    `json:"reply"`
	Structured *StructuredRecommendation `json:"structured"`
	Grounded   bool                      `json:"grounded"`
}

// Profile is the caller-supplied health profile accompanying a query.
type Profile struct {
	Age          int      `json:"age,omitempty"`
	Restrictions []string `json:"restrictions,omitempty"`
	Preferences  []string `json:"preferences,omitempty"`
	Conditions   []string `json:"conditions,omitempty"`
}

/* =================================================================================
							GEMINI SCHEMA DEFINITION
	This is the structure that tells Gemini how to format its JSON response
=================================================================================*/

// GeminiSchema maps to the response_schema accepted by the Gemini API for
// controlled generation. Pointers allow recursive nesting.
type GeminiSchema struct {
	Type        string                   `json:"type"`
	Description string                   `json:"description,omitempty"`
	Properties  map[string]*GeminiSchema `json:"properties,omitempty"`
	Items       *GeminiSchema            `json:"items,omitempty"`
	Required    []string                 `json:"required,omitempty"`
}

// RecommendationSchema mirrors StructuredRecommendation field for field.
var RecommendationSchema = &GeminiSchema{
	Type: "OBJECT",
	Properties: map[string]*GeminiSchema{
		"condition_detected": {
			Type:        "STRING",
			Description: "The health condition the advice targets, e.g. 'migraine'. Use 'general' when no specific condition applies.",
		},
		"foods_to_eat": {
			Type: "OBJECT",
			Properties: map[string]*GeminiSchema{
				"main_suggestions": {
					Type:        "ARRAY",
					Description: "Top foods to favor for this condition.",
					Items:       &GeminiSchema{Type: "STRING"},
				},
				"alternatives": {
					Type:        "ARRAY",
					Description: "Acceptable substitutes when main suggestions are unavailable.",
					Items:       &GeminiSchema{Type: "STRING"},
				},
			},
			Required: []string{"main_suggestions", "alternatives"},
		},
		"foods_to_avoid": {
			Type:        "ARRAY",
			Description: "Foods to limit or avoid for this condition.",
			Items:       &GeminiSchema{Type: "STRING"},
		},
		"timing_and_tips": {
			Type:        "ARRAY",
			Description: "Meal timing guidance and practical tips, one sentence each.",
			Items:       &GeminiSchema{Type: "STRING"},
		},
		"explanation": {
			Type:        "STRING",
			Description: "Short plain-language rationale connecting the advice to the condition and the user's message.",
		},
		"disclaimer": {
			Type:        "STRING",
			Description: "One sentence reminding the user this is general dietary guidance, not medical advice.",
		},
	},
	Required: []string{"condition_detected", "foods_to_eat", "foods_to_avoid", "timing_and_tips", "explanation", "disclaimer"},
}

/* =================================================================================
						PROMPT ENGINEERING & GUARDRAILS
=================================================================================*/

/*
SystemPrompt defines the persona and guardrails for the model.
It enforces the safety rules for dietary guidance and pins the output
to a single JSON object.
*/
const SystemPrompt = `You are a careful dietary guidance assistant.
You help people choose what to eat given a health condition, a query, and optional context.

SAFETY RULES (CRITICAL):
1. NEVER diagnose any condition. You may only discuss food choices for conditions the user mentions.
2. NEVER prescribe medication, supplements, or dosages of any kind.
3. IF the user's message mentions severe symptoms such as "chest pain", "bleeding", "difficulty breathing", or "loss of consciousness":
   - Tell them to seek medical care immediately in the explanation field.
4. ALWAYS include a one-sentence disclaimer that this is general dietary guidance and not medical advice.

GROUNDING RULES:
1. When curated guidance lists are provided, prefer foods from those lists over your own ideas.
2. When the user's profile lists restrictions, never suggest a food that violates them.
3. Keep explanations short and plain. No medical jargon.

RESPONSE FORMAT:
- Return ONLY a single JSON object matching the response schema exactly (field names and nesting verbatim).
- Do NOT add markdown, preamble, or trailing commentary.`

/*
TextPromptTemplate is the text-query variant. Placeholders, in order:
curated guidance block, user message, serialized profile, report excerpt.
Missing optional inputs are substituted with fixed literals, never omitted.
*/
const TextPromptTemplate = `=== CURATED GUIDANCE (from our knowledge base) ===
%s

=== USER MESSAGE ===
%s

=== USER PROFILE (JSON) ===
%s

=== MEDICAL REPORT EXCERPT ===
%s

INSTRUCTIONS:
1. Answer the user's dietary question for the detected condition.
2. Prefer foods from the curated guidance lists when they are available.
3. Respect every restriction in the profile.
4. Respond with the single JSON object only.`

/*
ImagePromptTemplate is the image-query variant: the identified food label
replaces the matched-food grounding, and the question becomes whether that
food suits the user's situation.
*/
const ImagePromptTemplate = `=== IDENTIFIED FOOD (from the user's photo) ===
%s

=== CURATED GUIDANCE (from our knowledge base) ===
%s

=== USER MESSAGE ===
%s

=== USER PROFILE (JSON) ===
%s

=== MEDICAL REPORT EXCERPT ===
%s

INSTRUCTIONS:
1. Assess whether the identified food is a good choice for this user.
2. Suggest better alternatives from the curated guidance when it is not.
3. Respect every restriction in the profile.
4. Respond with the single JSON object only.`

// Placeholder literals for absent optional inputs. The templates are
// positional, so missing inputs are substituted, never dropped.
const (
	placeholderNoGuidance = "None available"
	placeholderNoProfile  = "null"
	placeholderNoReport   = "Not provided"
	placeholderNoQuestion = "Is this food a good choice for me?"
)

// ComposeTextPrompt renders the text-query prompt. Composition never fails:
// every absent optional input becomes its placeholder literal.
func ComposeTextPrompt(userText string, profile *Profile, reportText string, g grounding.Result) string {
	return fmt.Sprintf(
		TextPromptTemplate,
		formatGuidance(g),
		userText,
		serializeProfile(profile),
		orPlaceholder(reportText, placeholderNoReport),
	)
}

// ComposeImagePrompt renders the image-query prompt around the identified
// food label.
func ComposeImagePrompt(userText string, profile *Profile, reportText string, g grounding.Result, identifiedFood string) string {
	return fmt.Sprintf(
		ImagePromptTemplate,
		identifiedFood,
		formatGuidance(g),
		orPlaceholder(userText, placeholderNoQuestion),
		serializeProfile(profile),
		orPlaceholder(reportText, placeholderNoReport),
	)
}

// formatGuidance renders the matched condition's eat/avoid/timing lists and
// the foods detected in the message, or the no-guidance placeholder when the
// query is ungrounded.
func formatGuidance(g grounding.Result) string {
	if !g.Grounded() {
		return placeholderNoGuidance
	}

	var builder strings.Builder
	if g.ConditionKey != "" {
		fmt.Fprintf(&builder, "Detected condition: %s\n", g.ConditionKey)
	}
	if g.ConditionEntry != nil {
		fmt.Fprintf(&builder, "Foods to eat: %s\n", strings.Join(g.ConditionEntry.Eat, ", "))
		fmt.Fprintf(&builder, "Foods to avoid: %s\n", strings.Join(g.ConditionEntry.Avoid, ", "))
		fmt.Fprintf(&builder, "Timing guidance: %s\n", strings.Join(g.ConditionEntry.Timing, " | "))
	}
	if foods := g.FoodList(); len(foods) > 0 {
		fmt.Fprintf(&builder, "Foods mentioned by the user: %s\n", strings.Join(foods, ", "))
	}
	return strings.TrimRight(builder.String(), "\n")
}

func serializeProfile(profile *Profile) string {
	if profile == nil {
		return placeholderNoProfile
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return placeholderNoProfile
	}
	return string(data)
}

func orPlaceholder(value, placeholder string) string {
	if strings.TrimSpace(value) == "" {
		return placeholder
	}
	return value
}
