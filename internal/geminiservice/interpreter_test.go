package geminiservice

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPayload = `{
  "condition_detected": "migraine",
  "foods_to_eat": {
    "main_suggestions": ["spinach", "almonds"],
    "alternatives": ["cashews"]
  },
  "foods_to_avoid": ["dark chocolate"],
  "timing_and_tips": ["eat regular meals"],
  "explanation": "Tyramine-rich foods are common migraine triggers.",
  "disclaimer": "General dietary guidance, not medical advice."
}`

func TestInterpretDirectObject(t *testing.T) {
	env := Interpret(validPayload, true)

	require.NotNil(t, env.Structured)
	assert.Equal(t, "migraine", env.Structured.ConditionDetected)
	assert.Equal(t, []string{"spinach", "almonds"}, env.Structured.FoodsToEat.MainSuggestions)
	assert.Equal(t, "Here is an analysis regarding 'migraine'.", env.Reply)
	assert.True(t, env.Grounded)
}

func TestInterpretTaggedBlock(t *testing.T) {
	raw := "Sure, here is my advice.\n<json>\n" + validPayload + "\n</json>\nHope that helps!"

	env := Interpret(raw, false)

	require.NotNil(t, env.Structured)
	assert.Equal(t, "migraine", env.Structured.ConditionDetected)
	assert.False(t, env.Grounded)
}

func TestInterpretFencedBlock(t *testing.T) {
	raw := "Here you go:\n```json\n" + validPayload + "\n```"

	env := Interpret(raw, true)

	require.NotNil(t, env.Structured)
	assert.Equal(t, []string{"dark chocolate"}, env.Structured.FoodsToAvoid)
}

func TestInterpretTagPreferredOverFence(t *testing.T) {
	tagged := `{"condition_detected":"acidity","foods_to_eat":{"main_suggestions":["oatmeal"],"alternatives":[]},"foods_to_avoid":["coffee"],"timing_and_tips":[],"explanation":"x","disclaimer":"y"}`
	raw := "<json>" + tagged + "</json>\n```json\n" + validPayload + "\n```"

	env := Interpret(raw, true)

	require.NotNil(t, env.Structured)
	assert.Equal(t, "acidity", env.Structured.ConditionDetected)
}

func TestInterpretDegradedPlainText(t *testing.T) {
	env := Interpret("  I am not JSON at all.  ", true)

	assert.Nil(t, env.Structured)
	assert.Equal(t, "I am not JSON at all.", env.Reply)
	assert.True(t, env.Grounded)
}

func TestInterpretMissingKeysFallsThrough(t *testing.T) {
	// Valid JSON but missing most required fields.
	env := Interpret(`{"condition_detected": "migraine"}`, false)

	assert.Nil(t, env.Structured)
	assert.Equal(t, `{"condition_detected": "migraine"}`, env.Reply)
}

func TestInterpretMalformedBlockFallsThrough(t *testing.T) {
	env := Interpret("<json>{not valid json</json>", false)

	assert.Nil(t, env.Structured)
}

func TestInterpretBackfillsDisclaimer(t *testing.T) {
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(validPayload), &doc))
	doc["disclaimer"] = "   "
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	env := Interpret(string(raw), true)

	require.NotNil(t, env.Structured)
	assert.Equal(t, DefaultDisclaimer, env.Structured.Disclaimer)
}

func TestInterpretGenericSummaryWithoutCondition(t *testing.T) {
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(validPayload), &doc))
	doc["condition_detected"] = ""
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	env := Interpret(string(raw), false)

	require.NotNil(t, env.Structured)
	assert.Equal(t, "Here is a dietary analysis based on your question.", env.Reply)
}

func TestStructuredRoundTrip(t *testing.T) {
	env := Interpret(validPayload, true)
	require.NotNil(t, env.Structured)

	encoded, err := json.Marshal(env.Structured)
	require.NoError(t, err)

	again := Interpret(string(encoded), true)
	require.NotNil(t, again.Structured)
	assert.Equal(t, env.Structured, again.Structured)
}
