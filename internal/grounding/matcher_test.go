package grounding

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutribot/internal/knowledge"
)

const testSource = `{
  "conditions": {
    "migraine": {
      "eat": ["spinach", "almonds"],
      "avoid": ["dark chocolate", "aged cheese"],
      "timing": ["eat regular meals"]
    },
    "type2_diabetes": {
      "eat": ["brown rice", "leafy greens"],
      "avoid": ["white bread", "sugary drinks"],
      "timing": ["smaller frequent meals"]
    },
    "hypertension": {
      "eat": ["banana", "oats"],
      "avoid": ["pickles"],
      "timing": ["limit evening salt"]
    }
  },
  "foods": {
    "dark chocolate": {"category": "sweet", "notes": ""},
    "brown rice": {"category": "grain", "notes": ""},
    "banana": {"category": "fruit", "notes": ""},
    "rice": {"category": "grain", "notes": ""}
  }
}`

func testKB(t *testing.T) *knowledge.Base {
	t.Helper()
	path := filepath.Join(t.TempDir(), "foods.json")
	require.NoError(t, os.WriteFile(path, []byte(testSource), 0o644))
	kb, err := knowledge.Load(path)
	require.NoError(t, err)
	return kb
}

func TestMatchConditionKeywords(t *testing.T) {
	kb := testKB(t)

	tests := []struct {
		name          string
		message       string
		wantCondition string
	}{
		{"direct keyword", "I get a migraine every week", "migraine"},
		{"synonym keyword", "terrible headache after lunch", "migraine"},
		{"case insensitive", "My HEADACHE is back", "migraine"},
		{"multi word keyword", "my high blood pressure worries me", "hypertension"},
		{"diabetes phrasing", "what should I eat for blood sugar control", "type2_diabetes"},
		{"no keyword", "what should I have for breakfast", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.message, kb)
			assert.Equal(t, tt.wantCondition, got.ConditionKey)
			if tt.wantCondition != "" {
				require.NotNil(t, got.ConditionEntry)
			} else {
				assert.Nil(t, got.ConditionEntry)
			}
		})
	}
}

func TestMatchFirstConditionWins(t *testing.T) {
	kb := testKB(t)

	// Mentions both migraine and diabetes keywords; table order decides.
	got := Match("my migraine gets worse with my diabetes", kb)
	assert.Equal(t, "migraine", got.ConditionKey)
}

func TestMatchFoods(t *testing.T) {
	kb := testKB(t)

	got := Match("Can I eat dark chocolate if I have a migraine?", kb)
	assert.Equal(t, "migraine", got.ConditionKey)
	assert.Contains(t, got.MatchedFoods, "dark chocolate")

	// "rice" is a substring of "brown rice"; a message with "brown rice"
	// matches both catalog names but each at most once.
	got = Match("is brown rice okay with brown rice noodles", kb)
	assert.Len(t, got.MatchedFoods, 2)
	assert.Contains(t, got.MatchedFoods, "brown rice")
	assert.Contains(t, got.MatchedFoods, "rice")
}

func TestMatchDeterministic(t *testing.T) {
	kb := testKB(t)
	msg := "dark chocolate for my headache and a banana"

	first := Match(msg, kb)
	for i := 0; i < 5; i++ {
		again := Match(msg, kb)
		assert.Equal(t, first.ConditionKey, again.ConditionKey)
		assert.Equal(t, first.MatchedFoods, again.MatchedFoods)
	}
}

func TestGrounded(t *testing.T) {
	kb := testKB(t)

	assert.True(t, Match("headache", kb).Grounded())
	assert.True(t, Match("I love banana smoothies", kb).Grounded())
	assert.False(t, Match("tell me a joke", kb).Grounded())
}

func TestFoodListCapitalization(t *testing.T) {
	kb := testKB(t)

	got := Match("banana please", kb)
	assert.Equal(t, []string{"Banana"}, got.FoodList())
}

func TestMatchEmptyKnowledgeBase(t *testing.T) {
	kb, err := knowledge.Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	// Matching still works against an empty base; condition keywords are
	// recognized even when the base carries no guidance for them.
	got := Match("I have a migraine", kb)
	assert.Equal(t, "migraine", got.ConditionKey)
	assert.Nil(t, got.ConditionEntry)
	assert.Empty(t, got.MatchedFoods)
}
