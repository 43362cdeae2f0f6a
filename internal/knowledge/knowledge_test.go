package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSource = `{
  "conditions": {
    "Migraine": {
      "eat": ["spinach", "almonds"],
      "avoid": ["dark chocolate", "aged cheese"],
      "timing": ["eat regular meals"]
    },
    "acidity": {
      "eat": ["oatmeal", "banana"],
      "avoid": ["coffee"],
      "timing": ["avoid late dinners"]
    }
  },
  "foods": {
    "Dark Chocolate": {"category": "sweet", "notes": "contains tyramine"},
    "dark chocolate": {"category": "sweet", "notes": "duplicate casing"},
    "brown rice": {"category": "grain", "notes": ""},
    "  ": {"category": "", "notes": "blank name is dropped"}
  }
}`

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "foods.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidSource(t *testing.T) {
	kb, err := Load(writeSource(t, sampleSource))
	require.NoError(t, err)
	assert.True(t, kb.Loaded())

	entry, ok := kb.Lookup("migraine")
	require.True(t, ok)
	assert.Equal(t, []string{"spinach", "almonds"}, entry.Eat)
	assert.Equal(t, []string{"dark chocolate", "aged cheese"}, entry.Avoid)

	// Lookup is case-insensitive on the condition key.
	_, ok = kb.Lookup("MIGRAINE")
	assert.True(t, ok)

	_, ok = kb.Lookup("gout")
	assert.False(t, ok)
}

func TestLoadNormalizesCatalog(t *testing.T) {
	kb, err := Load(writeSource(t, sampleSource))
	require.NoError(t, err)

	names := kb.AllFoodNames()
	// "Dark Chocolate" and "dark chocolate" collapse to one entry and the
	// blank name is dropped.
	assert.Len(t, names, 2)
	assert.Contains(t, names, "dark chocolate")
	assert.Contains(t, names, "brown rice")
}

func TestLoadMissingFile(t *testing.T) {
	kb, err := Load(filepath.Join(t.TempDir(), "nope.json"))

	var loadErr *DataLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.NotNil(t, loadErr.Err)

	// The base is still usable despite the failure.
	require.NotNil(t, kb)
	assert.False(t, kb.Loaded())
	assert.Empty(t, kb.AllFoodNames())
	_, ok := kb.Lookup("migraine")
	assert.False(t, ok)
}

func TestLoadMalformedJSON(t *testing.T) {
	kb, err := Load(writeSource(t, `{"conditions": [this is not json`))

	var loadErr *DataLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.False(t, kb.Loaded())
}
