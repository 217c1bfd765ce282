package reputation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/reputation"
)

func keys(badges []reputation.Badge) []string {
	out := make([]string, 0, len(badges))
	for _, b := range badges {
		out = append(out, b.Key)
	}
	return out
}

func TestDefaultCatalog_EcoWarriorAtTwenty(t *testing.T) {
	catalog, err := reputation.DefaultCatalog()
	require.NoError(t, err)

	badge, ok := catalog.Get(reputation.EcoWarrior)
	require.True(t, ok)
	assert.Equal(t, "Eco Warrior", badge.Name)
	assert.Equal(t, 20, badge.Threshold)

	assert.NotContains(t, keys(catalog.Earned(19)), reputation.EcoWarrior)
	assert.Contains(t, keys(catalog.Earned(20)), reputation.EcoWarrior)
	assert.Contains(t, keys(catalog.Earned(21)), reputation.EcoWarrior)
}

func TestParseCatalog_Rejects(t *testing.T) {
	tests := map[string]string{
		"missing key":   "badges:\n  - name: Nameless\n    completed_exchanges: 1\n",
		"duplicate key": "badges:\n  - key: a\n    completed_exchanges: 1\n  - key: a\n    completed_exchanges: 2\n",
		"zero":          "badges:\n  - key: a\n    completed_exchanges: 0\n",
		"not yaml":      "badges: [",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := reputation.ParseCatalog([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseCatalog_SortsByThreshold(t *testing.T) {
	catalog, err := reputation.ParseCatalog([]byte("badges:\n  - key: b\n    completed_exchanges: 10\n  - key: a\n    completed_exchanges: 2\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, keys(catalog.Badges))
	assert.Empty(t, catalog.Earned(1))
}
