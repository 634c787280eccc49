package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllListsEveryRole(t *testing.T) {
	roles := All()
	require.Len(t, roles, 7)

	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name
		assert.NotEmpty(t, r.Instructions, "role %s has no instructions", r.Name)
		assert.NotEmpty(t, r.ModelTier, "role %s has no model tier", r.Name)
	}
	assert.Equal(t, []string{
		"triage", "clarifier", "enricher", "planner", "searcher", "writer", "illustrator",
	}, names)
}
