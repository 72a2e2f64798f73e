package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertAndLookup(t *testing.T) {
	c := New()
	created, err := c.Insert("cpu|env=prod,host=web1", 1)
	require.NoError(t, err)
	require.True(t, created)

	id, ok := c.Lookup("cpu|env=prod,host=web1")
	require.True(t, ok)
	require.EqualValues(t, 1, id)

	created, err = c.Insert("cpu|env=prod,host=web1", 1)
	require.NoError(t, err)
	require.False(t, created)
}

func TestByMetricAndByTag(t *testing.T) {
	c := New()
	_, err := c.Insert("cpu|env=prod,host=web1", 1)
	require.NoError(t, err)
	_, err = c.Insert("cpu|env=staging,host=web2", 2)
	require.NoError(t, err)
	_, err = c.Insert("mem|env=prod,host=web1", 3)
	require.NoError(t, err)

	byMetric := c.ByMetric("cpu")
	require.Len(t, byMetric, 2)
	require.True(t, byMetric[1])
	require.True(t, byMetric[2])

	byTagExist := c.ByTag("env")
	require.Len(t, byTagExist, 3)

	byTagEq := c.ByTag("env=prod")
	require.Len(t, byTagEq, 2)
	require.True(t, byTagEq[1])
	require.True(t, byTagEq[3])
}

func TestRebuildReconstructsReverseIndexes(t *testing.T) {
	c := New()
	_, err := c.Insert("cpu|env=prod,host=web1", 1)
	require.NoError(t, err)

	// simulate a mount: only the primary survives persistence.
	fresh := New()
	for _, s := range c.Series() {
		id, _ := c.Lookup(s)
		fresh.primary[s] = id
		fresh.byOrder = append(fresh.byOrder, s)
	}
	require.NoError(t, fresh.Rebuild())

	require.Len(t, fresh.ByMetric("cpu"), 1)
	require.Len(t, fresh.ByTag("env=prod"), 1)
}
