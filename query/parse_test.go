package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSimpleWithPredicate(t *testing.T) {
	q, err := ParseSimple("SELECT cpu FROM host=localhost")
	require.NoError(t, err)
	require.Len(t, q.Select, 1)
	require.Equal(t, "cpu", q.Select[0].Name)
	require.Equal(t, EQ{Key: "host", Value: "localhost"}, q.Where)
	require.EqualValues(t, -14400, q.FromSeconds)
}

func TestParseSimpleWithoutPredicate(t *testing.T) {
	q, err := ParseSimple("SELECT cpu")
	require.NoError(t, err)
	require.Nil(t, q.Where)
}

func TestParseSimpleRejectsMalformed(t *testing.T) {
	_, err := ParseSimple("DELETE cpu")
	require.Error(t, err)
}
