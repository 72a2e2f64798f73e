package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateTags(t *testing.T) {
	valid := []string{
		"a=b",
		"a=b,c=d",
		"abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPWRSTUVWXYZ0123456789_-.:%@=test",
		"value=?!?",
	}
	for _, tags := range valid {
		require.NoError(t, ValidateTags(tags), tags)
	}

	invalid := []string{
		"",
		"just-a-key",
		"=b",
		",,,",
		"-a=b",
		"a = b",
	}
	for _, tags := range invalid {
		require.Error(t, ValidateTags(tags), tags)
	}
}

func TestCanonicalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"a=b", "a=b"},
		{"a=value", "a=value"},
		{"key=value,other=value", "key=value,other=value"},
		{"c=d,a=b", "a=b,c=d"},
		{"c=dd,a=bb", "a=bb,c=dd"},
		{"beta=22,alpha=1", "alpha=1,beta=22"},
		{"beta=2,alpha=1", "alpha=1,beta=2"},
		{"a=one,c=three,b=two", "a=one,b=two,c=three"},
		{"zebra=Z1,yak=Y2,xenops=X3", "xenops=X3,yak=Y2,zebra=Z1"},
	}
	for _, c := range cases {
		got, err := Canonicalize(c.in)
		require.NoError(t, err)
		require.Equal(t, c.want, got)
	}
}
