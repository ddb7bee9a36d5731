package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	cases := map[string]string{
		"7":    "07",
		"07":   "07",
		" 5 ":  "05",
		"0":    "00",
		"99":   "99",
		"007":  "07",
		"+3":   "03",
	}
	for in, want := range cases {
		got, err := Canonicalize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "  ", "100", "-1", "abc", "1.5", "7a"} {
		_, err := Canonicalize(bad)
		assert.Error(t, err, bad)
	}
}

func TestCanonicalizeAll_DedupesAndCollectsInvalid(t *testing.T) {
	valid, invalid := CanonicalizeAll([]string{"5", "17", "05", "x", "120"})
	assert.Equal(t, []string{"05", "17"}, valid)
	assert.Equal(t, []string{"x", "120"}, invalid)
}

func TestCanonicalizeAll_Empty(t *testing.T) {
	valid, invalid := CanonicalizeAll(nil)
	assert.Empty(t, valid)
	assert.Empty(t, invalid)
}

func TestSplitNumbers(t *testing.T) {
	assert.Equal(t, []string{"5", "17", "3"}, SplitNumbers("5, 17,3"))
	assert.Equal(t, []string{"1"}, SplitNumbers(" ,1, "))
	assert.Nil(t, SplitNumbers("   "))
}

func TestAllNumbers(t *testing.T) {
	all := AllNumbers()
	require.Len(t, all, 100)
	assert.Equal(t, "00", all[0])
	assert.Equal(t, "42", all[42])
	assert.Equal(t, "99", all[99])
}

func TestFlattenNumbers(t *testing.T) {
	assert.Equal(t, []string{"5", "17", "3", "x"}, FlattenNumbers([]string{"5,17", " 3 ", "x", ""}))
	assert.Empty(t, FlattenNumbers(nil))
}
