package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeTextRemovesNulAndControls(t *testing.T) {
	require.Equal(t, "abcd\n\txy", SanitizeText("ab\x00cd\x01\x02\n\txy"))
}

func TestCleanField(t *testing.T) {
	require.Equal(t, "E.M. Rui Barbosa", CleanField("  E.M.\tRui \x00 Barbosa \n"))
}

func TestSnippet(t *testing.T) {
	require.Equal(t, "abc...", Snippet("abcdef", 3))
	require.Equal(t, "a b", Snippet("a\n\nb", 10))
}
