package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	require.Equal(t, NormalizeKey("Joe's Diner"), NormalizeKey("joe's  diner"))
	require.Equal(t, "joe'sdiner", NormalizeKey("  Joe's\tDiner\n"))
	require.Equal(t, "", NormalizeKey("   "))
}

func TestCollapseWhitespace(t *testing.T) {
	require.Equal(t, "Green Leaf Cafe", CollapseWhitespace("  Green \n Leaf\tCafe "))
	require.Equal(t, "", CollapseWhitespace(""))
}

func TestSlugify(t *testing.T) {
	require.Equal(t, "joe-s-diner", Slugify("Joe's Diner"))
	require.Equal(t, "green-leaf-cafe", Slugify("  Green Leaf Cafe!  "))
}
