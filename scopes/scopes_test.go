package scopes_test

import (
	"testing"

	"github.com/C010UR/fangi-prototype-sub000/scopes"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	set, err := scopes.Parse([]string{"/docs:rw", "/media/photos:r"})
	require.NoError(t, err)
	require.Equal(t, scopes.Set{
		"/docs":         scopes.ModeReadWrite,
		"/media/photos": scopes.ModeRead,
	}, set)
}

func TestParseLastDuplicateWins(t *testing.T) {
	set, err := scopes.Parse([]string{"/docs:rw", "/docs:r"})
	require.NoError(t, err)
	require.Equal(t, scopes.Set{"/docs": scopes.ModeRead}, set)
}

func TestParseNormalizesPaths(t *testing.T) {
	set, err := scopes.Parse([]string{"docs/:rw", "/a//b/../c:r"})
	require.NoError(t, err)
	require.Equal(t, scopes.Set{
		"/docs": scopes.ModeReadWrite,
		"/a/c":  scopes.ModeRead,
	}, set)
}

func TestParseRejectsMalformedEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry string
	}{
		{"missing separator", "/docs"},
		{"empty path", ":rw"},
		{"unknown mode", "/docs:write"},
		{"empty mode", "/docs:"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := scopes.Parse([]string{tc.entry})
			require.ErrorIs(t, err, scopes.ErrMalformedScope)
		})
	}
}

func TestResolveDeepestAncestorWins(t *testing.T) {
	set, err := scopes.Parse([]string{"/:rw", "/a/b:r"})
	require.NoError(t, err)

	tests := []struct {
		path string
		mode scopes.Mode
	}{
		{"/a/b/c", scopes.ModeRead},      // deepest match overrides root
		{"/a/b", scopes.ModeRead},        // exact match
		{"/a/x", scopes.ModeReadWrite},   // falls back to root grant
		{"/", scopes.ModeReadWrite},      // root itself
		{"/other", scopes.ModeReadWrite}, // inherits root
	}

	for _, tc := range tests {
		mode, ok := set.Resolve(tc.path)
		require.True(t, ok, tc.path)
		require.Equal(t, tc.mode, mode, tc.path)
	}
}

func TestResolveNoMatch(t *testing.T) {
	set, err := scopes.Parse([]string{"/a/b:rw"})
	require.NoError(t, err)

	_, ok := set.Resolve("/c")
	require.False(t, ok)
	_, ok = set.Resolve("/a")
	require.False(t, ok)
}

func TestCanReadCanWrite(t *testing.T) {
	set, err := scopes.Parse([]string{"/docs:r", "/projects:rw"})
	require.NoError(t, err)

	require.True(t, set.CanRead("/docs/report.txt"))
	require.False(t, set.CanWrite("/docs/report.txt"))
	require.True(t, set.CanRead("/projects/x"))
	require.True(t, set.CanWrite("/projects/x"))
	require.False(t, set.CanRead("/private"))
	require.False(t, set.CanWrite("/private"))
}

func TestFilterVisibleWithReadableParent(t *testing.T) {
	set, err := scopes.Parse([]string{"/a:r"})
	require.NoError(t, err)

	visible, err := set.FilterVisible("/a", []string{"b", "c", "d"})
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c", "d"}, visible)
}

func TestFilterVisibleAncestorChainOnly(t *testing.T) {
	set, err := scopes.Parse([]string{"/a/b:r"})
	require.NoError(t, err)

	// No grant on /a: only the entry leading down to the granted sub-tree
	// is visible, never its siblings.
	visible, err := set.FilterVisible("/a", []string{"b", "c"})
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, visible)

	// One level up the chain behaves the same way.
	visible, err = set.FilterVisible("/", []string{"a", "z"})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, visible)
}

func TestFilterVisibleDeepGrant(t *testing.T) {
	set, err := scopes.Parse([]string{"/a/b/c/d:rw"})
	require.NoError(t, err)

	visible, err := set.FilterVisible("/a/b", []string{"c", "x"})
	require.NoError(t, err)
	require.Equal(t, []string{"c"}, visible)
}

func TestFilterVisibleNoAccessSentinel(t *testing.T) {
	empty := scopes.Set{}

	_, err := empty.FilterVisible("/a", []string{"b"})
	require.ErrorIs(t, err, scopes.ErrNoAccess)
}

func TestFilterVisibleEmptyButAccessibleListing(t *testing.T) {
	set, err := scopes.Parse([]string{"/a/b:r"})
	require.NoError(t, err)

	// Caller holds a read grant somewhere, so an unrelated directory yields
	// an empty listing, not the no-access sentinel.
	visible, err := set.FilterVisible("/z", []string{"q"})
	require.NoError(t, err)
	require.Empty(t, visible)
}

func TestStringsRoundTrip(t *testing.T) {
	set, err := scopes.Parse([]string{"/docs:rw"})
	require.NoError(t, err)

	reparsed, err := scopes.Parse(set.Strings())
	require.NoError(t, err)
	require.Equal(t, set, reparsed)
}
