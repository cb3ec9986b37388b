// Package scopes implements the path-scoped permission model. A scope grants
// a mode on a filesystem path and everything beneath it; a deeper grant
// overrides a shallower one.
package scopes

import (
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Mode is the access level carried by a scope.
type Mode string

const (
	ModeRead      Mode = "r"
	ModeReadWrite Mode = "rw"
)

var (
	ErrMalformedScope = errors.New("malformed scope")
	ErrNoAccess       = errors.New("no access")
)

// Scope is a single granted capability on a path.
type Scope struct {
	Path string
	Mode Mode
}

// String serializes the scope in its wire format, "<path>:<mode>".
func (s Scope) String() string {
	return s.Path + ":" + string(s.Mode)
}

// Set maps a normalized absolute path to the mode granted on it. No duplicate
// paths exist within one set; the last parsed entry for a path wins.
type Set map[string]Mode

// Parse builds a Set from wire-format scope strings. Entries missing the
// separator, with an empty path, or with an unrecognized mode are rejected.
func Parse(entries []string) (Set, error) {
	set := make(Set, len(entries))
	for _, entry := range entries {
		idx := strings.Index(entry, ":")
		if idx < 0 {
			return nil, errors.Wrapf(ErrMalformedScope, "[Parse] missing separator in %q", entry)
		}

		scopePath, mode := entry[:idx], Mode(entry[idx+1:])
		if scopePath == "" {
			return nil, errors.Wrapf(ErrMalformedScope, "[Parse] empty path in %q", entry)
		}
		if mode != ModeRead && mode != ModeReadWrite {
			return nil, errors.Wrapf(ErrMalformedScope, "[Parse] unknown mode in %q", entry)
		}

		set[NormalizePath(scopePath)] = mode
	}
	return set, nil
}

// Strings serializes the set back to wire format, sorted by path.
func (s Set) Strings() []string {
	out := make([]string, 0, len(s))
	for p, m := range s {
		out = append(out, Scope{Path: p, Mode: m}.String())
	}
	sort.Strings(out)
	return out
}

// Resolve computes the effective mode for a path. The ancestor chain of the
// path is walked from root to leaf and every matching grant overwrites the
// running result, so the deepest matching ancestor wins. The second return
// is false when no ancestor is granted at all.
func (s Set) Resolve(requestedPath string) (Mode, bool) {
	var (
		mode  Mode
		found bool
	)
	for _, ancestor := range ancestorChain(NormalizePath(requestedPath)) {
		if m, ok := s[ancestor]; ok {
			mode = m
			found = true
		}
	}
	return mode, found
}

// CanRead reports whether the set grants at least read on the path.
func (s Set) CanRead(requestedPath string) bool {
	_, ok := s.Resolve(requestedPath)
	return ok
}

// CanWrite reports whether the set grants read-write on the path.
func (s Set) CanWrite(requestedPath string) bool {
	mode, ok := s.Resolve(requestedPath)
	return ok && mode == ModeReadWrite
}

// FilterVisible filters a directory listing down to what the caller may see.
// A caller with read permission on the parent sees every candidate. Without
// it, a candidate stays visible only when it sits on the ancestor chain of
// some granted path: a see-through directory used purely to navigate down to
// a permitted sub-tree, never for content access. ErrNoAccess distinguishes
// a caller with no read grant anywhere from an empty but accessible listing.
func (s Set) FilterVisible(parentPath string, candidates []string) ([]string, error) {
	if s.CanRead(parentPath) {
		return candidates, nil
	}

	if len(s) == 0 {
		return nil, errors.Wrapf(ErrNoAccess, "[FilterVisible] %s", parentPath)
	}

	visible := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		full := JoinPath(parentPath, candidate)
		if s.CanRead(full) {
			visible = append(visible, candidate)
			continue
		}
		for granted := range s {
			if strings.HasPrefix(granted, full+"/") {
				visible = append(visible, candidate)
				break
			}
		}
	}
	return visible, nil
}

// NormalizePath cleans a path and forces it absolute, so that lookups and
// grants agree on a canonical form.
func NormalizePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// JoinPath joins a parent path and an entry name into a normalized path.
func JoinPath(parent, name string) string {
	return NormalizePath(path.Join(NormalizePath(parent), name))
}

// ancestorChain returns the path's ancestors from root to leaf, the path
// itself included: /a/b/c yields ["/", "/a", "/a/b", "/a/b/c"].
func ancestorChain(p string) []string {
	chain := []string{"/"}
	if p == "/" {
		return chain
	}

	var builder strings.Builder
	for _, segment := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		builder.WriteString("/")
		builder.WriteString(segment)
		chain = append(chain, builder.String())
	}
	return chain
}
