// Package safety decides which filesystem paths must never be removed.
package safety

import (
	"path/filepath"
	"strings"

	"github.com/zhengda-lu/zerotrace/internal/platform"
)

// Gate holds the hard-blocked system roots and an optional user exclusion
// predicate. A Gate is read-only after construction and safe for concurrent use.
type Gate struct {
	roots   []string
	exclude func(string) bool
}

// New builds a gate from the host folders. exclude may be nil.
func New(f platform.Folders, exclude func(string) bool) *Gate {
	g := &Gate{exclude: exclude}
	for _, r := range []string{f.Windows, f.System32, f.SysWOW64, f.ProgramFiles, f.ProgramFilesX86} {
		if r == "" {
			continue
		}
		if c, ok := canonical(r); ok {
			g.roots = append(g.roots, c)
		}
	}
	return g
}

// canonical returns the absolute, cleaned form of p without trailing separators.
func canonical(p string) (string, bool) {
	if strings.TrimSpace(p) == "" || strings.ContainsRune(p, 0) {
		return "", false
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	abs = filepath.Clean(abs)
	return strings.TrimRight(abs, `/\`), true
}

// IsProtected reports whether path is, after canonicalization, equal to its
// own volume root or one of the system roots. Descendants of a root are not
// protected: C:\Program Files\Vendor is a legitimate target, C:\Program Files
// is not. Empty or unresolvable paths are protected.
func (g *Gate) IsProtected(path string) bool {
	full, ok := canonical(path)
	if !ok {
		return true
	}
	volume := strings.TrimRight(filepath.VolumeName(full)+string(filepath.Separator), `/\`)
	if strings.EqualFold(full, volume) {
		return true
	}
	for _, r := range g.roots {
		if strings.EqualFold(full, r) {
			return true
		}
	}
	return false
}

// IsExcluded reports whether the user asked for path to be left alone.
func (g *Gate) IsExcluded(path string) bool {
	return g.exclude != nil && g.exclude(path)
}

// Blocked is the combined verdict applied to Path targets.
func (g *Gate) Blocked(path string) bool {
	return g.IsProtected(path) || g.IsExcluded(path)
}
