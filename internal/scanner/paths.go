package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/zhengda-lu/zerotrace/internal/safety"
	"github.com/zhengda-lu/zerotrace/internal/utils"
)

// DefaultProtectedPublishers are vendors whose per-user data folders are
// shared across many products and are never offered for removal.
var DefaultProtectedPublishers = []string{
	"microsoft", "google", "nvidia", "intel", "amd", "valve", "adobe", "apple", "mozilla",
}

// InstallLocationScanner reports the app's own install folder.
type InstallLocationScanner struct {
	gate *safety.Gate
}

func NewInstallLocationScanner(gate *safety.Gate) *InstallLocationScanner {
	return &InstallLocationScanner{gate: gate}
}

func (s *InstallLocationScanner) Name() string { return "Install Location" }
func (s *InstallLocationScanner) Description() string {
	return "The folder the app registered as its install location"
}

func (s *InstallLocationScanner) Scan(_ context.Context, req Request) ([]Target, error) {
	loc := strings.TrimSpace(req.App.InstallLocation)
	if req.Keys.Len() == 0 || loc == "" || !utils.DirExists(loc) || s.gate.IsProtected(loc) {
		return nil, nil
	}
	return []Target{{Kind: Path, Value: loc, Source: SourceInstallLocation, Confidence: High}}, nil
}

// FolderScanner matches the immediate child directories of a set of roots
// against the candidate keys.
type FolderScanner struct {
	name        string
	description string
	roots       []string
	source      string
	confidence  Confidence

	// userData restricts the scan to full cleanups of apps whose publisher is
	// not in protected.
	userData  bool
	protected map[string]bool
}

// NewStandardFolderScanner covers Program Files, Program Files (x86) and ProgramData.
func NewStandardFolderScanner(roots ...string) *FolderScanner {
	return &FolderScanner{
		name:        "Program Folders",
		description: "Vendor and product folders under Program Files and ProgramData",
		roots:       roots,
		source:      SourceStandardFolder,
		confidence:  High,
	}
}

// NewAppDataFolderScanner covers the per-user Local and Roaming app data roots.
func NewAppDataFolderScanner(protectedPublishers []string, roots ...string) *FolderScanner {
	protected := make(map[string]bool, len(protectedPublishers))
	for _, p := range protectedPublishers {
		protected[NormalizeName(p)] = true
	}
	return &FolderScanner{
		name:        "App Data",
		description: "Per-user data folders (full cleanup only)",
		roots:       roots,
		source:      SourceAppDataFolder,
		confidence:  Medium,
		userData:    true,
		protected:   protected,
	}
}

func (s *FolderScanner) Name() string        { return s.name }
func (s *FolderScanner) Description() string { return s.description }

func (s *FolderScanner) Scan(ctx context.Context, req Request) ([]Target, error) {
	if s.userData {
		if !req.FullCleanup {
			return nil, nil
		}
		if pub := NormalizeName(req.App.Publisher); pub != "" && s.protected[pub] {
			return nil, nil
		}
	}

	var targets []Target
	for _, root := range s.roots {
		if err := ctx.Err(); err != nil {
			return targets, err
		}
		for _, dir := range childDirs(root) {
			if req.Keys.Matches(filepath.Base(dir)) {
				targets = append(targets, Target{Kind: Path, Value: dir, Source: s.source, Confidence: s.confidence})
			}
		}
	}
	return targets, nil
}

// StartMenuScanner matches program-group folders and shortcut files.
type StartMenuScanner struct {
	roots []string
}

// StartMenuPrograms returns the Programs folder below a ProgramData or
// Roaming AppData root.
func StartMenuPrograms(base string) string {
	if base == "" {
		return ""
	}
	return filepath.Join(base, "Microsoft", "Windows", "Start Menu", "Programs")
}

func NewStartMenuScanner(roots ...string) *StartMenuScanner {
	return &StartMenuScanner{roots: roots}
}

func (s *StartMenuScanner) Name() string { return "Start Menu" }
func (s *StartMenuScanner) Description() string {
	return "Program groups and shortcuts in the Start menu"
}

func (s *StartMenuScanner) Scan(ctx context.Context, req Request) ([]Target, error) {
	var targets []Target
	for _, root := range s.roots {
		if err := ctx.Err(); err != nil {
			return targets, err
		}
		if root == "" || !utils.DirExists(root) {
			continue
		}
		for _, dir := range childDirs(root) {
			if req.Keys.Matches(filepath.Base(dir)) {
				targets = append(targets, Target{Kind: Path, Value: dir, Source: SourceStartMenu, Confidence: Medium})
			}
		}
		walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil || d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(p))
			if ext != ".lnk" && ext != ".url" {
				return nil
			}
			if req.Keys.Matches(strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))) {
				targets = append(targets, Target{Kind: Path, Value: p, Source: SourceStartMenu, Confidence: Medium})
			}
			return nil
		})
		if walkErr != nil {
			return targets, walkErr
		}
	}
	return targets, nil
}

// childDirs lists the immediate subdirectories of root; an unreadable root
// yields nothing.
func childDirs(root string) []string {
	if root == "" {
		return nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	return dirs
}
