package safety

import (
	"path/filepath"
	"testing"

	"github.com/zhengda-lu/zerotrace/internal/platform"
)

func testFolders(root string) platform.Folders {
	win := filepath.Join(root, "Windows")
	return platform.Folders{
		Windows:         win,
		System32:        filepath.Join(win, "System32"),
		SysWOW64:        filepath.Join(win, "SysWOW64"),
		ProgramFiles:    filepath.Join(root, "Program Files"),
		ProgramFilesX86: filepath.Join(root, "Program Files (x86)"),
	}
}

func TestIsProtected(t *testing.T) {
	root := t.TempDir()
	g := New(testFolders(root), nil)

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"empty", "", true},
		{"blank", "   ", true},
		{"nul byte", "a\x00b", true},
		{"volume root", string(filepath.Separator), true},
		{"windows dir", filepath.Join(root, "Windows"), true},
		{"system32 trailing separator", filepath.Join(root, "Windows", "System32") + string(filepath.Separator), true},
		{"syswow64", filepath.Join(root, "Windows", "SysWOW64"), true},
		{"program files", filepath.Join(root, "Program Files"), true},
		{"program files x86 with dot segment", filepath.Join(root, "Program Files (x86)", "Acme", ".."), true},
		{"program files different case", filepath.Join(root, "PROGRAM FILES"), true},
		{"vendor under program files", filepath.Join(root, "Program Files", "Acme"), false},
		{"file under system32", filepath.Join(root, "Windows", "System32", "drivers"), false},
		{"unrelated", filepath.Join(root, "data"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.IsProtected(tt.path); got != tt.want {
				t.Errorf("IsProtected(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsProtected_UnknownFolders(t *testing.T) {
	g := New(platform.Folders{}, nil)
	if g.IsProtected(filepath.Join(t.TempDir(), "Acme")) {
		t.Error("expected an ordinary directory to be unprotected when no folders are known")
	}
	if !g.IsProtected(string(filepath.Separator)) {
		t.Error("expected the volume root to stay protected")
	}
}

func TestBlocked_Exclude(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "Keep")
	g := New(testFolders(root), func(p string) bool { return p == keep })

	if !g.IsExcluded(keep) || !g.Blocked(keep) {
		t.Error("expected excluded path to be blocked")
	}
	if g.IsProtected(keep) {
		t.Error("excluded path should not be reported as protected")
	}
	if g.Blocked(filepath.Join(root, "Other")) {
		t.Error("unrelated path should not be blocked")
	}
	if !g.Blocked(filepath.Join(root, "Windows")) {
		t.Error("protected root should be blocked")
	}
}
