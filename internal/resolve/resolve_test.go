package resolve

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"

	"github.com/zhengda-lu/zerotrace/internal/platform"
	"github.com/zhengda-lu/zerotrace/internal/platform/fake"
	"github.com/zhengda-lu/zerotrace/internal/safety"
	"github.com/zhengda-lu/zerotrace/internal/scanner"
)

func setup(t *testing.T) (*fake.Platform, *Resolver, platform.Folders) {
	t.Helper()
	root := t.TempDir()
	f := platform.Folders{
		Windows:      filepath.Join(root, "Windows"),
		System32:     filepath.Join(root, "Windows", "System32"),
		ProgramFiles: filepath.Join(root, "Program Files"),
		ProgramData:  filepath.Join(root, "ProgramData"),
	}
	os.MkdirAll(f.System32, 0o755)
	os.MkdirAll(f.ProgramFiles, 0o755)
	p := fake.New(f)
	keep := filepath.Join(root, "Keep")
	gate := safety.New(f, func(path string) bool { return path == keep })
	return p, New(p, gate, logr.Discard()), f
}

func TestResolve_Paths(t *testing.T) {
	_, r, f := setup(t)

	app := filepath.Join(f.ProgramFiles, "FooBar")
	os.MkdirAll(filepath.Join(app, "bin"), 0o755)
	os.WriteFile(filepath.Join(app, "a.dat"), make([]byte, 1024), 0o644)
	os.WriteFile(filepath.Join(app, "bin", "b.dat"), make([]byte, 1024), 0o644)
	keep := filepath.Join(filepath.Dir(f.Windows), "Keep")
	os.MkdirAll(keep, 0o755)

	in := []scanner.Target{
		{Kind: scanner.Path, Value: app, Confidence: scanner.High},
		{Kind: scanner.Path, Value: filepath.Join(f.ProgramFiles, "Gone")},
		{Kind: scanner.Path, Value: f.ProgramFiles, Confidence: scanner.High},
		{Kind: scanner.Path, Value: f.System32},
		{Kind: scanner.Path, Value: keep},
	}
	out := r.Resolve(context.Background(), in)
	if len(out) != len(in) {
		t.Fatalf("expected %d targets, got %d", len(in), len(out))
	}

	if !out[0].Exists || out[0].Blocked || out[0].Meta != "Files:2 Size:2.0 KiB" {
		t.Errorf("app folder = %+v", out[0])
	}
	if out[1].Exists || out[1].Meta != MetaMissing {
		t.Errorf("missing folder = %+v", out[1])
	}
	if !out[2].Exists || !out[2].Blocked {
		t.Errorf("protected root must be blocked: %+v", out[2])
	}
	if !out[3].Blocked {
		t.Errorf("system32 must be blocked: %+v", out[3])
	}
	if !out[4].Blocked {
		t.Errorf("excluded path must be blocked: %+v", out[4])
	}
	if in[0].Resolved() {
		t.Error("Resolve must not modify its input")
	}
}

func TestResolve_SingleFile(t *testing.T) {
	_, r, f := setup(t)
	lnk := filepath.Join(f.ProgramData, "FooBar.lnk")
	os.MkdirAll(f.ProgramData, 0o755)
	os.WriteFile(lnk, make([]byte, 10), 0o644)

	got := r.One(context.Background(), scanner.Target{Kind: scanner.Path, Value: lnk})
	if !got.Exists || got.Meta != "Files:1 Size:10 B" {
		t.Errorf("file target = %+v", got)
	}
}

func TestResolve_NonPathKinds(t *testing.T) {
	p, r, _ := setup(t)
	p.AddKey(platform.LocalMachine, `SOFTWARE\Acme`)
	p.AddService("FooBarSvc", "FooBar", platform.StatusRunning, platform.StartAutomatic)
	p.AddTask(`\Acme\FooBarUpdater`)
	p.AddFirewallRule("FooBar")

	tests := []struct {
		target scanner.Target
		exists bool
	}{
		{scanner.Target{Kind: scanner.RegistryKey, Value: `HKLM:\SOFTWARE\Acme`}, true},
		{scanner.Target{Kind: scanner.RegistryKey, Value: `HKCU:\SOFTWARE\Acme`}, false},
		{scanner.Target{Kind: scanner.RegistryKey, Value: `not a key`}, false},
		{scanner.Target{Kind: scanner.Service, Value: "foobarsvc"}, true},
		{scanner.Target{Kind: scanner.Service, Value: "Nope"}, false},
		{scanner.Target{Kind: scanner.ScheduledTask, Value: `\Acme\FooBarUpdater`}, true},
		{scanner.Target{Kind: scanner.ScheduledTask, Value: `\Acme\Other`}, false},
		{scanner.Target{Kind: scanner.FirewallRule, Value: "FooBar"}, true},
		{scanner.Target{Kind: scanner.FirewallRule, Value: "Other"}, false},
		{scanner.Target{Kind: scanner.Kind(99), Value: "x"}, false},
	}
	for _, tt := range tests {
		got := r.One(context.Background(), tt.target)
		if got.Exists != tt.exists {
			t.Errorf("%s %q: Exists = %v, want %v", tt.target.Kind, tt.target.Value, got.Exists, tt.exists)
		}
		want := MetaMissing
		if tt.exists {
			want = MetaExists
		}
		if got.Meta != want || got.Blocked {
			t.Errorf("%s %q: Meta = %q Blocked = %v", tt.target.Kind, tt.target.Value, got.Meta, got.Blocked)
		}
	}
}

func TestResolve_Empty(t *testing.T) {
	_, r, _ := setup(t)
	if out := r.Resolve(context.Background(), nil); len(out) != 0 {
		t.Errorf("expected empty result, got %+v", out)
	}
}
