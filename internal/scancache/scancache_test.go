package scancache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zhengda-lu/zerotrace/internal/catalog"
	"github.com/zhengda-lu/zerotrace/internal/scanner"
)

var fooBar = catalog.App{DisplayName: "FooBar", Publisher: "Foo Inc"}

func TestFromTargets(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	targets := []scanner.Target{
		{Kind: scanner.Path, Value: `C:\Program Files\FooBar`, Exists: true},
		{Kind: scanner.Path, Value: `C:\ProgramData\FooBar`, Exists: false},
		{Kind: scanner.RegistryKey, Value: `HKCU\Software\FooBar`, Exists: true},
		{Kind: scanner.Service, Value: "FooBarSvc", Exists: true},
		{Kind: scanner.Path, Value: `C:\Users\me\AppData\Roaming\FooBar`, Exists: true},
	}

	snap := FromTargets(fooBar, targets, at)
	if snap.Total != 4 {
		t.Errorf("Total = %d, want 4", snap.Total)
	}
	want := []KindSnapshot{{"Path", 2}, {"RegistryKey", 1}, {"Service", 1}}
	if len(snap.Kinds) != len(want) {
		t.Fatalf("Kinds = %v, want %v", snap.Kinds, want)
	}
	for i := range want {
		if snap.Kinds[i] != want[i] {
			t.Errorf("Kinds[%d] = %v, want %v", i, snap.Kinds[i], want[i])
		}
	}
	if snap.App != "FooBar" || !snap.Timestamp.Equal(at) {
		t.Errorf("unexpected header: %+v", snap)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "last-scan.json")
	ts := time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC)
	c := Cache{"foobar": {Timestamp: ts, App: "FooBar", Total: 3, Kinds: []KindSnapshot{{"Path", 3}}}}

	if err := Save(path, c); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got, ok := loaded["foobar"]
	if !ok {
		t.Fatal("expected foobar entry")
	}
	if !got.Timestamp.Equal(ts) || got.Total != 3 || len(got.Kinds) != 1 {
		t.Errorf("loaded = %+v", got)
	}
}

func TestLoad_NotExist(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("missing file should be an empty cache, got %v", err)
	}
	if len(c) != 0 {
		t.Errorf("expected empty cache, got %v", c)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last-scan.json")
	os.WriteFile(path, []byte("{not json"), 0o644)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for corrupt file")
	}
}

func TestExchange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last-scan.json")
	first := Snapshot{App: "FooBar", Total: 2, Kinds: []KindSnapshot{{"Path", 2}}}
	second := Snapshot{App: "FooBar", Total: 1, Kinds: []KindSnapshot{{"Path", 1}}}

	prev, err := Exchange(path, Key(fooBar), first)
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if prev != nil {
		t.Fatalf("first exchange should have no previous snapshot, got %+v", prev)
	}

	prev, err = Exchange(path, Key(fooBar), second)
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if prev == nil || prev.Total != 2 {
		t.Fatalf("previous = %+v, want total 2", prev)
	}

	c, _ := Load(path)
	if c[Key(fooBar)].Total != 1 {
		t.Errorf("stored total = %d, want 1", c[Key(fooBar)].Total)
	}
}

func TestExchange_ReplacesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last-scan.json")
	os.WriteFile(path, []byte("garbage"), 0o644)
	prev, err := Exchange(path, "foobar", Snapshot{Total: 1})
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if prev != nil {
		t.Errorf("expected no previous snapshot, got %+v", prev)
	}
}

func TestKey(t *testing.T) {
	if Key(catalog.App{DisplayName: "  FooBar "}) != "foobar" {
		t.Errorf("Key should trim and lowercase")
	}
}

func TestDiff(t *testing.T) {
	prev := Snapshot{
		Timestamp: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Total:     6,
		Kinds:     []KindSnapshot{{"Path", 4}, {"Service", 2}},
	}
	curr := Snapshot{
		Total: 5,
		Kinds: []KindSnapshot{{"Path", 3}, {"RegistryKey", 2}},
	}

	d := Diff(prev, curr)
	if d.TotalDelta != -1 {
		t.Errorf("TotalDelta = %d, want -1", d.TotalDelta)
	}
	if !d.PreviousTimestamp.Equal(prev.Timestamp) {
		t.Errorf("PreviousTimestamp = %v", d.PreviousTimestamp)
	}

	tests := []struct {
		kind string
		want KindDiff
	}{
		{"Path", KindDiff{Previous: 4, Current: 3, Delta: -1}},
		{"RegistryKey", KindDiff{Previous: 0, Current: 2, Delta: 2, IsNew: true}},
		{"Service", KindDiff{Previous: 2, Current: 0, Delta: -2}},
	}
	for _, tt := range tests {
		if got := d.Kinds[tt.kind]; got != tt.want {
			t.Errorf("Kinds[%s] = %+v, want %+v", tt.kind, got, tt.want)
		}
	}
	if !d.Changed() {
		t.Error("expected Changed")
	}
}

func TestDiff_Unchanged(t *testing.T) {
	s := Snapshot{Total: 2, Kinds: []KindSnapshot{{"Path", 2}}}
	if Diff(s, s).Changed() {
		t.Error("identical snapshots should not report a change")
	}
}
