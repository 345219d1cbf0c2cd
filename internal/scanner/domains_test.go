package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zhengda-lu/zerotrace/internal/catalog"
	"github.com/zhengda-lu/zerotrace/internal/platform"
	"github.com/zhengda-lu/zerotrace/internal/platform/fake"
	"github.com/zhengda-lu/zerotrace/internal/safety"
)

// testHost lays out the known folders under a temp root.
func testHost(t *testing.T) (*fake.Platform, *safety.Gate) {
	t.Helper()
	root := t.TempDir()
	f := platform.Folders{
		SystemDrive:     root,
		Windows:         filepath.Join(root, "Windows"),
		System32:        filepath.Join(root, "Windows", "System32"),
		SysWOW64:        filepath.Join(root, "Windows", "SysWOW64"),
		ProgramFiles:    filepath.Join(root, "Program Files"),
		ProgramFilesX86: filepath.Join(root, "Program Files (x86)"),
		ProgramData:     filepath.Join(root, "ProgramData"),
		LocalAppData:    filepath.Join(root, "Users", "me", "AppData", "Local"),
		AppData:         filepath.Join(root, "Users", "me", "AppData", "Roaming"),
		Temp:            filepath.Join(root, "Temp"),
	}
	for _, d := range []string{f.System32, f.SysWOW64, f.ProgramFiles, f.ProgramFilesX86, f.ProgramData, f.LocalAppData, f.AppData, f.Temp} {
		mkdir(t, d)
	}
	return fake.New(f), safety.New(f, nil)
}

func mkdir(t *testing.T, path string) string {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func touch(t *testing.T, path string) string {
	t.Helper()
	mkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func values(targets []Target) map[string]Target {
	out := make(map[string]Target, len(targets))
	for _, t := range targets {
		out[t.Value] = t
	}
	return out
}

func TestInstallLocationScanner(t *testing.T) {
	p, gate := testHost(t)
	f := p.Folders()
	loc := mkdir(t, filepath.Join(f.ProgramFiles, "FooBar"))

	s := NewInstallLocationScanner(gate)
	targets, err := s.Scan(context.Background(), NewRequest(catalog.App{DisplayName: "FooBar", Publisher: "Acme", InstallLocation: loc}, false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(targets))
	}
	got := targets[0]
	if got.Kind != Path || got.Value != loc || got.Confidence != High || got.Source != SourceInstallLocation {
		t.Errorf("unexpected target: %+v", got)
	}

	for _, bad := range []string{"", f.ProgramFiles, f.Windows, filepath.Join(f.ProgramFiles, "Missing")} {
		targets, _ := s.Scan(context.Background(), NewRequest(catalog.App{DisplayName: "FooBar", InstallLocation: bad}, false))
		if len(targets) != 0 {
			t.Errorf("InstallLocation %q should be ignored, got %+v", bad, targets)
		}
	}

	// "Foo" yields no candidate key, so even an existing folder is not a find.
	targets, _ = s.Scan(context.Background(), NewRequest(catalog.App{DisplayName: "Foo", InstallLocation: loc}, false))
	if len(targets) != 0 {
		t.Errorf("app without candidate keys should yield nothing, got %+v", targets)
	}
}

func TestStandardFolderScanner(t *testing.T) {
	p, _ := testHost(t)
	f := p.Folders()
	pf := mkdir(t, filepath.Join(f.ProgramFiles, "Foo Bar"))
	pd := mkdir(t, filepath.Join(f.ProgramData, "ACME"))
	mkdir(t, filepath.Join(f.ProgramFiles, "FooBarTools"))
	mkdir(t, filepath.Join(f.ProgramFilesX86, "Other"))
	touch(t, filepath.Join(f.ProgramFiles, "foobar"))

	s := NewStandardFolderScanner(f.ProgramFiles, f.ProgramFilesX86, f.ProgramData, "")
	targets, err := s.Scan(context.Background(), NewRequest(catalog.App{DisplayName: "FooBar", Publisher: "Acme"}, false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := values(targets)
	if len(got) != 2 {
		t.Fatalf("expected 2 targets, got %+v", targets)
	}
	for _, want := range []string{pf, pd} {
		tg, ok := got[want]
		if !ok {
			t.Fatalf("missing %s", want)
		}
		if tg.Confidence != High || tg.Source != SourceStandardFolder {
			t.Errorf("unexpected target %+v", tg)
		}
	}
}

func TestAppDataFolderScanner(t *testing.T) {
	p, _ := testHost(t)
	f := p.Folders()
	local := mkdir(t, filepath.Join(f.LocalAppData, "FooBar"))
	roaming := mkdir(t, filepath.Join(f.AppData, "Acme"))

	s := NewAppDataFolderScanner(DefaultProtectedPublishers, f.LocalAppData, f.AppData)
	app := catalog.App{DisplayName: "FooBar", Publisher: "Acme"}

	targets, _ := s.Scan(context.Background(), NewRequest(app, false))
	if len(targets) != 0 {
		t.Errorf("expected no app data targets without full cleanup, got %+v", targets)
	}

	targets, err := s.Scan(context.Background(), NewRequest(app, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := values(targets)
	if len(got) != 2 {
		t.Fatalf("expected 2 targets, got %+v", targets)
	}
	if got[local].Confidence != Medium || got[roaming].Source != SourceAppDataFolder {
		t.Errorf("unexpected targets %+v", targets)
	}
}

func TestProtectedPublisherSkipsAppDataOnly(t *testing.T) {
	p, gate := testHost(t)
	f := p.Folders()
	mkdir(t, filepath.Join(f.LocalAppData, "Teams"))
	pf := mkdir(t, filepath.Join(f.ProgramFiles, "Teams"))

	app := catalog.App{DisplayName: "Teams", Publisher: "Microsoft"}
	req := NewRequest(app, true)

	var all []Target
	for _, s := range Domains(p, gate, nil) {
		targets, err := s.Scan(context.Background(), req)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", s.Name(), err)
		}
		all = append(all, targets...)
	}
	for _, tg := range all {
		if tg.Source == SourceAppDataFolder {
			t.Errorf("protected publisher produced app data target %+v", tg)
		}
	}
	if _, ok := values(all)[pf]; !ok {
		t.Errorf("expected program files match %s, got %+v", pf, all)
	}
}

func TestStartMenuScanner(t *testing.T) {
	p, _ := testHost(t)
	f := p.Folders()
	common := mkdir(t, StartMenuPrograms(f.ProgramData))
	user := mkdir(t, StartMenuPrograms(f.AppData))

	group := mkdir(t, filepath.Join(common, "FooBar"))
	inGroup := touch(t, filepath.Join(group, "FooBar.lnk"))
	site := touch(t, filepath.Join(user, "Tools", "Acme.URL"))
	touch(t, filepath.Join(user, "FooBar.txt"))
	touch(t, filepath.Join(user, "Uninstall FooBar.lnk"))

	s := NewStartMenuScanner(common, user, filepath.Join(f.AppData, "missing"))
	targets, err := s.Scan(context.Background(), NewRequest(catalog.App{DisplayName: "FooBar", Publisher: "Acme"}, false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := values(targets)
	if len(got) != 3 {
		t.Fatalf("expected 3 targets, got %+v", targets)
	}
	for _, want := range []string{group, inGroup, site} {
		tg, ok := got[want]
		if !ok {
			t.Fatalf("missing %s in %+v", want, targets)
		}
		if tg.Source != SourceStartMenu || tg.Confidence != Medium {
			t.Errorf("unexpected target %+v", tg)
		}
	}
}

func TestRegistryScanner(t *testing.T) {
	p, _ := testHost(t)
	p.AddKey(platform.LocalMachine, `SOFTWARE\Acme`)
	p.AddKey(platform.LocalMachine, `SOFTWARE\WOW6432Node\FooBar`)
	p.AddKey(platform.CurrentUser, `SOFTWARE\Acme\FooBar`)
	p.AddKey(platform.CurrentUser, `SOFTWARE\Unrelated`)

	s := NewRegistryScanner(p)
	targets, err := s.Scan(context.Background(), NewRequest(catalog.App{DisplayName: "FooBar", Publisher: "Acme"}, false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := values(targets)
	for _, want := range []string{`HKLM:\SOFTWARE\Acme`, `HKLM:\SOFTWARE\WOW6432Node\FooBar`, `HKCU:\SOFTWARE\Acme`} {
		tg, ok := got[want]
		if !ok {
			t.Fatalf("missing %s in %+v", want, targets)
		}
		if tg.Kind != RegistryKey || tg.Source != SourceVendorKey || tg.Confidence != Medium {
			t.Errorf("unexpected target %+v", tg)
		}
	}
	if len(got) != 3 {
		t.Errorf("expected 3 targets, got %+v", targets)
	}
}

func TestServiceScanner(t *testing.T) {
	p, _ := testHost(t)
	p.AddService("FooBarSvc", "FooBar", platform.StatusRunning, platform.StartAutomatic)
	p.AddService("acme", "Acme Helper Service", platform.StatusStopped, platform.StartManual)
	p.AddService("Spooler", "Print Spooler", platform.StatusRunning, platform.StartAutomatic)

	targets, err := NewServiceScanner(p).Scan(context.Background(), NewRequest(catalog.App{DisplayName: "FooBar", Publisher: "Acme"}, false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := values(targets)
	if len(got) != 2 {
		t.Fatalf("expected 2 targets, got %+v", targets)
	}
	if got["FooBarSvc"].Source != SourceService || got["acme"].Kind != Service {
		t.Errorf("unexpected targets %+v", targets)
	}
}

func TestTaskScanner(t *testing.T) {
	p, _ := testHost(t)
	p.AddTask(`\Acme\FooBarUpdater`)
	p.AddTask(`\FooBar`)
	p.AddTask(`\Microsoft\Windows\Defrag\ScheduledDefrag`)

	targets, err := NewTaskScanner(p).Scan(context.Background(), NewRequest(catalog.App{DisplayName: "FooBar", Publisher: "Acme"}, false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := values(targets)
	if len(got) != 2 {
		t.Fatalf("expected 2 targets, got %+v", targets)
	}
	tg, ok := got[`\Acme\FooBarUpdater`]
	if !ok || tg.Kind != ScheduledTask || tg.Confidence != Medium || tg.Source != SourceTask {
		t.Errorf("unexpected task target %+v", tg)
	}
	if _, ok := got[`\FooBar`]; !ok {
		t.Error("expected root-folder task matched by name")
	}
}

func TestFirewallScanner(t *testing.T) {
	p, _ := testHost(t)
	p.AddFirewallRule("FooBar")
	p.AddFirewallRule("FooBar (TCP-In)")
	p.AddFirewallRule("Core Networking")

	targets, err := NewFirewallScanner(p).Scan(context.Background(), NewRequest(catalog.App{DisplayName: "FooBar"}, false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(targets) != 1 || targets[0].Value != "FooBar" || targets[0].Confidence != Low {
		t.Errorf("unexpected targets %+v", targets)
	}
}

func TestDomainScannerErrors(t *testing.T) {
	p, _ := testHost(t)
	boom := errors.New("boom")
	p.FailOn("ListServices", boom)
	p.FailOn("ListTasks", boom)
	p.FailOn("ListFirewallRules", boom)
	req := NewRequest(catalog.App{DisplayName: "FooBar"}, false)

	for _, s := range []Scanner{NewServiceScanner(p), NewTaskScanner(p), NewFirewallScanner(p)} {
		if _, err := s.Scan(context.Background(), req); !errors.Is(err, boom) {
			t.Errorf("%s: expected wrapped error, got %v", s.Name(), err)
		}
	}
}

func TestScannersStopOnCancel(t *testing.T) {
	p, _ := testHost(t)
	f := p.Folders()
	mkdir(t, filepath.Join(f.ProgramFiles, "FooBar"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewStandardFolderScanner(f.ProgramFiles)
	if _, err := s.Scan(ctx, NewRequest(catalog.App{DisplayName: "FooBar"}, false)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// cancelAfter is a context that reports cancellation once Err has been
// asked n times, so a test can cancel in the middle of a walk.
type cancelAfter struct {
	context.Context
	n int
}

func (c *cancelAfter) Err() error {
	if c.n <= 0 {
		return context.Canceled
	}
	c.n--
	return nil
}

func TestStartMenuScanner_CancelDuringWalk(t *testing.T) {
	p, _ := testHost(t)
	f := p.Folders()
	common := mkdir(t, StartMenuPrograms(f.ProgramData))
	deep := filepath.Join(common, "Acme", "Suite", "Tools")
	for _, name := range []string{"FooBar.lnk", "FooBar Help.url", "FooBar Admin.lnk"} {
		touch(t, filepath.Join(deep, name))
	}

	// One check before the root, one for the root entry itself.
	ctx := &cancelAfter{Context: context.Background(), n: 2}
	targets, err := NewStartMenuScanner(common).Scan(ctx, NewRequest(catalog.App{DisplayName: "FooBar"}, false))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from inside the walk, got %v", err)
	}
	for _, tg := range targets {
		if strings.HasSuffix(strings.ToLower(tg.Value), ".lnk") {
			t.Errorf("walk should stop before reaching shortcuts, got %+v", tg)
		}
	}
}

func TestDedupe(t *testing.T) {
	in := []Target{
		{Kind: Path, Value: `C:\Program Files\FooBar`, Source: SourceInstallLocation, Confidence: High},
		{Kind: Path, Value: `c:\program files\foobar`, Source: SourceStandardFolder, Confidence: High},
		{Kind: Service, Value: `C:\Program Files\FooBar`},
		{Kind: Path, Value: "  "},
	}
	out := Dedupe(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 targets, got %+v", out)
	}
	if out[0].Source != SourceInstallLocation {
		t.Errorf("expected first-seen source to win, got %q", out[0].Source)
	}
}

func TestTargetRemovable(t *testing.T) {
	tests := []struct {
		t    Target
		want bool
	}{
		{Target{Kind: Path, Exists: true}, true},
		{Target{Kind: Path, Exists: true, Blocked: true}, false},
		{Target{Kind: Path}, false},
		{Target{Kind: Service, Exists: true, Blocked: true}, true},
	}
	for _, tt := range tests {
		if got := tt.t.Removable(); got != tt.want {
			t.Errorf("%+v.Removable() = %v, want %v", tt.t, got, tt.want)
		}
	}
}

func TestSourceTagsAreDistinct(t *testing.T) {
	tags := []string{
		SourceInstallLocation, SourceStandardFolder, SourceStartMenu, SourceAppDataFolder,
		SourceVendorKey, SourceService, SourceTask, SourceFirewall,
	}
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if tag == "" || seen[tag] {
			t.Errorf("source tag %q is empty or duplicated", tag)
		}
		seen[tag] = true
	}
}
