package cli

import (
	"testing"
	"time"

	"github.com/zhengda-lu/zerotrace/internal/catalog"
	"github.com/zhengda-lu/zerotrace/internal/cleanup"
	"github.com/zhengda-lu/zerotrace/internal/history"
	"github.com/zhengda-lu/zerotrace/internal/platform"
	"github.com/zhengda-lu/zerotrace/internal/scanner"
)

func sampleTargets() []scanner.Target {
	return []scanner.Target{
		{Kind: scanner.RegistryKey, Value: `HKLM:\SOFTWARE\Acme\FooBar`, Confidence: scanner.High, Exists: true, Meta: "Exists"},
		{Kind: scanner.Path, Value: `C:\Program Files\FooBar`, Confidence: scanner.High, Exists: true, Meta: "Files:3 Size:2.0 KiB"},
		{Kind: scanner.Path, Value: `C:\Program Files`, Confidence: scanner.High, Exists: true, Blocked: true, Meta: "Files:9 Size:1.0 MiB"},
		{Kind: scanner.Service, Value: "FooBarSvc", Confidence: scanner.Medium, Meta: "Missing"},
		{Kind: scanner.FirewallRule, Value: "FooBar", Confidence: scanner.Low, Exists: true, Meta: "Exists"},
	}
}

func TestBuildScanJSON(t *testing.T) {
	size := int64(2048)
	app := catalog.App{DisplayName: "FooBar", Publisher: "Acme", SizeBytes: &size, Source: catalog.SourceRegistry}

	result := buildScanJSON(app, true, sampleTargets(), false, "done")

	if result.Version != version {
		t.Errorf("Version = %q, want %q", result.Version, version)
	}
	if result.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if result.App.Name != "FooBar" || *result.App.SizeBytes != 2048 {
		t.Errorf("App = %+v", result.App)
	}

	// The missing service is hidden without showMissing.
	if result.TotalItems != 4 {
		t.Errorf("TotalItems = %d, want 4", result.TotalItems)
	}
	if result.Removable != 3 {
		t.Errorf("Removable = %d, want 3", result.Removable)
	}
	if len(result.Kinds) != 3 {
		t.Fatalf("len(Kinds) = %d, want 3", len(result.Kinds))
	}
	// Kinds follow display order, not input order.
	if result.Kinds[0].Kind != "Path" || result.Kinds[1].Kind != "RegistryKey" || result.Kinds[2].Kind != "FirewallRule" {
		t.Errorf("kind order = %s, %s, %s", result.Kinds[0].Kind, result.Kinds[1].Kind, result.Kinds[2].Kind)
	}
	if result.Confidence.High != 3 || result.Confidence.Low != 1 || result.Confidence.Medium != 0 {
		t.Errorf("Confidence = %+v", result.Confidence)
	}
}

func TestBuildScanJSON_ShowMissing(t *testing.T) {
	result := buildScanJSON(catalog.App{DisplayName: "FooBar"}, false, sampleTargets(), true, "")
	if result.TotalItems != 5 {
		t.Errorf("TotalItems = %d, want 5", result.TotalItems)
	}
	if result.Removable != 3 {
		t.Errorf("Removable = %d, want 3", result.Removable)
	}
}

func TestBuildScanJSON_Empty(t *testing.T) {
	result := buildScanJSON(catalog.App{DisplayName: "FooBar"}, true, nil, false, "")
	if result.Kinds == nil {
		t.Error("Kinds should be an empty slice, not nil")
	}
	if result.TotalItems != 0 {
		t.Errorf("TotalItems = %d, want 0", result.TotalItems)
	}
}

func TestBuildAppsJSON(t *testing.T) {
	apps := []catalog.App{
		{DisplayName: "FooBar", UninstallString: `"C:\Foo\unins000.exe"`},
		{DisplayName: "Game", Source: catalog.SourceSteam},
	}
	result := buildAppsJSON(apps)
	if result.Total != 2 || len(result.Apps) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !result.Apps[0].HasUninstaller || result.Apps[1].HasUninstaller {
		t.Errorf("HasUninstaller = %v, %v", result.Apps[0].HasUninstaller, result.Apps[1].HasUninstaller)
	}
	if result.Apps[1].SizeBytes != nil {
		t.Error("unknown size should stay nil")
	}
}

func TestBuildServicesJSON(t *testing.T) {
	result := buildServicesJSON([]platform.ServiceInfo{
		{Name: "FooBarSvc", DisplayName: "FooBar", Status: platform.StatusRunning, StartType: platform.StartAutomatic},
	})
	if len(result.Services) != 1 {
		t.Fatalf("len(Services) = %d, want 1", len(result.Services))
	}
	s := result.Services[0]
	if s.Status != "Running" || s.StartType != "Automatic" {
		t.Errorf("service = %+v", s)
	}
}

func TestBuildHistoryJSON(t *testing.T) {
	stats := history.Stats{
		TotalRemoved:  5,
		TotalDeferred: 1,
		TotalCleanups: 2,
		ByApp:         map[string]history.AppStats{"FooBar": {Removed: 5, Cleanups: 2}},
		Recent: []history.Entry{
			{Timestamp: time.Now(), App: "FooBar", Counts: cleanup.Counts{Paths: 5}},
		},
	}

	result := buildHistoryJSON(stats)
	if result.Version != version {
		t.Errorf("Version = %q, want %q", result.Version, version)
	}
	if result.TotalRemoved != 5 || result.TotalDeferred != 1 || result.TotalCleanups != 2 {
		t.Errorf("unexpected totals %+v", result)
	}
	if len(result.ByApp) != 1 || len(result.Recent) != 1 {
		t.Errorf("unexpected maps %+v", result)
	}
}
