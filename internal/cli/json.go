package cli

import (
	"encoding/json"
	"os"
	"time"

	"github.com/zhengda-lu/zerotrace/internal/catalog"
	"github.com/zhengda-lu/zerotrace/internal/cleanup"
	"github.com/zhengda-lu/zerotrace/internal/history"
	"github.com/zhengda-lu/zerotrace/internal/platform"
	"github.com/zhengda-lu/zerotrace/internal/scancache"
	"github.com/zhengda-lu/zerotrace/internal/scanner"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ---------------------------------------------------------------------------
// Apps JSON types
// ---------------------------------------------------------------------------

type appsJSON struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Apps      []appJSON `json:"apps"`
	Total     int       `json:"total"`
}

type appJSON struct {
	Name            string `json:"name"`
	Publisher       string `json:"publisher,omitempty"`
	Version         string `json:"version,omitempty"`
	InstallLocation string `json:"install_location,omitempty"`
	SizeBytes       *int64 `json:"size_bytes,omitempty"`
	Source          string `json:"source"`
	HasUninstaller  bool   `json:"has_uninstaller"`
}

func toAppJSON(a catalog.App) appJSON {
	return appJSON{
		Name:            a.DisplayName,
		Publisher:       a.Publisher,
		Version:         a.Version,
		InstallLocation: a.InstallLocation,
		SizeBytes:       a.SizeBytes,
		Source:          a.Source,
		HasUninstaller:  a.HasUninstaller(),
	}
}

func buildAppsJSON(apps []catalog.App) appsJSON {
	out := make([]appJSON, 0, len(apps))
	for _, a := range apps {
		out = append(out, toAppJSON(a))
	}
	return appsJSON{
		Version:   version,
		Timestamp: time.Now().UTC(),
		Apps:      out,
		Total:     len(apps),
	}
}

// ---------------------------------------------------------------------------
// Scan JSON types
// ---------------------------------------------------------------------------

type scanJSON struct {
	Version     string         `json:"version"`
	Timestamp   time.Time      `json:"timestamp"`
	App         appJSON        `json:"app"`
	FullCleanup bool           `json:"full_cleanup"`
	Kinds       []kindJSON     `json:"kinds"`
	TotalItems  int            `json:"total_items"`
	Removable   int            `json:"removable"`
	Confidence  confidenceJSON `json:"confidence"`
	Status      string         `json:"status,omitempty"`
	// SinceLast is set when the app was scanned before.
	SinceLast *scancache.DiffResult `json:"since_last,omitempty"`
}

type kindJSON struct {
	Kind    string       `json:"kind"`
	Items   int          `json:"items"`
	Targets []targetJSON `json:"targets"`
}

type targetJSON struct {
	Value      string `json:"value"`
	Source     string `json:"source"`
	Confidence string `json:"confidence"`
	Exists     bool   `json:"exists"`
	Blocked    bool   `json:"blocked"`
	Meta       string `json:"meta"`
}

type confidenceJSON struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// buildScanJSON groups targets by kind in scanner.Kinds order.
func buildScanJSON(app catalog.App, fullCleanup bool, targets []scanner.Target, showMissing bool, status string) scanJSON {
	grouped := groupByKind(targets, showMissing)
	result := scanJSON{
		Version:     version,
		Timestamp:   time.Now().UTC(),
		App:         toAppJSON(app),
		FullCleanup: fullCleanup,
		Kinds:       []kindJSON{},
		Status:      status,
	}

	for _, kind := range scanner.Kinds {
		items := grouped[kind]
		if len(items) == 0 {
			continue
		}
		k := kindJSON{Kind: kind.String(), Items: len(items)}
		for _, t := range items {
			k.Targets = append(k.Targets, targetJSON{
				Value:      t.Value,
				Source:     t.Source,
				Confidence: t.Confidence.String(),
				Exists:     t.Exists,
				Blocked:    t.Blocked,
				Meta:       t.Meta,
			})
			if t.Removable() {
				result.Removable++
			}
			switch t.Confidence {
			case scanner.Low:
				result.Confidence.Low++
			case scanner.Medium:
				result.Confidence.Medium++
			case scanner.High:
				result.Confidence.High++
			}
		}
		result.TotalItems += len(items)
		result.Kinds = append(result.Kinds, k)
	}
	return result
}

// ---------------------------------------------------------------------------
// Cleanup JSON type
// ---------------------------------------------------------------------------

type cleanupJSON struct {
	scanJSON
	DryRun bool            `json:"dry_run,omitempty"`
	Result *cleanup.Result `json:"result,omitempty"`
}

// ---------------------------------------------------------------------------
// Services JSON type
// ---------------------------------------------------------------------------

type servicesJSON struct {
	Version   string        `json:"version"`
	Timestamp time.Time     `json:"timestamp"`
	Services  []serviceJSON `json:"services"`
}

type serviceJSON struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Status      string `json:"status"`
	StartType   string `json:"start_type"`
}

func buildServicesJSON(services []platform.ServiceInfo) servicesJSON {
	out := make([]serviceJSON, 0, len(services))
	for _, s := range services {
		out = append(out, serviceJSON{
			Name:        s.Name,
			DisplayName: s.DisplayName,
			Status:      s.Status.String(),
			StartType:   s.StartType.String(),
		})
	}
	return servicesJSON{Version: version, Timestamp: time.Now().UTC(), Services: out}
}

// ---------------------------------------------------------------------------
// History JSON type
// ---------------------------------------------------------------------------

type historyJSON struct {
	Version       string                      `json:"version"`
	TotalRemoved  int                         `json:"total_removed"`
	TotalDeferred int                         `json:"total_deferred"`
	TotalCleanups int                         `json:"total_cleanups"`
	ByApp         map[string]history.AppStats `json:"by_app"`
	Recent        []history.Entry             `json:"recent"`
}

// buildHistoryJSON converts history stats into a JSON-serializable structure.
func buildHistoryJSON(stats history.Stats) historyJSON {
	return historyJSON{
		Version:       version,
		TotalRemoved:  stats.TotalRemoved,
		TotalDeferred: stats.TotalDeferred,
		TotalCleanups: stats.TotalCleanups,
		ByApp:         stats.ByApp,
		Recent:        stats.Recent,
	}
}
