// Package catalog enumerates installed applications from the uninstall
// registry and Steam library manifests.
package catalog

import (
	"sort"
	"strings"
)

// Where an App record came from.
const (
	SourceRegistry = "Registry"
	SourceSteam    = "Steam"
)

// App is one installed application. It is a value type and never mutated
// after the catalog returns it.
type App struct {
	DisplayName          string `json:"display_name"`
	Publisher            string `json:"publisher,omitempty"`
	Version              string `json:"version,omitempty"`
	InstallLocation      string `json:"install_location,omitempty"`
	UninstallString      string `json:"uninstall_string,omitempty"`
	QuietUninstallString string `json:"quiet_uninstall_string,omitempty"`
	// SizeBytes is nil when the size is unknown or was not computed.
	SizeBytes *int64 `json:"size_bytes,omitempty"`
	Source    string `json:"source"`
}

// Key is the case-insensitive identity used to drop duplicate records.
func (a App) Key() string {
	return strings.ToLower(a.DisplayName + "|" + a.Publisher + "|" + a.InstallLocation)
}

// Size returns the known size or zero.
func (a App) Size() int64 {
	if a.SizeBytes == nil {
		return 0
	}
	return *a.SizeBytes
}

// HasUninstaller reports whether the app registered an uninstall command.
func (a App) HasUninstaller() bool {
	return strings.TrimSpace(a.QuietUninstallString) != "" || strings.TrimSpace(a.UninstallString) != ""
}

// IsMicrosoft reports whether the publisher or the name mentions Microsoft.
func (a App) IsMicrosoft() bool {
	return containsFold(a.Publisher, "microsoft") || containsFold(a.DisplayName, "microsoft")
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// Sort orders for Filter.
const (
	SortByName = "name"
	SortBySize = "size"
)

// Filter narrows and orders an app list for display.
type Filter struct {
	Query         string
	HideMicrosoft bool
	SortBy        string
	// Limit caps the result; zero means unlimited.
	Limit int
}

// Apply returns a new slice; apps is left untouched.
func (f Filter) Apply(apps []App) []App {
	q := strings.TrimSpace(f.Query)
	out := make([]App, 0, len(apps))
	for _, a := range apps {
		if f.HideMicrosoft && a.IsMicrosoft() {
			continue
		}
		if q != "" && !containsFold(a.DisplayName, q) && !containsFold(a.Publisher, q) {
			continue
		}
		out = append(out, a)
	}

	byName := func(i, j int) bool {
		return strings.ToLower(out[i].DisplayName) < strings.ToLower(out[j].DisplayName)
	}
	if f.SortBy == SortBySize {
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Size() != out[j].Size() {
				return out[i].Size() > out[j].Size()
			}
			return byName(i, j)
		})
	} else {
		sort.SliceStable(out, byName)
	}

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// Find resolves a user-typed name: an exact case-insensitive match wins,
// otherwise every app whose name contains the query is returned.
func Find(apps []App, name string) []App {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	var partial []App
	for _, a := range apps {
		if strings.EqualFold(a.DisplayName, name) {
			return []App{a}
		}
		if containsFold(a.DisplayName, name) {
			partial = append(partial, a)
		}
	}
	return partial
}
