// Package history keeps a log of finished cleanup runs.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zhengda-lu/zerotrace/internal/catalog"
	"github.com/zhengda-lu/zerotrace/internal/cleanup"
)

// Entry represents a single cleanup run recorded in the history.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	App       string         `json:"app"`
	Publisher string         `json:"publisher,omitempty"`
	Counts    cleanup.Counts `json:"counts"`
	Deferred  int            `json:"deferred"`
	Skipped   int            `json:"skipped"`
	Errors    int            `json:"errors"`
	Cancelled bool           `json:"cancelled,omitempty"`
}

// Removed is the number of targets the run removed.
func (e Entry) Removed() int { return e.Counts.Total() }

// FromResult builds an entry for a cleanup of app.
func FromResult(app catalog.App, res cleanup.Result, at time.Time) Entry {
	return Entry{
		Timestamp: at,
		App:       app.DisplayName,
		Publisher: app.Publisher,
		Counts:    res.Counts,
		Deferred:  res.Deferred,
		Skipped:   res.Skipped,
		Errors:    res.Errors,
		Cancelled: res.Cancelled,
	}
}

// AppStats holds aggregate statistics for a single application.
type AppStats struct {
	Removed  int `json:"removed"`
	Cleanups int `json:"cleanups"`
}

// Stats holds aggregate cleanup statistics.
type Stats struct {
	TotalRemoved  int                 `json:"total_removed"`
	TotalDeferred int                 `json:"total_deferred"`
	TotalCleanups int                 `json:"total_cleanups"`
	ByApp         map[string]AppStats `json:"by_app"`
	Recent        []Entry             `json:"recent"`
}

// History manages the cleanup history file.
type History struct {
	path string
}

// New creates a new History that reads/writes the given file path.
func New(path string) *History {
	return &History{path: path}
}

// DefaultPath returns the default history file location under the user
// config directory (%APPDATA%\zerotrace\history.json on Windows).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "history.json"
	}
	return filepath.Join(dir, "zerotrace", "history.json")
}

// Path returns the file the history is stored in.
func (h *History) Path() string { return h.path }

// Record appends a cleanup entry to the history file.
func (h *History) Record(e Entry) error {
	entries, err := h.Load()
	if err != nil {
		// Missing or corrupt history starts fresh rather than blocking cleanup.
		entries = nil
	}

	entries = append(entries, e)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	if err := os.WriteFile(h.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}

	return nil
}

// Load reads all entries from the history file.
func (h *History) Load() ([]Entry, error) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse history file: %w", err)
	}

	return entries, nil
}

// Stats computes aggregate statistics from the history. Apps are grouped
// case-insensitively under the first spelling seen.
func (h *History) Stats(recent int) Stats {
	s := Stats{ByApp: make(map[string]AppStats)}
	entries, err := h.Load()
	if err != nil || len(entries) == 0 {
		return s
	}

	s.TotalCleanups = len(entries)
	names := make(map[string]string)
	for _, e := range entries {
		s.TotalRemoved += e.Removed()
		s.TotalDeferred += e.Deferred

		key := strings.ToLower(e.App)
		name, ok := names[key]
		if !ok {
			name = e.App
			names[key] = name
		}
		as := s.ByApp[name]
		as.Removed += e.Removed()
		as.Cleanups++
		s.ByApp[name] = as
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	if recent <= 0 || recent > len(sorted) {
		recent = len(sorted)
	}
	s.Recent = sorted[:recent]

	return s
}
