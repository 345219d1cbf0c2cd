// Package scancache remembers the last scan of each app so a later scan can
// report what changed since then.
package scancache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zhengda-lu/zerotrace/internal/catalog"
	"github.com/zhengda-lu/zerotrace/internal/scanner"
)

// Snapshot captures the result of one scan at a point in time.
type Snapshot struct {
	Timestamp time.Time      `json:"timestamp"`
	App       string         `json:"app"`
	Kinds     []KindSnapshot `json:"kinds"`
	Total     int            `json:"total"`
}

// KindSnapshot counts the existing targets of one kind.
type KindSnapshot struct {
	Kind  string `json:"kind"`
	Items int    `json:"items"`
}

// KindDiff describes how one kind changed between two snapshots.
type KindDiff struct {
	Previous int  `json:"previous"`
	Current  int  `json:"current"`
	Delta    int  `json:"delta"`
	IsNew    bool `json:"is_new,omitempty"`
}

// DiffResult describes the differences between two snapshots.
type DiffResult struct {
	PreviousTimestamp time.Time           `json:"previous_timestamp"`
	TotalDelta        int                 `json:"total_delta"`
	Kinds             map[string]KindDiff `json:"kinds"`
}

// Changed reports whether any kind gained or lost items.
func (d DiffResult) Changed() bool {
	for _, k := range d.Kinds {
		if k.Delta != 0 {
			return true
		}
	}
	return false
}

// Cache maps an app key to its last snapshot.
type Cache map[string]Snapshot

// DefaultPath returns the default scan cache file location under the user
// config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "last-scan.json"
	}
	return filepath.Join(dir, "zerotrace", "last-scan.json")
}

// Key is the cache key of app.
func Key(app catalog.App) string {
	return strings.ToLower(strings.TrimSpace(app.DisplayName))
}

// FromTargets counts the existing targets per kind. Kinds with no items are
// left out.
func FromTargets(app catalog.App, targets []scanner.Target, at time.Time) Snapshot {
	counts := make(map[scanner.Kind]int)
	for _, t := range targets {
		if t.Exists {
			counts[t.Kind]++
		}
	}
	snap := Snapshot{Timestamp: at, App: app.DisplayName}
	for _, k := range scanner.Kinds {
		if n := counts[k]; n > 0 {
			snap.Kinds = append(snap.Kinds, KindSnapshot{Kind: k.String(), Items: n})
			snap.Total += n
		}
	}
	return snap
}

// Save writes the cache to the given path as indented JSON.
// It creates parent directories if they don't exist.
func Save(path string, c Cache) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create scan cache directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scan cache: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write scan cache file: %w", err)
	}

	return nil
}

// Load reads the cache from the given path. A missing file is an empty
// cache.
func Load(path string) (Cache, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Cache{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read scan cache file: %w", err)
	}

	c := Cache{}
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse scan cache file: %w", err)
	}
	return c, nil
}

// Exchange stores snap as the latest scan of key and returns the snapshot
// it replaced, if any. A corrupt cache file is replaced.
func Exchange(path, key string, snap Snapshot) (*Snapshot, error) {
	c, err := Load(path)
	if err != nil {
		c = Cache{}
	}
	var prev *Snapshot
	if old, ok := c[key]; ok {
		prev = &old
	}
	c[key] = snap
	return prev, Save(path, c)
}

// Diff computes per-kind differences between two snapshots.
// New kinds in curr get IsNew: true. Kinds present in prev but absent in
// curr get a negative delta.
func Diff(prev, curr Snapshot) DiffResult {
	result := DiffResult{
		PreviousTimestamp: prev.Timestamp,
		TotalDelta:        curr.Total - prev.Total,
		Kinds:             make(map[string]KindDiff),
	}

	prevMap := make(map[string]int, len(prev.Kinds))
	for _, k := range prev.Kinds {
		prevMap[k.Kind] = k.Items
	}

	for _, k := range curr.Kinds {
		prevItems, existed := prevMap[k.Kind]
		result.Kinds[k.Kind] = KindDiff{
			Previous: prevItems,
			Current:  k.Items,
			Delta:    k.Items - prevItems,
			IsNew:    !existed,
		}
		delete(prevMap, k.Kind)
	}

	for name, prevItems := range prevMap {
		result.Kinds[name] = KindDiff{
			Previous: prevItems,
			Delta:    -prevItems,
		}
	}

	return result
}
