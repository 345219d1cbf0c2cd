package scanner

import (
	"context"
	"strings"

	"github.com/zhengda-lu/zerotrace/internal/catalog"
)

// Kind is the category of a residual artifact.
type Kind int

const (
	Path Kind = iota
	RegistryKey
	Service
	ScheduledTask
	FirewallRule
)

// Kinds lists every kind in display order.
var Kinds = []Kind{Path, RegistryKey, Service, ScheduledTask, FirewallRule}

func (k Kind) String() string {
	switch k {
	case Path:
		return "Path"
	case RegistryKey:
		return "RegistryKey"
	case Service:
		return "Service"
	case ScheduledTask:
		return "ScheduledTask"
	case FirewallRule:
		return "FirewallRule"
	default:
		return "Unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Source tags name the domain scanner and rule that produced a target.
const (
	SourceInstallLocation = "InstallLocation"
	SourceStandardFolder  = "ExactFolder(Standard)"
	SourceStartMenu       = "StartMenu"
	SourceAppDataFolder   = "ExactFolder(AppData)"
	SourceVendorKey       = "VendorKey"
	SourceService         = "ServiceName/DisplayName"
	SourceTask            = "TaskName/Path"
	SourceFirewall        = "FirewallRule"
)

// Confidence is how sure a scanner is that a find belongs to the app.
type Confidence int

const (
	Low Confidence = iota
	Medium
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "Low"
	case Medium:
		return "Medium"
	case High:
		return "High"
	default:
		return "Unknown"
	}
}

func (c Confidence) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Target is one residual artifact. Scanners emit targets with only Kind,
// Value, Source and Confidence set; the resolver fills in the rest.
type Target struct {
	Kind       Kind       `json:"kind"`
	Value      string     `json:"value"`
	Source     string     `json:"source"`
	Confidence Confidence `json:"confidence"`
	Exists     bool       `json:"exists"`
	Blocked    bool       `json:"blocked"`
	Meta       string     `json:"meta,omitempty"`
}

// Key is the case-insensitive identity of a target.
func (t Target) Key() string {
	return t.Kind.String() + "|" + strings.ToLower(t.Value)
}

// Resolved reports whether the resolver has annotated the target.
func (t Target) Resolved() bool { return t.Meta != "" }

// Removable reports whether cleanup may act on the target.
func (t Target) Removable() bool {
	return t.Exists && !(t.Kind == Path && t.Blocked)
}

// Dedupe drops later targets whose Key was already seen, keeping order.
func Dedupe(targets []Target) []Target {
	seen := make(map[string]bool, len(targets))
	out := make([]Target, 0, len(targets))
	for _, t := range targets {
		if strings.TrimSpace(t.Value) == "" {
			continue
		}
		k := t.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}

// Request is the input shared by every domain scanner for one scan.
type Request struct {
	App         catalog.App
	Keys        CandidateKeys
	FullCleanup bool
}

// NewRequest derives the candidate keys for app.
func NewRequest(app catalog.App, fullCleanup bool) Request {
	return Request{App: app, Keys: CandidateKeysFor(app), FullCleanup: fullCleanup}
}

// Scanner searches one domain (folders, registry, services, ...) for
// artifacts that belong to the requested app.
type Scanner interface {
	Name() string
	Description() string
	Scan(ctx context.Context, req Request) ([]Target, error)
}
