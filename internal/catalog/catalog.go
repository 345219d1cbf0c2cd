package catalog

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/zhengda-lu/zerotrace/internal/platform"
	"github.com/zhengda-lu/zerotrace/internal/utils"
)

// UninstallRoots are the registry branches holding per-app uninstall records.
var UninstallRoots = []struct {
	Hive platform.Hive
	Path string
}{
	{platform.LocalMachine, `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`},
	{platform.LocalMachine, `SOFTWARE\WOW6432Node\Microsoft\Windows\CurrentVersion\Uninstall`},
	{platform.CurrentUser, `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`},
}

// Options controls what List does beyond reading the registry.
type Options struct {
	ComputeSizes bool
	// SizeBudget bounds the walk of a single install folder; a folder that
	// runs over reports the bytes counted so far.
	SizeBudget time.Duration
	// Workers bounds concurrent size walks; zero means NumCPU-1.
	Workers int
	Steam   bool
}

// DefaultOptions matches the config defaults.
func DefaultOptions() Options {
	return Options{ComputeSizes: true, SizeBudget: 6 * time.Second, Steam: true}
}

// Catalog lists installed applications.
type Catalog struct {
	reg  platform.Registry
	opts Options
	log  logr.Logger
}

func New(reg platform.Registry, opts Options, log logr.Logger) *Catalog {
	return &Catalog{reg: reg, opts: opts, log: log.WithName("catalog")}
}

// List returns every installed app sorted by name. Per-record read failures
// are skipped; only cancellation is reported as an error.
func (c *Catalog) List(ctx context.Context) ([]App, error) {
	seen := make(map[string]bool)
	var apps []App

	for _, root := range UninstallRoots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := c.fromUninstallKey(ctx, root.Hive, root.Path, seen)
		if err != nil {
			return nil, err
		}
		apps = append(apps, found...)
	}

	if c.opts.Steam {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, a := range steamApps(c.reg) {
			k := a.Key()
			if seen[k] {
				continue
			}
			seen[k] = true
			apps = append(apps, a)
		}
	}

	if c.opts.ComputeSizes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		apps = c.withSizes(ctx, apps)
	}

	sort.SliceStable(apps, func(i, j int) bool {
		return strings.ToLower(apps[i].DisplayName) < strings.ToLower(apps[j].DisplayName)
	})
	c.log.V(1).Info("listed applications", "count", len(apps))
	return apps, nil
}

func (c *Catalog) fromUninstallKey(ctx context.Context, hive platform.Hive, path string, seen map[string]bool) ([]App, error) {
	names, err := c.reg.SubKeys(hive, path)
	if err != nil {
		c.log.V(2).Info("uninstall branch unavailable", "key", platform.KeyPath(hive, path), "error", err.Error())
		return nil, nil
	}

	var apps []App
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sub := path + `\` + name
		str := func(value string) string {
			v, _ := c.reg.StringValue(hive, sub, value)
			return strings.TrimSpace(v)
		}

		display := str("DisplayName")
		if display == "" {
			continue
		}
		publisher := str("Publisher")
		k := strings.ToLower(display + "|" + publisher)
		if seen[k] {
			continue
		}
		seen[k] = true

		apps = append(apps, App{
			DisplayName:          display,
			Publisher:            publisher,
			Version:              str("DisplayVersion"),
			InstallLocation:      str("InstallLocation"),
			UninstallString:      str("UninstallString"),
			QuietUninstallString: str("QuietUninstallString"),
			Source:               SourceRegistry,
		})
	}
	return apps, nil
}

// withSizes returns copies of apps with SizeBytes set for every app whose
// install folder exists.
func (c *Catalog) withSizes(ctx context.Context, apps []App) []App {
	var paths []string
	for _, a := range apps {
		if a.InstallLocation != "" && utils.DirExists(a.InstallLocation) {
			paths = append(paths, a.InstallLocation)
		}
	}
	sizes := utils.DirSizesParallel(ctx, paths, c.opts.Workers, c.opts.SizeBudget)

	out := make([]App, len(apps))
	for i, a := range apps {
		if size, ok := sizes[a.InstallLocation]; ok && a.InstallLocation != "" {
			s := size
			a.SizeBytes = &s
		}
		out[i] = a
	}
	return out
}
