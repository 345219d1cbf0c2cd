// Package resolve annotates scanned targets with their current existence,
// safety verdict and a short description.
package resolve

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/go-logr/logr"

	"github.com/zhengda-lu/zerotrace/internal/platform"
	"github.com/zhengda-lu/zerotrace/internal/safety"
	"github.com/zhengda-lu/zerotrace/internal/scanner"
	"github.com/zhengda-lu/zerotrace/internal/utils"
)

const (
	MetaExists  = "Exists"
	MetaMissing = "Missing"
)

// DefaultWorkers bounds concurrent lookups; task and firewall queries each
// spawn an external tool.
const DefaultWorkers = 4

type Resolver struct {
	plat    platform.Platform
	gate    *safety.Gate
	workers int
	log     logr.Logger
}

func New(p platform.Platform, gate *safety.Gate, log logr.Logger) *Resolver {
	return &Resolver{plat: p, gate: gate, workers: DefaultWorkers, log: log.WithName("resolve")}
}

// Resolve returns annotated copies of targets in the same order. It never
// fails: anything that cannot be checked resolves to not existing.
func (r *Resolver) Resolve(ctx context.Context, targets []scanner.Target) []scanner.Target {
	out := make([]scanner.Target, len(targets))
	sem := make(chan struct{}, max(1, r.workers))
	var wg sync.WaitGroup

	for i, t := range targets {
		wg.Add(1)
		go func(i int, t scanner.Target) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			out[i] = r.One(ctx, t)
		}(i, t)
	}
	wg.Wait()
	return out
}

// One annotates a single target.
func (r *Resolver) One(ctx context.Context, t scanner.Target) scanner.Target {
	t.Blocked = false
	switch t.Kind {
	case scanner.Path:
		return r.path(ctx, t)
	case scanner.RegistryKey:
		h, p, ok := platform.ParseKeyPath(t.Value)
		return withExists(t, ok && r.plat.KeyExists(h, p))
	case scanner.Service:
		return withExists(t, r.plat.ServiceExists(t.Value))
	case scanner.ScheduledTask:
		return withExists(t, r.plat.TaskExists(ctx, t.Value))
	case scanner.FirewallRule:
		return withExists(t, r.plat.FirewallRuleExists(ctx, t.Value))
	default:
		return withExists(t, false)
	}
}

func withExists(t scanner.Target, exists bool) scanner.Target {
	t.Exists = exists
	if exists {
		t.Meta = MetaExists
	} else {
		t.Meta = MetaMissing
	}
	return t
}

func (r *Resolver) path(ctx context.Context, t scanner.Target) scanner.Target {
	t.Blocked = r.gate.Blocked(t.Value)
	if _, err := os.Lstat(t.Value); err != nil {
		t.Exists = false
		t.Meta = MetaMissing
		return t
	}
	st, err := utils.Stats(ctx, t.Value)
	if err != nil {
		r.log.V(2).Info("partial size", "path", t.Value, "error", err.Error())
	}
	t.Exists = true
	t.Meta = FormatMeta(st)
	return t
}

// FormatMeta renders the file count and size of a path target.
func FormatMeta(st utils.DirStats) string {
	return fmt.Sprintf("Files:%d Size:%s", st.Files, utils.FormatSize(st.Bytes))
}
