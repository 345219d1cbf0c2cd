package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"

	"github.com/zhengda-lu/zerotrace/internal/catalog"
	"github.com/zhengda-lu/zerotrace/internal/engine"
	"github.com/zhengda-lu/zerotrace/internal/scanner"
)

// domainScanner adapts the engine to workflow.Scanner. With no domains it
// runs every registered scanner and logs per-domain progress at V(1);
// otherwise only the named domains run.
type domainScanner struct {
	engine  *engine.Engine
	domains []string
	log     logr.Logger
}

func (d domainScanner) Scan(ctx context.Context, app catalog.App, fullCleanup bool) ([]scanner.Target, error) {
	if len(d.domains) == 0 {
		return d.engine.ScanWithProgress(ctx, app, fullCleanup, d.progress)
	}

	req := scanner.NewRequest(app, fullCleanup)
	var merged []scanner.Target
	for _, name := range d.domains {
		targets, err := d.engine.ScanByCategory(ctx, name, req)
		if err != nil {
			return scanner.Dedupe(merged), err
		}
		merged = append(merged, targets...)
	}
	return scanner.Dedupe(merged), nil
}

func (d domainScanner) progress(p engine.ScanProgress) {
	switch p.Status {
	case engine.ScanStarted:
		d.log.V(1).Info("domain started", "domain", p.Name)
	case engine.ScanDone:
		d.log.V(1).Info("domain done", "domain", p.Name, "found", len(p.Targets))
	}
}

// domainNames lists the registered scanners in registration order.
func domainNames(e *engine.Engine) []string {
	var names []string
	for _, s := range e.Scanners() {
		names = append(names, s.Name())
	}
	return names
}

// checkDomains rejects names that no registered scanner answers to and
// returns the canonical spelling of the rest.
func checkDomains(e *engine.Engine, names []string) ([]string, error) {
	known := domainNames(e)
	out := make([]string, 0, len(names))
	for _, n := range names {
		found := ""
		for _, k := range known {
			if strings.EqualFold(strings.TrimSpace(n), k) {
				found = k
				break
			}
		}
		if found == "" {
			return nil, fmt.Errorf("unknown domain %q (available: %s)", n, strings.Join(known, ", "))
		}
		out = append(out, found)
	}
	return out, nil
}
