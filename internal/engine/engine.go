package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/zhengda-lu/zerotrace/internal/catalog"
	"github.com/zhengda-lu/zerotrace/internal/scanner"
)

// DefaultConcurrency bounds how many domain scanners run at once.
const DefaultConcurrency = 4

type ScanResult struct {
	Category string
	Targets  []scanner.Target
	Error    error
}

type Engine struct {
	scanners    []scanner.Scanner
	concurrency int
	log         logr.Logger
}

func New(log logr.Logger) *Engine {
	return &Engine{concurrency: DefaultConcurrency, log: log.WithName("engine")}
}

// Register appends scanners. Registration order is the order results are
// merged in, so earlier scanners win deduplication.
func (e *Engine) Register(s ...scanner.Scanner) {
	e.scanners = append(e.scanners, s...)
}

func (e *Engine) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	e.concurrency = n
}

func (e *Engine) Scanners() []scanner.Scanner {
	return e.scanners
}

// Scan runs every registered scanner for app and returns the merged,
// deduplicated targets. A failing scanner contributes nothing; the error is
// logged and the scan goes on. Only cancellation is returned as an error,
// together with whatever was found before it.
func (e *Engine) Scan(ctx context.Context, app catalog.App, fullCleanup bool) ([]scanner.Target, error) {
	return e.ScanWithProgress(ctx, app, fullCleanup, nil)
}

// ScanWithProgress is Scan with a callback for each scanner event.
func (e *Engine) ScanWithProgress(ctx context.Context, app catalog.App, fullCleanup bool, onProgress func(ScanProgress)) ([]scanner.Target, error) {
	req := scanner.NewRequest(app, fullCleanup)
	if req.Keys.Len() == 0 {
		e.log.V(1).Info("no candidate keys, nothing to scan", "app", app.DisplayName)
		return nil, nil
	}
	e.log.V(1).Info("scanning", "app", app.DisplayName, "keys", req.Keys.Sorted(), "fullCleanup", fullCleanup)

	var merged []scanner.Target
	for _, r := range e.ScanGroupedWithProgress(ctx, req, onProgress) {
		if r.Error != nil {
			e.log.Error(r.Error, "scanner failed", "scanner", r.Category)
		}
		merged = append(merged, r.Targets...)
	}
	targets := scanner.Dedupe(merged)
	if err := ctx.Err(); err != nil {
		return targets, fmt.Errorf("scan cancelled: %w", err)
	}
	return targets, nil
}

// ScanByCategory runs only the named scanner. Like Scan, it finds nothing
// for a request without candidate keys.
func (e *Engine) ScanByCategory(ctx context.Context, category string, req scanner.Request) ([]scanner.Target, error) {
	for _, s := range e.scanners {
		if s.Name() == category {
			if req.Keys.Len() == 0 {
				return nil, nil
			}
			targets, err := s.Scan(ctx, req)
			return scanner.Dedupe(targets), err
		}
	}
	return nil, fmt.Errorf("unknown category: %s", category)
}

// ScanGrouped runs every scanner and returns one result per scanner in
// registration order.
func (e *Engine) ScanGrouped(ctx context.Context, req scanner.Request) []ScanResult {
	return e.ScanGroupedWithProgress(ctx, req, nil)
}

// ScanStatus represents the state of a scanner in the progress callback.
type ScanStatus int

const (
	ScanWaiting ScanStatus = iota
	ScanStarted
	ScanDone
)

// ScanProgress is sent to the progress callback for each scanner event.
type ScanProgress struct {
	Name    string
	Status  ScanStatus
	Targets []scanner.Target
	Error   error
}

// ScanGroupedWithProgress runs scanners with the engine's concurrency limit
// and calls onProgress for each scanner event (started, done). Results are
// returned in registration order regardless of completion order.
func (e *Engine) ScanGroupedWithProgress(ctx context.Context, req scanner.Request, onProgress func(ScanProgress)) []ScanResult {
	concurrency := e.concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var (
		wg      sync.WaitGroup
		results = make([]ScanResult, len(e.scanners))
		sem     = make(chan struct{}, concurrency)
	)

	for i, s := range e.scanners {
		if onProgress != nil {
			onProgress(ScanProgress{Name: s.Name(), Status: ScanWaiting})
		}
		wg.Add(1)
		go func(i int, s scanner.Scanner) {
			defer wg.Done()

			sem <- struct{}{} // acquire
			if onProgress != nil {
				onProgress(ScanProgress{Name: s.Name(), Status: ScanStarted})
			}

			var (
				targets []scanner.Target
				err     error
			)
			if err = ctx.Err(); err == nil {
				targets, err = s.Scan(ctx, req)
			}

			if onProgress != nil {
				onProgress(ScanProgress{
					Name:    s.Name(),
					Status:  ScanDone,
					Targets: targets,
					Error:   err,
				})
			}

			<-sem // release after Done callback to keep concurrency tracking consistent

			results[i] = ScanResult{
				Category: s.Name(),
				Targets:  targets,
				Error:    err,
			}
		}(i, s)
	}

	wg.Wait()
	return results
}
