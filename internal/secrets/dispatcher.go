package secrets

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
)

// FileTask describes one unit of dispatchable work: a discovered file ready
// for content-stage processing.
type FileTask struct {
	Path string
	Size int64
}

// FileResult is what a worker produces for one FileTask.
type FileResult struct {
	Path     string
	Matches  []SecretMatch
	Warnings []Warning
	Bytes    int64
	Lines    int64
	Err      error
}

// Dispatcher schedules FileTasks across a worker pool sized by the
// configured ExecutionMode. Sequential mode runs everything on the calling
// goroutine; Parallel and Auto spin up a bounded pool.
type Dispatcher struct {
	cfg    ScannerConfig
	logger *slog.Logger
}

// NewDispatcher constructs a Dispatcher from the resolved scanner config.
func NewDispatcher(cfg ScannerConfig) *Dispatcher {
	return &Dispatcher{cfg: cfg, logger: slog.Default().With("component", "dispatcher")}
}

// workerCount resolves the configured ExecutionMode (and, for Auto, the
// discovered file count) into a concrete worker count via a two-step
// sizing algorithm. Step one computes the resource ceiling: CPUPercentage
// of GOMAXPROCS, bounded above by MaxWorkers when set. Step two adapts that
// ceiling to the workload size, since a full-width pool is wasted on a
// handful of files and only pays off once there's enough work to keep every
// worker busy: at most 10 files uses at most 2 workers, at most 50 uses half
// the ceiling, at most 100 uses three quarters, and above that the full
// ceiling applies. Auto mode falls back to a single worker below
// AutoThreshold files and applies the same tiering once past it.
func (d *Dispatcher) workerCount(fileCount int) int {
	switch d.cfg.Mode {
	case ModeSequential:
		return 1
	case ModeParallel:
		return d.scaled(fileCount)
	case ModeAuto:
		if fileCount < d.cfg.AutoThreshold {
			return 1
		}
		return d.scaled(fileCount)
	default:
		return 1
	}
}

// scaled applies the workload-adaptation tiers on top of the resource
// ceiling for the given file count.
func (d *Dispatcher) scaled(fileCount int) int {
	ceiling := d.ceiling()

	var n int
	switch {
	case fileCount <= 10:
		n = min(2, ceiling)
	case fileCount <= 50:
		n = ceiling / 2
	case fileCount <= 100:
		n = ceiling * 3 / 4
	default:
		n = ceiling
	}

	if n < 1 {
		n = 1
	}
	return n
}

func (d *Dispatcher) ceiling() int {
	pct := d.cfg.CPUPercentage
	if pct <= 0 {
		pct = 1.0
	}
	n := int(float64(runtime.GOMAXPROCS(0)) * pct)
	if n < 1 {
		n = 1
	}
	if d.cfg.MaxWorkers > 0 && n > d.cfg.MaxWorkers {
		n = d.cfg.MaxWorkers
	}
	return n
}

// Run feeds tasks through process and returns one FileResult per task, in no
// particular order. process is expected to never panic; a process error is
// carried on FileResult.Err rather than aborting the run, except when ctx is
// canceled, which stops dispatch of further tasks and returns early.
func (d *Dispatcher) Run(ctx context.Context, tasks []FileTask, process func(context.Context, FileTask) FileResult) []FileResult {
	workers := d.workerCount(len(tasks))
	d.logger.Debug("dispatch starting", "files", len(tasks), "workers", workers, "mode", d.cfg.Mode)

	if workers <= 1 {
		results := make([]FileResult, 0, len(tasks))
		for _, t := range tasks {
			if ctx.Err() != nil {
				break
			}
			results = append(results, process(ctx, t))
		}
		return results
	}

	taskCh := make(chan FileTask)
	resultCh := make(chan FileResult, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range taskCh {
				resultCh <- process(ctx, t)
			}
		}()
	}

	go func() {
		defer close(taskCh)
		for _, t := range tasks {
			select {
			case <-ctx.Done():
				return
			case taskCh <- t:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]FileResult, 0, len(tasks))
	for r := range resultCh {
		results = append(results, r)
	}
	return results
}
