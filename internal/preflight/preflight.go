package preflight

import (
	"context"
	"path/filepath"

	"unitgo/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Options adjusts RunAll.
type Options struct {
	// SkipBind omits the listen check, for when a running daemon already
	// holds the address.
	SkipBind bool
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Journal.Enabled {
		results = append(results, CheckDirectoryAccess("Journal directory", filepath.Dir(cfg.Journal.Path)))
	}
	results = append(results, CheckSharedMemory(cfg.ShmSize(), cfg.ChunkSize()))
	if !opts.SkipBind {
		results = append(results, CheckBindAvailable(ctx, cfg.Dev.Bind))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
