package engine

import (
	"log/slog"

	"obrc/chunk"
	"obrc/scan"
)

const DEFAULT_MAP_CAPACITY = 1024

// Config controls a run. The zero value of every field selects its
// default.
type Config struct {
	// Workers is the number of parallel workers, including the calling
	// goroutine. Zero means runtime.GOMAXPROCS(0).
	Workers int
	// Diagnostics collects timings and per-worker counters.
	Diagnostics bool
	// PinThreads binds each worker to its own CPU, best effort.
	PinThreads bool

	ScanWidth      scan.Width
	CoarseFraction float64
	FineChunkSize  int
	MapCapacity    int
}

func DefaultConfig() Config {
	return Config{
		ScanWidth:      scan.DefaultWidth,
		CoarseFraction: chunk.DEFAULT_COARSE_FRACTION,
		FineChunkSize:  chunk.DEFAULT_FINE_SIZE,
		MapCapacity:    DEFAULT_MAP_CAPACITY,
	}
}

type Option func(*Engine) *Engine

func WithConfig(cfg Config) Option {
	return func(e *Engine) *Engine {
		e.cfg = cfg
		return e
	}
}

func WithWorkers(n int) Option {
	return func(e *Engine) *Engine {
		e.cfg.Workers = n
		return e
	}
}

func WithDiagnostics(enabled bool) Option {
	return func(e *Engine) *Engine {
		e.cfg.Diagnostics = enabled
		return e
	}
}

func WithPinThreads(enabled bool) Option {
	return func(e *Engine) *Engine {
		e.cfg.PinThreads = enabled
		return e
	}
}

func WithScanWidth(w scan.Width) Option {
	return func(e *Engine) *Engine {
		e.cfg.ScanWidth = w
		return e
	}
}

func WithCoarseFraction(f float64) Option {
	return func(e *Engine) *Engine {
		e.cfg.CoarseFraction = f
		return e
	}
}

func WithFineChunkSize(n int) Option {
	return func(e *Engine) *Engine {
		e.cfg.FineChunkSize = n
		return e
	}
}

func WithMapCapacity(n int) Option {
	return func(e *Engine) *Engine {
		e.cfg.MapCapacity = n
		return e
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) *Engine {
		e.logger = logger
		return e
	}
}
