// Package engine aggregates station temperatures over a region with a fixed
// pool of workers.
//
// The region is split into record-aligned chunks up front. Workers pull
// chunks through an atomic index, parse them into a table they own
// exclusively, and hand the table back exactly once when no chunks remain.
// The caller's goroutine acts as the last worker and then merges, sorts and
// formats the tables.
package engine

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"obrc/chunk"
	"obrc/record"
	"obrc/region"
	"obrc/stats"
)

type Engine struct {
	cfg    Config
	logger *slog.Logger
}

func New(options ...Option) *Engine {
	e := &Engine{
		cfg:    DefaultConfig(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range options {
		e = opt(e)
	}

	def := DefaultConfig()
	if e.cfg.ScanWidth == 0 {
		e.cfg.ScanWidth = def.ScanWidth
	}
	if e.cfg.CoarseFraction == 0 {
		e.cfg.CoarseFraction = def.CoarseFraction
	}
	if e.cfg.FineChunkSize == 0 {
		e.cfg.FineChunkSize = def.FineChunkSize
	}
	if e.cfg.MapCapacity == 0 {
		e.cfg.MapCapacity = def.MapCapacity
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) workers() int {
	if e.cfg.Workers > 0 {
		return e.cfg.Workers
	}
	return runtime.GOMAXPROCS(0)
}

type Result struct {
	// Entries are sorted by name. Keys alias the region.
	Entries []stats.Entry
	// Report is the formatted summary line, newline included.
	Report []byte
	// Diagnostics is nil unless enabled in the config.
	Diagnostics *Diagnostics
}

func (r *Result) WriteReport(w io.Writer) error {
	if _, err := w.Write(r.Report); err != nil {
		return fmt.Errorf("unable to write report: %w", err)
	}
	return nil
}

// workerResult is everything a worker hands back to the coordinator.
type workerResult struct {
	id      int
	table   *stats.Table
	chunks  int
	records int
	bytes   int64
	busy    time.Duration
	// Per-chunk parse times, only with diagnostics.
	latencies []time.Duration
}

// Run aggregates every record of r. The returned entries borrow their keys
// from r, which must stay open while they are in use.
func (e *Engine) Run(r *region.Region) (*Result, error) {
	if !e.cfg.ScanWidth.Valid() {
		return nil, fmt.Errorf("unsupported scan width %d", e.cfg.ScanWidth)
	}
	if e.cfg.CoarseFraction < 0 || e.cfg.CoarseFraction > 1 {
		return nil, fmt.Errorf("coarse fraction %.3f outside [0, 1]", e.cfg.CoarseFraction)
	}

	workers := e.workers()
	var diag *Diagnostics
	if e.cfg.Diagnostics {
		diag = &Diagnostics{Workers: workers, Bytes: int64(r.Len())}
	}
	clock := newClock(diag != nil)

	slicer := chunk.NewSlicer(
		r.Bytes(), workers,
		chunk.WithCoarseFraction(e.cfg.CoarseFraction),
		chunk.WithFineSize(e.cfg.FineChunkSize),
	)
	sliceTime := clock.lap()
	e.logger.Debug(
		"sliced input",
		slog.Int("bytes", r.Len()),
		slog.Int("chunks", slicer.Len()),
		slog.Int("workers", workers),
	)

	rx := make(chan *workerResult, workers-1)
	for id := range workers - 1 {
		go func() {
			rx <- e.work(id, r, slicer)
		}()
	}
	results := make([]*workerResult, workers)
	results[workers-1] = e.work(workers-1, r, slicer)
	for range workers - 1 {
		res := <-rx
		results[res.id] = res
	}
	parseTime := clock.lap()

	tables := make([]*stats.Table, 0, workers)
	for _, res := range results {
		tables = append(tables, res.table)
	}
	merged := stats.Merge(tables)
	mergeTime := clock.lap()

	entries := stats.Sorted(merged)
	sortTime := clock.lap()

	report := stats.AppendReport(make([]byte, 0, 24*len(entries)+2), entries)
	formatTime := clock.lap()

	e.logger.Debug("aggregated input", slog.Int("stations", len(entries)))

	if diag != nil {
		diag.Chunks = slicer.Len()
		diag.Stations = len(entries)
		diag.Slice = sliceTime
		diag.Parse = parseTime
		diag.Merge = mergeTime
		diag.Sort = sortTime
		diag.Format = formatTime
		diag.collect(results, entries)
	}

	return &Result{
		Entries:     entries,
		Report:      report,
		Diagnostics: diag,
	}, nil
}

// work pulls chunks until none remain and returns the worker's table.
func (e *Engine) work(id int, r *region.Region, slicer *chunk.Slicer) *workerResult {
	if e.cfg.PinThreads {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		restore, err := pin(id)
		if err != nil {
			e.logger.Debug("unable to pin worker", slog.Int("worker", id), slog.Any("error", err))
		} else {
			defer restore()
		}
	}

	res := &workerResult{
		id:    id,
		table: stats.NewTable(e.cfg.MapCapacity),
	}
	width := e.cfg.ScanWidth
	timed := e.cfg.Diagnostics

	for {
		c, ok := slicer.Next()
		if !ok {
			break
		}

		var start time.Time
		if timed {
			start = time.Now()
		}

		records := 0
		p := record.NewParser(r, c, width)
		for p.More() {
			s := res.table.Get(p.ReadName())
			s.Add(p.ReadValue())
			p.EndRecord()
			records++
		}

		res.chunks++
		res.records += records
		res.bytes += int64(c.Len())
		if timed {
			d := time.Since(start)
			res.busy += d
			res.latencies = append(res.latencies, d)
		}
	}
	return res
}

// clock measures consecutive phases when enabled.
type clock struct {
	enabled bool
	last    time.Time
}

func newClock(enabled bool) *clock {
	c := &clock{enabled: enabled}
	if enabled {
		c.last = time.Now()
	}
	return c
}

func (c *clock) lap() time.Duration {
	if !c.enabled {
		return 0
	}
	now := time.Now()
	d := now.Sub(c.last)
	c.last = now
	return d
}
