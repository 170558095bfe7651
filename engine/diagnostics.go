package engine

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/jamiealquiza/tachymeter"
	"github.com/rodaine/table"

	"obrc/stats"
)

type WorkerStats struct {
	ID      int
	Chunks  int
	Records int
	Bytes   int64
	Busy    time.Duration
}

// Diagnostics describes where a run spent its time.
type Diagnostics struct {
	Workers  int
	Chunks   int
	Stations int
	Bytes    int64

	Slice  time.Duration
	Parse  time.Duration
	Merge  time.Duration
	Sort   time.Duration
	Format time.Duration

	PerWorker    []WorkerStats
	ChunkLatency *tachymeter.Metrics
	LongestName  string
}

func (d *Diagnostics) collect(results []*workerResult, entries []stats.Entry) {
	samples := 0
	for _, res := range results {
		samples += len(res.latencies)
	}
	tm := tachymeter.New(&tachymeter.Config{Size: max(samples, 1)})

	d.PerWorker = make([]WorkerStats, 0, len(results))
	for _, res := range results {
		d.PerWorker = append(d.PerWorker, WorkerStats{
			ID:      res.id,
			Chunks:  res.chunks,
			Records: res.records,
			Bytes:   res.bytes,
			Busy:    res.busy,
		})
		for _, l := range res.latencies {
			tm.AddTime(l)
		}
	}
	if samples > 0 {
		d.ChunkLatency = tm.Calc()
	}

	for _, e := range entries {
		if len(e.Key) > len(d.LongestName) {
			d.LongestName = string(e.Key)
		}
	}
}

func (d *Diagnostics) Records() int {
	n := 0
	for _, w := range d.PerWorker {
		n += w.Records
	}
	return n
}

// Write renders the diagnostics as tables.
func (d *Diagnostics) Write(w io.Writer) {
	headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()
	columnFmt := color.New(color.FgYellow).SprintfFunc()
	newTable := func(columns ...any) table.Table {
		return table.New(columns...).
			WithHeaderFormatter(headerFmt).
			WithFirstColumnFormatter(columnFmt).
			WithWriter(w)
	}

	total := d.Slice + d.Parse + d.Merge + d.Sort + d.Format
	phases := newTable("Phase", "Duration")
	phases.AddRow("slice", d.Slice)
	phases.AddRow("parse", d.Parse)
	phases.AddRow("merge", d.Merge)
	phases.AddRow("sort", d.Sort)
	phases.AddRow("format", d.Format)
	phases.AddRow("total", total)
	phases.Print()
	fmt.Fprintln(w)

	workers := newTable("Worker", "Chunks", "Records", "MiB", "Busy", "MiB/s")
	for _, ws := range d.PerWorker {
		mib := float64(ws.Bytes) / (1 << 20)
		rate := 0.0
		if ws.Busy > 0 {
			rate = mib / ws.Busy.Seconds()
		}
		workers.AddRow(ws.ID, ws.Chunks, ws.Records, fmt.Sprintf("%.1f", mib), ws.Busy, fmt.Sprintf("%.0f", rate))
	}
	workers.Print()
	fmt.Fprintln(w)

	summary := newTable("Metric", "Value")
	summary.AddRow("workers", d.Workers)
	summary.AddRow("chunks", d.Chunks)
	summary.AddRow("records", d.Records())
	summary.AddRow("stations", d.Stations)
	if l := d.ChunkLatency; l != nil {
		summary.AddRow("chunk p50", l.Time.P50)
		summary.AddRow("chunk p99", l.Time.P99)
		summary.AddRow("chunk max", l.Time.Max)
	}
	summary.AddRow("longest name", d.LongestName)
	summary.AddRow("longest name bytes", len(d.LongestName))
	summary.Print()
}
