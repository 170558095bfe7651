package engine

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obrc/gen"
	"obrc/region"
	"obrc/scan"
	"obrc/stats"
)

// baseline aggregates data one line at a time with no tricks.
func baseline(t *testing.T, data []byte) map[string]stats.Stats {
	t.Helper()

	ret := make(map[string]stats.Stats)
	s := bufio.NewScanner(bytes.NewReader(data))
	for s.Scan() {
		name, value, ok := strings.Cut(s.Text(), ";")
		require.True(t, ok)
		tenths, err := strconv.Atoi(strings.Replace(value, ".", "", 1))
		require.NoError(t, err)

		st, ok := ret[name]
		if !ok {
			st = stats.New()
		}
		st.Add(int16(tenths))
		ret[name] = st
	}
	require.NoError(t, s.Err())
	return ret
}

func asMap(entries []stats.Entry) map[string]stats.Stats {
	ret := make(map[string]stats.Stats, len(entries))
	for _, e := range entries {
		ret[string(e.Key)] = e.Stats
	}
	return ret
}

func generate(t testing.TB, rows int, options ...gen.Option) []byte {
	var b bytes.Buffer
	require.NoError(t, gen.Generate(&b, rows, options...))
	return b.Bytes()
}

func TestRunExample(t *testing.T) {
	r := region.FromBytes([]byte("X;12.3\nY;-5.0\nX;7.8\n"))
	defer r.Close()

	res, err := New(WithWorkers(1)).Run(r)
	require.NoError(t, err)
	assert.Equal(t, "{X=7.8/10.1/12.3, Y=-5.0/-5.0/-5.0}\n", string(res.Report))
	assert.Nil(t, res.Diagnostics)

	var b bytes.Buffer
	require.NoError(t, res.WriteReport(&b))
	assert.Equal(t, string(res.Report), b.String())
}

func TestRunEmpty(t *testing.T) {
	r := region.FromBytes(nil)
	res, err := New(WithWorkers(4)).Run(r)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(res.Report))
	assert.Empty(t, res.Entries)
}

func TestRunMatchesBaseline(t *testing.T) {
	data := generate(t, 50_000, gen.WithStations(300), gen.WithSeed(3))
	want := baseline(t, data)
	r := region.FromBytes(data)

	for _, workers := range []int{1, 2, 3, 4, 8, 16} {
		for _, width := range []scan.Width{scan.Width16, scan.Width32} {
			t.Run(fmt.Sprintf("workers=%d/width=%d", workers, width), func(t *testing.T) {
				res, err := New(
					WithWorkers(workers),
					WithScanWidth(width),
					WithFineChunkSize(4096),
				).Run(r)
				require.NoError(t, err)
				assert.Equal(t, want, asMap(res.Entries))
			})
		}
	}
}

func TestRunBoundaryAttribution(t *testing.T) {
	// Two stations alternating, so every chunk boundary (coarse or fine)
	// falls between records of different stations.
	var b bytes.Buffer
	for i := range 20_000 {
		if i%2 == 0 {
			fmt.Fprintf(&b, "Alpha;%d.%d\n", i%50, i%10)
		} else {
			fmt.Fprintf(&b, "Beta;-%d.%d\n", i%50, i%10)
		}
	}
	data := b.Bytes()
	want := baseline(t, data)
	r := region.FromBytes(data)

	for workers := 1; workers <= 8; workers++ {
		for _, frac := range []float64{0.5, 0.9, 1} {
			res, err := New(
				WithWorkers(workers),
				WithCoarseFraction(frac),
				WithFineChunkSize(97),
			).Run(r)
			require.NoError(t, err)
			require.Equal(t, want, asMap(res.Entries), "workers %d fraction %.1f", workers, frac)
		}
	}
}

func TestRunIdempotent(t *testing.T) {
	r := region.FromBytes(generate(t, 20_000))

	e := New(WithWorkers(4), WithFineChunkSize(1024))
	first, err := e.Run(r)
	require.NoError(t, err)
	second, err := e.Run(r)
	require.NoError(t, err)
	assert.Equal(t, first.Report, second.Report)

	other, err := New(WithWorkers(1)).Run(r)
	require.NoError(t, err)
	assert.Equal(t, first.Report, other.Report)
}

func TestRunPinned(t *testing.T) {
	data := generate(t, 10_000)
	r := region.FromBytes(data)

	res, err := New(WithWorkers(3), WithPinThreads(true)).Run(r)
	require.NoError(t, err)
	assert.Equal(t, baseline(t, data), asMap(res.Entries))
}

func TestRunDiagnostics(t *testing.T) {
	data := generate(t, 10_000, gen.WithStations(20))
	r := region.FromBytes(data)

	res, err := New(WithWorkers(4), WithDiagnostics(true), WithFineChunkSize(2048)).Run(r)
	require.NoError(t, err)

	d := res.Diagnostics
	require.NotNil(t, d)
	assert.Equal(t, 4, d.Workers)
	assert.Equal(t, 20, d.Stations)
	assert.Equal(t, 10_000, d.Records())
	assert.Equal(t, int64(len(data)), d.Bytes)
	require.Len(t, d.PerWorker, 4)

	chunks := 0
	var bytesParsed int64
	for _, w := range d.PerWorker {
		chunks += w.Chunks
		bytesParsed += w.Bytes
	}
	assert.Equal(t, d.Chunks, chunks)
	assert.Equal(t, int64(len(data)), bytesParsed)
	require.NotNil(t, d.ChunkLatency)
	assert.Equal(t, d.Chunks, d.ChunkLatency.Count)

	var longest string
	for _, e := range res.Entries {
		if len(e.Key) > len(longest) {
			longest = string(e.Key)
		}
	}
	assert.Equal(t, longest, d.LongestName)

	var out bytes.Buffer
	d.Write(&out)
	assert.Contains(t, out.String(), "parse")
	assert.Contains(t, out.String(), longest)
}

func TestRunRejectsBadConfig(t *testing.T) {
	r := region.FromBytes([]byte("X;1.0\n"))

	_, err := New(WithScanWidth(scan.Width(24))).Run(r)
	assert.Error(t, err)

	_, err = New(WithCoarseFraction(1.5)).Run(r)
	assert.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	cfg := New(WithConfig(Config{Workers: 2})).Config()
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, DefaultConfig().ScanWidth, cfg.ScanWidth)
	assert.Equal(t, DefaultConfig().FineChunkSize, cfg.FineChunkSize)
	assert.Equal(t, DefaultConfig().CoarseFraction, cfg.CoarseFraction)
	assert.Equal(t, DefaultConfig().MapCapacity, cfg.MapCapacity)
}

func BenchmarkRun(b *testing.B) {
	data := generate(b, 1_000_000, gen.WithStations(400))
	r := region.FromBytes(data)

	for _, workers := range []int{1, 4, 8} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			e := New(WithWorkers(workers), WithFineChunkSize(256*1024))
			b.SetBytes(int64(len(data)))
			for range b.N {
				if _, err := e.Run(r); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
