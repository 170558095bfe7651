package stats

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestTableGet(t *testing.T) {
	tbl := NewTable(4)
	tbl.Get([]byte("Hamburg")).Add(120)
	tbl.Get([]byte("Bulawayo")).Add(89)
	tbl.Get([]byte("Hamburg")).Add(-30)

	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, statsOf(120, -30), *tbl.Get([]byte("Hamburg")))
	assert.Equal(t, statsOf(89), *tbl.Get([]byte("Bulawayo")))
	assert.Equal(t, 2, tbl.Len())
}

func TestTableKeysAreNotCopied(t *testing.T) {
	buf := []byte("Hamburg;12.0\n")
	tbl := NewTable(1)
	tbl.Get(buf[:7]).Add(120)

	require.Len(t, tbl.Entries(), 1)
	assert.Same(t, &buf[0], &tbl.Entries()[0].Key[0])
}

func TestTableGrow(t *testing.T) {
	tbl := NewTable(0)
	want := make(map[string]Stats)

	rng := rand.New(rand.NewSource(5))
	for i := range 50_000 {
		key := fmt.Sprintf("station-%d", rng.Intn(10_000))
		v := int16(i%1999 - 999)
		tbl.Get([]byte(key)).Add(v)

		s, ok := want[key]
		if !ok {
			s = New()
		}
		s.Add(v)
		want[key] = s
	}

	require.Equal(t, len(want), tbl.Len())
	tbl.Range(func(key []byte, s Stats) {
		assert.Equal(t, want[string(key)], s, "key %s", key)
	})
}

func TestTableMerge(t *testing.T) {
	a := NewTable(2)
	a.Get([]byte("X")).Add(123)
	a.Get([]byte("Y")).Add(-50)

	b := NewTable(2)
	b.Get([]byte("X")).Add(78)
	b.Get([]byte("Z")).Add(1)

	c := NewTable(2)
	c.Get([]byte("Y")).Add(-70)

	merged := Merge([]*Table{a, nil, b, c})
	assert.Same(t, a, merged)
	assert.Equal(t, 3, merged.Len())
	assert.Equal(t, statsOf(123, 78), *merged.Get([]byte("X")))
	assert.Equal(t, statsOf(-50, -70), *merged.Get([]byte("Y")))
	assert.Equal(t, statsOf(1), *merged.Get([]byte("Z")))
}

func TestTableMergeOrderIndependent(t *testing.T) {
	build := func(seed uint64) []*Table {
		rng := rand.New(rand.NewSource(seed))
		var tables []*Table
		for range 4 {
			tbl := NewTable(8)
			for range 500 {
				key := []byte{'a' + byte(rng.Intn(26)), 'a' + byte(rng.Intn(26))}
				tbl.Get(key).Add(int16(rng.Intn(1999) - 999))
			}
			tables = append(tables, tbl)
		}
		return tables
	}

	forward := build(9)
	backward := build(9)
	for i, j := 0, len(backward)-1; i < j; i, j = i+1, j-1 {
		backward[i], backward[j] = backward[j], backward[i]
	}

	assert.Equal(t, Sorted(Merge(forward)), Sorted(Merge(backward)))
}

func TestMergeNone(t *testing.T) {
	assert.Equal(t, 0, Merge(nil).Len())
}

func TestSortedReport(t *testing.T) {
	tbl := NewTable(4)
	tbl.Get([]byte("Y")).Add(-50)
	tbl.Get([]byte("X")).Add(123)
	tbl.Get([]byte("X")).Add(78)

	entries := Sorted(tbl)
	require.Len(t, entries, 2)
	assert.Equal(t, "X", string(entries[0].Key))
	assert.Equal(t, "{X=7.8/10.1/12.3, Y=-5.0/-5.0/-5.0}\n", string(AppendReport(nil, entries)))
}

func TestSortIsBytewise(t *testing.T) {
	entries := []Entry{
		{Key: []byte("b")}, {Key: []byte("Zürich")}, {Key: []byte("Z")},
		{Key: []byte("a")}, {Key: []byte("Ab")}, {Key: []byte("Åland")},
	}
	Sort(entries)

	var keys []string
	for _, e := range entries {
		keys = append(keys, string(e.Key))
	}
	assert.Equal(t, []string{"Ab", "Z", "Zürich", "a", "b", "Åland"}, keys)
}

func TestAppendTenths(t *testing.T) {
	tests := map[int64]string{
		0: "0.0", 5: "0.5", -5: "-0.5", 123: "12.3", -123: "-12.3",
		999: "99.9", -999: "-99.9", 100: "10.0", -1: "-0.1",
	}
	for v, want := range tests {
		assert.Equal(t, want, string(appendTenths(nil, v)))
	}
}

func TestWriteReportEmpty(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, WriteReport(&b, nil))
	assert.Equal(t, "{}\n", b.String())
}

func BenchmarkTableGet(b *testing.B) {
	keys := make([][]byte, 400)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("station number %d", i))
	}
	tbl := NewTable(len(keys))

	b.ResetTimer()
	for i := range b.N {
		tbl.Get(keys[i%len(keys)]).Add(int16(i % 999))
	}
}
