package stats

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/exp/slices"
)

// Sort orders entries by byte-wise ascending key.
func Sort(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		return bytes.Compare(a.Key, b.Key)
	})
}

// Sorted returns a sorted copy of the entries of t.
func Sorted(t *Table) []Entry {
	entries := slices.Clone(t.Entries())
	Sort(entries)
	return entries
}

// AppendReport appends `{name=min/avg/max, ...}` and a newline to dst.
func AppendReport(dst []byte, entries []Entry) []byte {
	dst = append(dst, '{')
	for i, e := range entries {
		if i > 0 {
			dst = append(dst, ", "...)
		}
		dst = append(dst, e.Key...)
		dst = append(dst, '=')
		dst = appendTenths(dst, int64(e.Stats.Min))
		dst = append(dst, '/')
		dst = appendTenths(dst, e.Stats.AvgTenths())
		dst = append(dst, '/')
		dst = appendTenths(dst, int64(e.Stats.Max))
	}
	return append(dst, '}', '\n')
}

func WriteReport(w io.Writer, entries []Entry) error {
	if _, err := w.Write(AppendReport(nil, entries)); err != nil {
		return fmt.Errorf("unable to write report: %w", err)
	}
	return nil
}

// appendTenths formats v/10 with exactly one fractional digit.
func appendTenths(dst []byte, v int64) []byte {
	if v < 0 {
		dst = append(dst, '-')
		v = -v
	}
	dst = strconv.AppendInt(dst, v/10, 10)
	return append(dst, '.', byte('0'+v%10))
}
