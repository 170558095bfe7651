package record

import (
	"bytes"
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"obrc/chunk"
	"obrc/region"
)

// Violation describes a record that does not match `name;value\n`.
type Violation struct {
	Offset int64
	Reason string
	Record []byte
}

func (v *Violation) Error() string {
	return fmt.Sprintf("offset %d: %s: %q", v.Offset, v.Reason, v.Record)
}

// Validate checks every record in data and returns at most limit
// violations. base is the offset of data within the file. A limit of zero
// or less means no limit.
func Validate(data []byte, base int64, limit int) []*Violation {
	var ret []*Violation
	add := func(off int, reason string, rec []byte) bool {
		ret = append(ret, &Violation{
			Offset: base + int64(off),
			Reason: reason,
			Record: bytes.Clone(rec),
		})
		return limit > 0 && len(ret) >= limit
	}

	for off := 0; off < len(data); {
		line := data[off:]
		next := len(data)
		if i := bytes.IndexByte(line, TERMINATOR); i >= 0 {
			line = line[:i]
			next = off + i + 1
		} else if add(off, "missing terminator", line) {
			return ret
		}

		if reason := checkRecord(line); reason != "" && add(off, reason, line) {
			return ret
		}
		off = next
	}
	return ret
}

func checkRecord(line []byte) string {
	name, value, ok := bytes.Cut(line, []byte{SEPARATOR})
	switch {
	case !ok:
		return "missing separator"
	case len(name) == 0:
		return "empty name"
	case !validValue(value):
		return "malformed value"
	}
	return ""
}

// validValue reports whether v matches -?\d{1,2}\.\d.
func validValue(v []byte) bool {
	if len(v) > 0 && v[0] == '-' {
		v = v[1:]
	}
	if len(v) != 3 && len(v) != 4 {
		return false
	}
	for i, c := range v {
		if i == len(v)-2 {
			if c != '.' {
				return false
			}
		} else if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ValidateRegion checks every chunk of r in parallel and returns all
// violations combined, in file order, or nil if the input conforms.
func ValidateRegion(ctx context.Context, r *region.Region, chunks []chunk.Chunk, workers, limit int) error {
	found := make([][]*Violation, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	data := r.Bytes()
	for i, c := range chunks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			found[i] = Validate(data[c.Begin:c.End], int64(c.Begin), limit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("unable to validate input: %w", err)
	}

	var result *multierror.Error
	n := 0
	for _, vs := range found {
		for _, v := range vs {
			if limit > 0 && n >= limit {
				return result.ErrorOrNil()
			}
			result = multierror.Append(result, v)
			n++
		}
	}
	return result.ErrorOrNil()
}
