package chunk

import (
	"bytes"
	"sync/atomic"
)

const (
	DEFAULT_COARSE_FRACTION = 0.9
	DEFAULT_FINE_SIZE       = 2 * 1024 * 1024 // 2 MiB
)

// Chunk is the half-open range [Begin, End) of a buffer. Both ends sit on
// record boundaries.
type Chunk struct {
	Begin int
	End   int
}

func (c Chunk) Len() int {
	return c.End - c.Begin
}

// Slicer splits a buffer into record-aligned chunks up front and hands them
// out to concurrent workers through a shared atomic index.
//
// The first part of the buffer is cut into one large chunk per worker so
// that the index is rarely touched while there is plenty of work. The tail
// is cut into small chunks so that workers which finish early can pick up
// the remainder instead of waiting on a straggler.
type Slicer struct {
	// Accessed atomically; first for 64-bit alignment on 32-bit platforms.
	next   uint64
	chunks []Chunk

	coarseFraction float64
	fineSize       int
}

type SlicerOption func(*Slicer) *Slicer

// WithCoarseFraction sets the share of the buffer split into one chunk per
// worker. It is clamped to [0, 1].
func WithCoarseFraction(f float64) SlicerOption {
	return func(s *Slicer) *Slicer {
		s.coarseFraction = min(max(f, 0), 1)
		return s
	}
}

// WithFineSize sets the target size of the tail chunks.
func WithFineSize(n int) SlicerOption {
	return func(s *Slicer) *Slicer {
		if n > 0 {
			s.fineSize = n
		}
		return s
	}
}

// NewSlicer splits data, which must be empty or end with '\n', for the
// given number of workers.
func NewSlicer(data []byte, workers int, options ...SlicerOption) *Slicer {
	s := &Slicer{
		coarseFraction: DEFAULT_COARSE_FRACTION,
		fineSize:       DEFAULT_FINE_SIZE,
	}
	for _, opt := range options {
		s = opt(s)
	}
	workers = max(workers, 1)

	n := len(data)
	coarseEnd := int(float64(n) * s.coarseFraction)
	step := coarseEnd / workers

	begin := 0
	for i := range workers {
		target := (i + 1) * step
		if i == workers-1 {
			target = coarseEnd
		}
		begin = s.add(data, begin, target)
	}
	for begin < n {
		begin = s.add(data, begin, begin+s.fineSize)
	}
	return s
}

// add appends the chunk starting at begin whose end is target snapped
// forward to the next record boundary, and returns that end. Nothing is
// appended if the chunk would be empty.
func (s *Slicer) add(data []byte, begin, target int) int {
	if target <= begin || begin >= len(data) {
		return begin
	}
	end := len(data)
	if target < len(data) {
		if i := bytes.IndexByte(data[target-1:], '\n'); i >= 0 {
			end = target + i
		}
	}
	s.chunks = append(s.chunks, Chunk{Begin: begin, End: end})
	return end
}

// Next returns the next unclaimed chunk. It is safe for concurrent use and
// never hands out the same chunk twice; ok is false once all chunks have
// been claimed.
func (s *Slicer) Next() (c Chunk, ok bool) {
	i := atomic.AddUint64(&s.next, 1) - 1
	if i >= uint64(len(s.chunks)) {
		return Chunk{}, false
	}
	return s.chunks[i], true
}

// Chunks returns every chunk in buffer order. The slice must not be
// modified.
func (s *Slicer) Chunks() []Chunk {
	return s.chunks
}

func (s *Slicer) Len() int {
	return len(s.chunks)
}

// Reset makes every chunk available again. It must not race with Next.
func (s *Slicer) Reset() {
	atomic.StoreUint64(&s.next, 0)
}
