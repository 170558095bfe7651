package region

import (
	"fmt"
	"unsafe"
)

const (
	// Align is the alignment of the first byte of every region.
	Align = 64
	// Padding is the number of zero bytes guaranteed to be readable past
	// the logical end of every region. It covers at least one full scanner
	// window past any chunk end.
	Padding = 64
)

// Region is a read-only byte buffer that stays readable for Padding bytes
// past its logical end. Byte scanners are only ever constructed from a
// Region, never from a bare slice, so the over-read guarantee lives here.
type Region struct {
	full   []byte
	n      int
	closer func() error
}

type Kind int

const (
	KindOpen Kind = iota
	KindStat
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindStat:
		return "stat"
	case KindMap:
		return "map"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error reports a failure to obtain a region for a file.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindOpen:
		return fmt.Sprintf("unable to open %s: %v", e.Path, e.Err)
	case KindStat:
		return fmt.Sprintf("unable to get size of %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("unable to map %s: %v", e.Path, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ExitCode is the process exit code for the failure kind.
func (e *Error) ExitCode() int {
	return 2 + int(e.Kind)
}

// FromBytes copies b into a new aligned, padded heap region.
func FromBytes(b []byte) *Region {
	r := alloc(len(b))
	copy(r.full, b)
	return r
}

// alloc returns a zeroed heap region of logical length n.
func alloc(n int) *Region {
	buf := make([]byte, n+Padding+Align)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(&buf[0])) % Align); rem != 0 {
		off = Align - rem
	}
	return &Region{
		full: buf[off : off+n+Padding : off+n+Padding],
		n:    n,
	}
}

// Bytes returns the logical content.
func (r *Region) Bytes() []byte {
	return r.full[:r.n:r.n]
}

// Padded returns the logical content followed by Padding zero bytes.
func (r *Region) Padded() []byte {
	return r.full
}

func (r *Region) Len() int {
	return r.n
}

// Close releases the memory backing the region. The region must not be
// used afterwards.
func (r *Region) Close() error {
	if r.closer == nil {
		r.full = nil
		return nil
	}
	closer := r.closer
	r.closer = nil
	r.full = nil
	if err := closer(); err != nil {
		return fmt.Errorf("unable to release region: %w", err)
	}
	return nil
}
