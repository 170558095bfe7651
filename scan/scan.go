// Package scan finds successive occurrences of a byte in a region, one
// fixed-width window at a time.
//
// Each window is compared as a vector of 64-bit lanes (SWAR) and reduced to
// a bitmask with one bit per byte, the same shape a SIMD compare plus
// movemask produces. Matches are then consumed lowest bit first.
package scan

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"obrc/region"
)

// Width is the number of bytes compared per window.
type Width int

const (
	Width16 Width = 16
	Width32 Width = 32

	DefaultWidth = Width32
)

func (w Width) Valid() bool {
	return w == Width16 || w == Width32
}

const (
	lo7  = 0x7f7f7f7f7f7f7f7f
	ones = 0x0101010101010101
	// movemask gathers bit 0 of every byte into the top byte.
	movemask = 0x0102040810204080
)

// Scanner is a cursor over a region that yields the index of every
// occurrence of a target byte in order.
type Scanner struct {
	buf     []byte
	pattern uint64
	width   int
	pos     int
	mask    uint32
}

// New returns a scanner that reports occurrences of target at indexes
// greater than or equal to begin.
func New(r *region.Region, begin int, target byte, w Width) *Scanner {
	if !w.Valid() {
		panic(fmt.Sprintf("scan: unsupported width %d", w))
	}
	if begin < 0 || begin > r.Len() {
		panic(fmt.Sprintf("scan: begin %d outside region of length %d", begin, r.Len()))
	}

	width := int(w)
	s := &Scanner{
		buf:     r.Padded(),
		pattern: ones * uint64(target),
		width:   width,
		pos:     begin &^ (width - 1),
	}
	s.refresh()
	s.skip(begin - s.pos)
	return s
}

// Next returns the index of the next occurrence of the target byte after
// the previously returned one. It panics if there is none before the end
// of the region's padding.
func (s *Scanner) Next() int {
	for s.mask == 0 {
		s.pos += s.width
		s.refresh()
	}

	idx := bits.TrailingZeros32(s.mask)
	s.skip(idx + 1)
	return s.pos + idx
}

func (s *Scanner) refresh() {
	var m uint32
	window := s.buf[s.pos : s.pos+s.width]
	for i := 0; i < len(window); i += 8 {
		m |= uint32(match(binary.LittleEndian.Uint64(window[i:]), s.pattern)) << i
	}
	s.mask = m
}

// skip clears the mask bits of the first count bytes of the window.
func (s *Scanner) skip(count int) {
	s.mask &= ^uint32(0) << count
}

// match returns a byte with bit i set when byte i of word equals the
// corresponding byte of pattern.
func match(word, pattern uint64) uint8 {
	x := word ^ pattern
	// High bit of each byte set iff the byte is zero; no borrows cross
	// byte boundaries, so every lane is exact.
	z := ^((x&lo7)+lo7 | x | lo7)
	return uint8(((z >> 7) * movemask) >> 56)
}
