//go:build linux

package region

import (
	"errors"
	"math"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

var errTooLarge = errors.New("file does not fit in the address space")

// Open maps the file at path read-only. The mapping sits at the head of an
// anonymous reservation that extends at least Padding bytes past the end of
// the file, so reads into the padding hit zero pages and never fault, even
// when the file size is an exact multiple of the page size.
func Open(path string) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Kind: KindOpen, Path: path, Err: err}
	}
	// The mapping outlives the descriptor.
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, &Error{Kind: KindStat, Path: path, Err: err}
	}
	size := fi.Size()
	if size == 0 {
		return alloc(0), nil
	}
	if size > math.MaxInt-2*Padding-int64(os.Getpagesize()) {
		return nil, &Error{Kind: KindMap, Path: path, Err: errTooLarge}
	}

	n := int(size)
	page := os.Getpagesize()
	total := (n + Padding + page - 1) &^ (page - 1)

	reserve, err := unix.Mmap(-1, 0, total, unix.PROT_READ, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, &Error{Kind: KindMap, Path: path, Err: err}
	}
	_, err = unix.MmapPtr(
		int(f.Fd()), 0,
		unsafe.Pointer(&reserve[0]), uintptr(n),
		unix.PROT_READ, unix.MAP_PRIVATE|unix.MAP_FIXED,
	)
	if err != nil {
		_ = unix.Munmap(reserve)
		return nil, &Error{Kind: KindMap, Path: path, Err: err}
	}
	// Advisory only.
	_ = unix.Madvise(reserve[:n], unix.MADV_SEQUENTIAL)

	return &Region{
		full: reserve[: n+Padding : n+Padding],
		n:    n,
		closer: func() error {
			return unix.Munmap(reserve)
		},
	}, nil
}
