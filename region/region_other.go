//go:build !linux

package region

import (
	"io"
	"os"
)

// Open reads the file at path into an aligned, padded heap region.
func Open(path string) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Kind: KindOpen, Path: path, Err: err}
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, &Error{Kind: KindStat, Path: path, Err: err}
	}

	r := alloc(int(fi.Size()))
	if _, err := io.ReadFull(f, r.full[:r.n]); err != nil {
		return nil, &Error{Kind: KindMap, Path: path, Err: err}
	}
	return r, nil
}
