//go:build !linux

package engine

import "errors"

func pin(int) (func(), error) {
	return nil, errors.New("thread pinning is not supported on this platform")
}
