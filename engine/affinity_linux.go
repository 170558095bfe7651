//go:build linux

package engine

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Matches CPU_SETSIZE.
const maxCPUs = 1024

// pin binds the calling OS thread to one of the CPUs it is currently
// allowed to run on, chosen by worker id. The returned func restores the
// previous mask. The caller must hold runtime.LockOSThread.
func pin(id int) (func(), error) {
	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		return nil, fmt.Errorf("unable to get affinity: %w", err)
	}

	allowed := make([]int, 0, prev.Count())
	for cpu := range maxCPUs {
		if prev.IsSet(cpu) {
			allowed = append(allowed, cpu)
		}
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("no CPUs in affinity mask")
	}

	var set unix.CPUSet
	set.Zero()
	set.Set(allowed[id%len(allowed)])
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return nil, fmt.Errorf("unable to set affinity: %w", err)
	}

	return func() {
		_ = unix.SchedSetaffinity(0, &prev)
	}, nil
}
