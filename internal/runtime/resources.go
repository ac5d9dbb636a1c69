//go:build unix

// Package runtime tunes process resources of the supervisor before it
// spawns the agent, which inherits them.
package runtime

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ApplyRlimits raises the NOFILE soft limit to noFile, capped at the hard
// limit. Zero leaves the limit untouched. It returns the limit in effect.
func ApplyRlimits(noFile uint64) (uint64, error) {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		return 0, fmt.Errorf("getrlimit NOFILE: %w", err)
	}
	if noFile == 0 {
		return lim.Cur, nil
	}
	if noFile > lim.Max {
		noFile = lim.Max
	}
	lim.Cur = noFile
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		return 0, fmt.Errorf("setrlimit NOFILE: %w", err)
	}
	return lim.Cur, nil
}
