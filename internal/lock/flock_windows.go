//go:build windows

package lock

import (
	"errors"
	"os"
	"sync"
)

// Windows has no flock; an in-process mutex keyed by path gives a
// single-user CLI the same serialization within one process.
var (
	errWouldBlock = errors.New("lock held")
	heldMu        sync.Mutex
	held          = map[string]bool{}
)

func tryLock(f *os.File) error {
	heldMu.Lock()
	defer heldMu.Unlock()
	if held[f.Name()] {
		return errWouldBlock
	}
	held[f.Name()] = true
	return nil
}

func unlock(f *os.File) error {
	heldMu.Lock()
	defer heldMu.Unlock()
	delete(held, f.Name())
	return nil
}
