// Package lock provides the project-scoped exclusive advisory lock that
// serializes every mutating docseal operation.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/docseal/docseal/internal/repo"
	"github.com/docseal/docseal/pkg/clock"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/model"
)

// DefaultRetryInterval is the wait between acquisition attempts.
const DefaultRetryInterval = 50 * time.Millisecond

// Manager acquires the advisory lock on .docseal/op.lock.
type Manager struct {
	path    string
	clock   clock.Clock
	timeout time.Duration
	retry   time.Duration
}

// NewManager creates a lock manager for the project using its configured
// lock_timeout.
func NewManager(p *repo.Project) *Manager {
	return &Manager{
		path:    p.OpLockPath(),
		clock:   p.Clock,
		timeout: p.Config.LockTimeoutDuration(),
		retry:   DefaultRetryInterval,
	}
}

// WithTimeout returns a copy of m using timeout instead of the configured one.
func (m *Manager) WithTimeout(timeout time.Duration) *Manager {
	c := *m
	c.timeout = timeout
	return &c
}

// Handle is a held lock. Release it exactly once.
type Handle struct {
	file *os.File
	info model.HolderInfo
}

// Info describes the holder.
func (h *Handle) Info() model.HolderInfo { return h.info }

// Acquire takes the exclusive lock, retrying until the timeout elapses or
// ctx is done. A lock still held at the deadline yields ErrLockConflict.
func (m *Manager) Acquire(ctx context.Context, purpose string) (*Handle, error) {
	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("open lock file: %v", err)
	}

	deadline := m.clock.Now().Add(m.timeout)
	for {
		err := tryLock(f)
		if err == nil {
			break
		}
		if !errors.Is(err, errWouldBlock) {
			f.Close()
			return nil, errclass.ErrIOFailure.WithMessagef("lock %s: %v", m.path, err)
		}
		if !m.clock.Now().Before(deadline) {
			holder, _ := readHolder(f)
			f.Close()
			return nil, conflictError(holder)
		}
		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-m.clock.After(m.retry):
		}
	}

	h := &Handle{
		file: f,
		info: model.HolderInfo{
			PID:        os.Getpid(),
			Purpose:    purpose,
			Nonce:      uuid.NewString(),
			AcquiredAt: m.clock.Now().UTC(),
		},
	}
	if err := writeHolder(f, h.info); err != nil {
		unlock(f)
		f.Close()
		return nil, errclass.ErrIOFailure.WithMessagef("write lock holder: %v", err)
	}
	return h, nil
}

// Release clears the holder record and drops the lock.
func (h *Handle) Release() error {
	if h == nil || h.file == nil {
		return nil
	}
	defer func() { h.file = nil }()
	if err := h.file.Truncate(0); err != nil {
		unlock(h.file)
		h.file.Close()
		return fmt.Errorf("clear lock holder: %w", err)
	}
	if err := unlock(h.file); err != nil {
		h.file.Close()
		return fmt.Errorf("unlock: %w", err)
	}
	return h.file.Close()
}

// Holder reports the current holder, or nil when the lock is free.
func (m *Manager) Holder() (*model.HolderInfo, error) {
	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("open lock file: %v", err)
	}
	defer f.Close()

	if err := tryLock(f); err == nil {
		unlock(f)
		return nil, nil
	} else if !errors.Is(err, errWouldBlock) {
		return nil, errclass.ErrIOFailure.WithMessagef("probe lock: %v", err)
	}
	holder, err := readHolder(f)
	if err != nil {
		return &model.HolderInfo{}, nil
	}
	return holder, nil
}

func conflictError(holder *model.HolderInfo) error {
	if holder == nil || holder.PID == 0 {
		return errclass.ErrLockConflict.WithMessage("project is locked by another operation")
	}
	return errclass.ErrLockConflict.WithMessagef("project is locked by pid %d (%s) since %s",
		holder.PID, holder.Purpose, holder.AcquiredAt.Format(time.RFC3339))
}

func writeHolder(f *os.File, info model.HolderInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt(append(data, '\n'), 0); err != nil {
		return err
	}
	return f.Sync()
}

func readHolder(f *os.File) (*model.HolderInfo, error) {
	data, err := io.ReadAll(io.NewSectionReader(f, 0, 1<<16))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("no holder recorded")
	}
	var info model.HolderInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
