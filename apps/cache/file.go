// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
)

const (
	// lockTimeout bounds how long a reader or writer waits for the
	// cross-process lock before proceeding without it. A crashed holder must
	// not wedge every other process using the cache.
	lockTimeout   = 100 * time.Millisecond
	lockRetryWait = 10 * time.Millisecond
)

// FileMedium stores the cache snapshot in a single file. A sibling ".lock"
// file guards against concurrent writers in other processes.
type FileMedium struct {
	path     string
	lockPath string
}

// NewFileMedium returns a medium keeping the snapshot at path. The directory
// is created on first use.
func NewFileMedium(path string) *FileMedium {
	return &FileMedium{path: path, lockPath: path + ".lock"}
}

// Read implements Medium. A missing file means no snapshot.
func (m *FileMedium) Read() ([]byte, error) {
	unlock, err := m.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write implements Medium. The snapshot lands in a temp file in the same
// directory and is renamed over the target so readers never see a partial
// write. Files are owner-only.
func (m *FileMedium) Write(data []byte) error {
	unlock, err := m.lock()
	if err != nil {
		return err
	}
	defer unlock()

	tmp := fmt.Sprintf("%s.%d.%d.tmp", m.path, os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if runtime.GOOS == "windows" {
		// Windows cannot rename over an existing file.
		_ = os.Remove(m.path)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// lock takes the cross-process lock, failing open after lockTimeout so a
// crashed holder cannot hang the caller.
func (m *FileMedium) lock() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(m.path), 0700); err != nil {
		return nil, err
	}

	fl := flock.New(m.lockPath)
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, lockRetryWait)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return func() {}, nil
		}
		return nil, err
	}
	if !locked {
		return func() {}, nil
	}
	return func() { _ = fl.Unlock() }, nil
}
