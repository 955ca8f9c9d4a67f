package docstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	ErrFileClosed = errors.New("pending file is closed")
)

// pendingFile is a document being written to the staging directory. It
// implements io.Writer; CommitAs renames it into place and Discard removes
// it.
//
//	pf, err := fs.newPendingFile()
//	if err != nil {
//		return err
//	}
//	defer pf.Discard() // no-op after a successful commit
//
//	if _, err := pf.Write(data); err != nil {
//		return err
//	}
//	return pf.CommitAs(key)
type pendingFile struct {
	store *FileStore

	tmpFile *os.File
	tmpPath string

	mu     sync.Mutex
	closed bool
	err    error // sticky
}

func (fs *FileStore) newPendingFile() (*pendingFile, error) {
	tmpPath := filepath.Join(fs.root, tempDirName, newID())
	f, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, fs.opts.FileMode)
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}

	return &pendingFile{
		store:   fs,
		tmpFile: f,
		tmpPath: tmpPath,
	}, nil
}

func (pf *pendingFile) Write(p []byte) (n int, err error) {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	if pf.closed {
		return 0, ErrFileClosed
	}

	if pf.err != nil {
		return 0, pf.err
	}

	written, err := pf.tmpFile.Write(p)
	if err != nil {
		pf.err = err
		return written, err
	}
	return written, nil
}

// CommitAs closes the temp file and atomically renames it to <key>.json.
// The pending file cannot be reused afterwards.
func (pf *pendingFile) CommitAs(key string) error {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	if pf.closed {
		return ErrFileClosed
	}

	if pf.err != nil {
		return pf.err
	}

	if err := validateFileKey(key); err != nil {
		pf.err = err
		return pf.err
	}

	pf.closed = true

	defer func() {
		if pf.err != nil && pf.tmpPath != "" {
			os.Remove(pf.tmpPath)
		}
	}()

	if err := pf.tmpFile.Sync(); err != nil {
		pf.tmpFile.Close()
		pf.err = fmt.Errorf("syncing temp file: %w", err)
		return pf.err
	}

	if err := pf.tmpFile.Close(); err != nil {
		pf.err = err
		return pf.err
	}

	if err := os.Rename(pf.tmpPath, pf.store.pathFromKey(key)); err != nil {
		pf.err = fmt.Errorf("committing document %q: %w", key, err)
		return pf.err
	}

	return nil
}

// Discard closes the pending file and removes it without committing.
// Safe to call multiple times and after CommitAs.
func (pf *pendingFile) Discard() error {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	if pf.closed {
		return nil
	}

	pf.closed = true

	if err := pf.tmpFile.Close(); err != nil && pf.err == nil {
		pf.err = err
	}

	os.Remove(pf.tmpPath) // best effort

	return pf.err
}
