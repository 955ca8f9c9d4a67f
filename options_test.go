package docstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewOptions_Defaults(t *testing.T) {
	opts := newOptions(nil)

	if opts.FileMode != 0644 {
		t.Errorf("FileMode = %o, want 0644", opts.FileMode)
	}
	if opts.DirMode != 0755 {
		t.Errorf("DirMode = %o, want 0755", opts.DirMode)
	}
	if opts.Clock == nil {
		t.Error("Clock must default to time.Now")
	}
}

func TestNewOptions_DoesNotMutateDefaults(t *testing.T) {
	_ = newOptions([]OptionFunc{WithFileMode(0600), WithDirMode(0700)})

	if defaultOpts.FileMode != 0644 || defaultOpts.DirMode != 0755 {
		t.Errorf("defaults mutated: file %o dir %o", defaultOpts.FileMode, defaultOpts.DirMode)
	}
}

func TestWithClock_NilFallsBack(t *testing.T) {
	opts := newOptions([]OptionFunc{WithClock(nil)})
	if opts.Clock == nil {
		t.Fatal("nil clock must fall back to time.Now")
	}
	if time.Since(opts.Clock()) > time.Minute {
		t.Error("fallback clock is not the wall clock")
	}
}

func TestWithFileMode(t *testing.T) {
	dir := t.TempDir()

	fs, err := NewFileStore(dir, WithFileMode(0600), WithDirMode(0700))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	if err := fs.Set(context.Background(), "k", []byte(`{}`)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "k.json"))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}

	// umask may only remove bits
	if mode := info.Mode().Perm(); mode&^0600 != 0 {
		t.Errorf("file mode: got %o, expected at most 0600", mode)
	}
}
