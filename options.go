package docstore

import (
	"os"
	"time"
)

// Clock returns the current time. It is used to stamp document metadata.
type Clock func() time.Time

// Options configures MemoryStore and FileStore behavior.
type Options struct {
	FileMode os.FileMode // Permission bits for document files
	DirMode  os.FileMode // Permission bits for the data and staging directories
	Clock    Clock       // Time source for metadata timestamps
}

// OptionFunc is a functional option for configuring a store.
type OptionFunc func(opts *Options)

// WithFileMode sets the file permission mode for document files.
// Default is 0644 (owner read/write, group and others read-only).
// Ignored by MemoryStore.
func WithFileMode(mode os.FileMode) OptionFunc {
	return func(opts *Options) {
		opts.FileMode = mode
	}
}

// WithDirMode sets the permission mode for the data directory.
// Default is 0755 (owner read/write/execute, group and others read/execute).
// Ignored by MemoryStore.
func WithDirMode(mode os.FileMode) OptionFunc {
	return func(opts *Options) {
		opts.DirMode = mode
	}
}

// WithClock sets the time source used for the received_at metadata field.
//
//	store := docstore.NewMemoryStore(docstore.WithClock(func() time.Time {
//	    return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
//	}))
func WithClock(clock Clock) OptionFunc {
	return func(opts *Options) {
		opts.Clock = clock
	}
}

// defaultOpts must not be mutated; newOptions copies it.
var defaultOpts = &Options{
	FileMode: 0644,
	DirMode:  0755,
	Clock:    time.Now,
}

func newOptions(opts []OptionFunc) *Options {
	options := &Options{
		FileMode: defaultOpts.FileMode,
		DirMode:  defaultOpts.DirMode,
		Clock:    defaultOpts.Clock,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.Clock == nil {
		options.Clock = time.Now
	}
	return options
}
