package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	tempDirName = ".tmp"
	fileExt     = ".json"

	// Leaves room for fileExt within the common 255 byte name limit.
	maxFileKeyLength = 255 - len(fileExt)
)

// FileStore keeps one JSON file per key inside a data directory. Files are
// named <key>.json and are written with 2-space indentation.
//
// Writes go to a temp file in the .tmp staging directory first and are
// renamed into place, so a document is either fully replaced or untouched.
type FileStore struct {
	root string
	opts *Options
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens a file store rooted at dir, creating the directory
// (and any missing parents) if needed.
func NewFileStore(dir string, opts ...OptionFunc) (*FileStore, error) {
	options := newOptions(opts)

	root := filepath.Clean(dir)
	if err := os.MkdirAll(root, options.DirMode); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(root, tempDirName), options.DirMode); err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}

	return &FileStore{
		root: root,
		opts: options,
	}, nil
}

// Dir returns the data directory.
func (fs *FileStore) Dir() string {
	return fs.root
}

func (fs *FileStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	if err := validateFileKey(key); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fs.pathFromKey(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("document %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("get document %q: %w", key, err)
	}

	return json.RawMessage(data), nil
}

// Set writes body to <key>.json, fully replacing prior content.
func (fs *FileStore) Set(ctx context.Context, key string, body []byte) error {
	if err := validateFileKey(key); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(body), "", "  "); err != nil {
		return fmt.Errorf("set document %q: %w: %v", key, ErrInvalidJSON, err)
	}
	buf.WriteByte('\n')

	pf, err := fs.newPendingFile()
	if err != nil {
		return err
	}
	defer pf.Discard()

	if _, err := buf.WriteTo(pf); err != nil {
		return fmt.Errorf("set document %q: %w", key, err)
	}

	return pf.CommitAs(key)
}

// Keys lists the regular files of the data directory by name, in lexical
// order. Names are returned verbatim, including the .json suffix.
func (fs *FileStore) Keys(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(fs.root)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", fs.root, err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() {
			continue
		}
		keys = append(keys, e.Name())
	}
	return keys, nil
}

func (fs *FileStore) pathFromKey(key string) string {
	return filepath.Join(fs.root, key+fileExt)
}

// validateFileKey rejects keys that could escape the data directory or
// collide with the staging directory.
func validateFileKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	if len(key) > maxFileKeyLength {
		return ErrKeyLengthExceeds
	}

	if key == "." || key == ".." || strings.Contains(key, "..") {
		return fmt.Errorf("relative path traversal not allowed: %w", ErrInvalidKey)
	}

	if strings.HasPrefix(key, ".") {
		return fmt.Errorf("key cannot start with a dot: %w", ErrInvalidKey)
	}

	for i, r := range key {
		if r == '/' || r == '\\' {
			return fmt.Errorf("path separator at position %d: %w", i, ErrInvalidKey)
		}
		if r == 0 {
			return fmt.Errorf("null bytes not allowed: %w", ErrInvalidKey)
		}
		if unicode.IsControl(r) {
			return fmt.Errorf("invalid character %q at position %d: %w", r, i, ErrInvalidKey)
		}
	}

	if filepath.IsAbs(key) || filepath.VolumeName(key) != "" {
		return fmt.Errorf("absolute paths are not allowed: %w", ErrInvalidKey)
	}

	return nil
}
