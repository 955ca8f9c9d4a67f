package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// MemoryStore keeps documents in process memory. Contents are lost when
// the process exits.
//
// Every stored document carries a _metadata member recording when it was
// received and the size of the body it was built from. The body's members
// are spread into the stored object, so arrays and strings become
// index-keyed members and other non-object values contribute nothing.
type MemoryStore struct {
	opts *Options

	mu    sync.RWMutex
	docs  map[string]json.RawMessage
	order []string // first-insertion order of keys
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Dumper = (*MemoryStore)(nil)
)

func NewMemoryStore(opts ...OptionFunc) *MemoryStore {
	return &MemoryStore{
		opts: newOptions(opts),
		docs: make(map[string]json.RawMessage),
	}
}

func (ms *MemoryStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	if err := validateMemoryKey(key); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	doc, ok := ms.docs[key]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", key, ErrNotFound)
	}
	return doc, nil
}

// Set stores body under key, replacing any previous document. The
// metadata is computed before the lock is taken, so of two concurrent
// writes to the same key the one that reaches the map last wins.
func (ms *MemoryStore) Set(ctx context.Context, key string, body []byte) error {
	if err := validateMemoryKey(key); err != nil {
		return err
	}

	doc, err := ms.withMetadata(body)
	if err != nil {
		return fmt.Errorf("set document %q: %w", key, err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.docs[key]; !exists {
		ms.order = append(ms.order, key)
	}
	ms.docs[key] = doc
	return nil
}

func (ms *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	keys := make([]string, len(ms.order))
	copy(keys, ms.order)
	return keys, nil
}

// All returns a snapshot of every stored document.
func (ms *MemoryStore) All(ctx context.Context) (map[string]json.RawMessage, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	all := make(map[string]json.RawMessage, len(ms.docs))
	for k, v := range ms.docs {
		all[k] = v
	}
	return all, nil
}

// Len returns the number of stored documents.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.docs)
}

// withMetadata spreads body into a fresh object and appends the _metadata
// member. Objects keep their member order, with the last value winning for
// repeated names. Arrays and strings contribute one member per index, other
// values contribute none. An existing _metadata member is replaced in place.
func (ms *MemoryStore) withMetadata(body []byte) (json.RawMessage, error) {
	if !json.Valid(body) {
		return nil, ErrInvalidJSON
	}

	var buf bytes.Buffer
	spread(&buf, gjson.ParseBytes(body))

	meta, err := json.Marshal(Metadata{
		ReceivedAt: ms.opts.Clock(),
		SizeBytes:  len(body),
	})
	if err != nil {
		return nil, err
	}

	doc, err := sjson.SetRawBytes(buf.Bytes(), metadataField, meta)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(doc), nil
}

// spread writes the members v contributes to an object literal.
func spread(buf *bytes.Buffer, v gjson.Result) {
	switch {
	case v.IsObject():
		writeValue(buf, v)
	case v.IsArray():
		buf.WriteByte('{')
		for i, elem := range v.Array() {
			if i > 0 {
				buf.WriteByte(',')
			}
			fmt.Fprintf(buf, `"%d":`, i)
			writeValue(buf, elem)
		}
		buf.WriteByte('}')
	case v.Type == gjson.String:
		buf.WriteByte('{')
		for i, u := range utf16.Encode([]rune(v.Str)) {
			if i > 0 {
				buf.WriteByte(',')
			}
			fmt.Fprintf(buf, `"%d":`, i)
			writeCodeUnit(buf, u)
		}
		buf.WriteByte('}')
	default:
		buf.WriteString("{}")
	}
}

// writeValue copies v, collapsing repeated object member names at every
// depth so that only the last value of each name remains, at the position
// where the name first appeared.
func writeValue(buf *bytes.Buffer, v gjson.Result) {
	switch {
	case v.IsObject():
		var names []string
		values := make(map[string]gjson.Result)
		v.ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			if _, seen := values[name]; !seen {
				names = append(names, name)
			}
			values[name] = value
			return true
		})

		buf.WriteByte('{')
		for i, name := range names {
			if i > 0 {
				buf.WriteByte(',')
			}
			quoted, _ := json.Marshal(name)
			buf.Write(quoted)
			buf.WriteByte(':')
			writeValue(buf, values[name])
		}
		buf.WriteByte('}')
	case v.IsArray():
		buf.WriteByte('[')
		for i, elem := range v.Array() {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeValue(buf, elem)
		}
		buf.WriteByte(']')
	default:
		buf.WriteString(v.Raw)
	}
}

// writeCodeUnit writes one UTF-16 code unit as a JSON string. Lone
// surrogates are escaped since they cannot be encoded as UTF-8.
func writeCodeUnit(buf *bytes.Buffer, u uint16) {
	if utf16.IsSurrogate(rune(u)) {
		fmt.Fprintf(buf, `"\u%04x"`, u)
		return
	}
	quoted, _ := json.Marshal(string(rune(u)))
	buf.Write(quoted)
}

// validateMemoryKey accepts any non-empty key without NUL bytes up to
// maxKeyLength bytes.
func validateMemoryKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if len(key) > maxKeyLength {
		return ErrKeyLengthExceeds
	}
	if strings.Contains(key, "\x00") {
		return fmt.Errorf("null bytes not allowed: %w", ErrInvalidKey)
	}
	return nil
}
