package docstore

import (
	"encoding/json"
	"time"
)

// metadataField is the member appended to documents held by MemoryStore.
const metadataField = "_metadata"

// Metadata describes how and when a document was received.
type Metadata struct {
	ReceivedAt time.Time `json:"received_at"` // Receipt time, UTC
	SizeBytes  int       `json:"size_bytes"`  // Length of the raw request body
}

// MarshalJSON renders ReceivedAt with millisecond precision, e.g.
// 2024-05-01T10:00:00.000Z.
func (m Metadata) MarshalJSON() ([]byte, error) {
	type wire struct {
		ReceivedAt string `json:"received_at"`
		SizeBytes  int    `json:"size_bytes"`
	}
	return json.Marshal(wire{
		ReceivedAt: m.ReceivedAt.UTC().Format(timestampLayout),
		SizeBytes:  m.SizeBytes,
	})
}

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"
