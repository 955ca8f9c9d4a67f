package docstore

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"
	"sync/atomic"
	"time"
)

// counter is seeded randomly so temp names from different processes
// sharing a data directory are unlikely to collide.
var counter = readRandomUint32()

func readRandomUint32() uint32 {
	var b [4]byte
	_, _ = io.ReadFull(rand.Reader, b[:])
	return binary.BigEndian.Uint32(b[:])
}

// newID returns a 12-byte hex identifier used to name temp files.
//
// Layout:
//   - 6 bytes: milliseconds since epoch
//   - 2 bytes: process id
//   - 4 bytes: counter
func newID() string {
	var id [12]byte

	ms := uint64(time.Now().UnixMilli())
	id[0] = byte(ms >> 40)
	id[1] = byte(ms >> 32)
	binary.BigEndian.PutUint32(id[2:6], uint32(ms))

	binary.BigEndian.PutUint16(id[6:8], uint16(os.Getpid()))
	binary.BigEndian.PutUint32(id[8:12], atomic.AddUint32(&counter, 1))

	return hex.EncodeToString(id[:])
}
