package deadletter

import (
	"encoding/binary"
	"fmt"

	"github.com/rzbill/floq/pkg/id"
)

const (
	prefixEntry = "dlq/"
	prefixMeta  = "dlqmeta/"
)

// entryPrefix returns the scan prefix for one queue.
// Format: dlq/{queue}/
func entryPrefix(queue string) []byte {
	return []byte(fmt.Sprintf("%s%s/", prefixEntry, queue))
}

// entryKey orders entries by message id, which sorts by enqueue time.
// Format: dlq/{queue}/{id:16}
func entryKey(queue string, msgID id.ID) []byte {
	p := entryPrefix(queue)
	key := make([]byte, len(p)+16)
	copy(key, p)
	copy(key[len(p):], msgID[:])
	return key
}

// metaKey holds the per-queue count and byte total.
// Format: dlqmeta/{queue}
func metaKey(queue string) []byte {
	return []byte(prefixMeta + queue)
}

// Stats summarizes a queue's stored dead letters.
type Stats struct {
	Count int64 `json:"count"`
	Bytes int64 `json:"bytes"`
}

func encodeStats(s Stats) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], uint64(s.Count))
	binary.BigEndian.PutUint64(buf[8:16], uint64(s.Bytes))
	return buf
}

func decodeStats(b []byte) (Stats, error) {
	if len(b) < 16 {
		return Stats{}, fmt.Errorf("deadletter: invalid stats length %d", len(b))
	}
	return Stats{
		Count: int64(binary.BigEndian.Uint64(b[0:8])),
		Bytes: int64(binary.BigEndian.Uint64(b[8:16])),
	}, nil
}
