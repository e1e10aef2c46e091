package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// AlgorithmSHA256 is the hash algorithm identifier stored with every
// entry.
const AlgorithmSHA256 = "sha256"

// genesisSeed is hashed to produce the fixed previous-hash of the first
// chain entry.
const genesisSeed = "governor-audit-genesis"

// GenesisHash returns the previous-hash constant used by the first entry
// of an empty chain.
func GenesisHash() string {
	return hashString(genesisSeed)
}

// HashPayload returns the hex-encoded SHA-256 of a serialized event
// payload.
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// ComputeEntryHash derives an entry's chain hash from its fields and the
// previous entry's hash. The input is
// "seq|rfc3339nano-timestamp|payloadHash|previousHash"; the timestamp is
// canonicalized to UTC so the hash is independent of the zone the entry
// was recorded in.
func ComputeEntryHash(seq int64, ts time.Time, payloadHash, previousHash string) string {
	input := fmt.Sprintf("%d|%s|%s|%s", seq, CanonicalTimestamp(ts), payloadHash, previousHash)
	return hashString(input)
}

// CanonicalTimestamp renders a timestamp in the exact form covered by the
// entry hash. Storage backends persist this rendering so verification
// reproduces it bit for bit.
func CanonicalTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
