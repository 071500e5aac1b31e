// Package chain defines the immutable Block, its serializable Record view,
// and the hash-linkage rules that make a sequence of blocks tamper-evident.
//
// A block's digest covers its index, timestamp, file hash, and the digest of
// its predecessor, concatenated without delimiters in that order. Changing
// any stored field of any block therefore breaks either its own digest or the
// link held by its successor.
package chain

import (
	"strconv"
	"strings"
	"time"

	"github.com/jmerrifield20/recordchain/internal/digest"
)

const (
	// GenesisFileHash is the file hash recorded in the genesis block.
	GenesisFileHash = "GENESIS_HASH"

	// GenesisPrevHash is the predecessor sentinel of the genesis block.
	GenesisPrevHash = "0"
)

// Timestamp is seconds since the Unix epoch.
type Timestamp float64

// Now returns the current wall-clock time as a Timestamp.
func Now() Timestamp { return FromTime(time.Now()) }

// FromTime converts t to a Timestamp with microsecond resolution.
func FromTime(t time.Time) Timestamp {
	return Timestamp(float64(t.UnixMicro()) / 1e6)
}

// Time converts the timestamp back to a time.Time in UTC.
func (ts Timestamp) Time() time.Time {
	return time.UnixMicro(int64(float64(ts)*1e6 + 0.5)).UTC()
}

// String returns the shortest decimal form that round-trips, never in
// exponent notation, and always with a fractional part ("12.0", not "12").
// This is the form hashed into a block digest.
func (ts Timestamp) String() string {
	s := strconv.FormatFloat(float64(ts), 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// MarshalJSON writes the timestamp as a JSON number in the same form as String.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(ts.String()), nil
}

// Block is one immutable link of the chain. Its digest is computed once by
// New and never recomputed.
type Block struct {
	index     int
	timestamp Timestamp
	fileHash  string
	prevHash  string
	hash      string
}

// Record is the serializable view of a Block. Field names follow the
// snapshot format consumed by existing tooling.
type Record struct {
	Index        int       `json:"index"`
	Timestamp    Timestamp `json:"timestamp"`
	FileHash     string    `json:"file_hash"`
	PreviousHash string    `json:"previous_hash"`
	Hash         string    `json:"hash"`
}

// CanonicalInput is the exact string hashed to produce a block digest.
func CanonicalInput(index int, ts Timestamp, fileHash, prevHash string) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(index))
	b.WriteString(ts.String())
	b.WriteString(fileHash)
	b.WriteString(prevHash)
	return b.String()
}

// New constructs a block and computes its digest with alg.
func New(alg digest.Algorithm, index int, ts Timestamp, fileHash, prevHash string) Block {
	return Block{
		index:     index,
		timestamp: ts,
		fileHash:  fileHash,
		prevHash:  prevHash,
		hash:      alg.SumString(CanonicalInput(index, ts, fileHash, prevHash)),
	}
}

// Genesis constructs the root block of a new chain.
func Genesis(alg digest.Algorithm, ts Timestamp) Block {
	return New(alg, 0, ts, GenesisFileHash, GenesisPrevHash)
}

// Restore adopts a stored record as a Block, keeping its stored digest.
func Restore(r Record) Block {
	return Block{
		index:     r.Index,
		timestamp: r.Timestamp,
		fileHash:  r.FileHash,
		prevHash:  r.PreviousHash,
		hash:      r.Hash,
	}
}

func (b Block) Index() int           { return b.index }
func (b Block) Timestamp() Timestamp { return b.timestamp }
func (b Block) FileHash() string     { return b.fileHash }
func (b Block) PrevHash() string     { return b.prevHash }
func (b Block) Hash() string         { return b.hash }

// Record returns the serializable view of b.
func (b Block) Record() Record {
	return Record{
		Index:        b.index,
		Timestamp:    b.timestamp,
		FileHash:     b.fileHash,
		PreviousHash: b.prevHash,
		Hash:         b.hash,
	}
}

// Recompute returns the digest r should carry given its other fields.
func Recompute(alg digest.Algorithm, r Record) string {
	return alg.SumString(CanonicalInput(r.Index, r.Timestamp, r.FileHash, r.PreviousHash))
}

// Records converts blocks to their serializable views.
func Records(blocks []Block) []Record {
	out := make([]Record, len(blocks))
	for i, b := range blocks {
		out[i] = b.Record()
	}
	return out
}
