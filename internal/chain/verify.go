package chain

import (
	"errors"
	"fmt"

	"github.com/jmerrifield20/recordchain/internal/digest"
)

// ErrIntegrity is matched by every *IntegrityError via errors.Is.
var ErrIntegrity = errors.New("chain integrity violation")

// IntegrityError reports the first block that fails verification.
// Index is -1 when the chain itself is malformed (for example, empty).
type IntegrityError struct {
	Index  int
	Reason string
}

func (e *IntegrityError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("chain integrity violation: %s", e.Reason)
	}
	return fmt.Sprintf("chain integrity violation at block %d: %s", e.Index, e.Reason)
}

// Is makes errors.Is(err, ErrIntegrity) true.
func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// Verify walks records in order and checks the genesis sentinels, contiguous
// indices, non-decreasing timestamps, predecessor links, and that every
// stored digest is reproducible from the stored fields.
func Verify(alg digest.Algorithm, records []Record) error {
	if len(records) == 0 {
		return &IntegrityError{Index: -1, Reason: "chain is empty"}
	}

	for i, curr := range records {
		if curr.Index != i {
			return &IntegrityError{Index: i, Reason: fmt.Sprintf("stored index %d out of sequence", curr.Index)}
		}
		if curr.Hash != Recompute(alg, curr) {
			return &IntegrityError{Index: i, Reason: "digest does not match block contents"}
		}

		if i == 0 {
			if curr.PreviousHash != GenesisPrevHash {
				return &IntegrityError{Index: 0, Reason: fmt.Sprintf("genesis previous_hash is %q", curr.PreviousHash)}
			}
			if curr.FileHash != GenesisFileHash {
				return &IntegrityError{Index: 0, Reason: fmt.Sprintf("genesis file_hash is %q", curr.FileHash)}
			}
			continue
		}

		prev := records[i-1]
		if curr.PreviousHash != prev.Hash {
			return &IntegrityError{Index: i, Reason: "previous_hash does not match predecessor"}
		}
		if curr.Timestamp < prev.Timestamp {
			return &IntegrityError{Index: i, Reason: "timestamp precedes predecessor"}
		}
	}
	return nil
}
