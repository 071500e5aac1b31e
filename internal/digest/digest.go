// Package digest provides the one-way hash functions used to fingerprint
// uploaded files and to link ledger blocks together.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// ErrUnknownAlgorithm is returned by Lookup for an unsupported name.
var ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

// Algorithm is a named 256-bit hash function with hex-encoded output.
// The zero value is not usable; use SHA256 or Lookup.
type Algorithm struct {
	name    string
	newHash func() hash.Hash
}

// SHA256 is the default algorithm. Existing snapshots were written with it.
var SHA256 = Algorithm{name: "sha256", newHash: sha256.New}

// SHA3_256 is FIPS 202 SHA3-256.
var SHA3_256 = Algorithm{name: "sha3-256", newHash: sha3.New256}

// BLAKE2b256 is unkeyed BLAKE2b with a 256-bit output.
var BLAKE2b256 = Algorithm{name: "blake2b-256", newHash: func() hash.Hash {
	h, _ := blake2b.New256(nil) // only fails for keys longer than 64 bytes
	return h
}}

var algorithms = map[string]Algorithm{
	SHA256.name:     SHA256,
	SHA3_256.name:   SHA3_256,
	BLAKE2b256.name: BLAKE2b256,
}

// Lookup resolves an algorithm by name. The empty string resolves to SHA256.
func Lookup(name string) (Algorithm, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return SHA256, nil
	}
	a, ok := algorithms[name]
	if !ok {
		return Algorithm{}, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	return a, nil
}

// Name returns the canonical algorithm name.
func (a Algorithm) Name() string { return a.name }

// Size returns the digest length in hex characters.
func (a Algorithm) Size() int { return a.newHash().Size() * 2 }

// Sum returns the hex digest of data.
func (a Algorithm) Sum(data []byte) string {
	h := a.newHash()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SumString returns the hex digest of the UTF-8 bytes of s.
func (a Algorithm) SumString(s string) string {
	h := a.newHash()
	io.WriteString(h, s) //nolint:errcheck
	return hex.EncodeToString(h.Sum(nil))
}

// SumReader streams r through the hash and returns the hex digest and the
// number of bytes read. Read errors are returned unchanged in the chain.
func (a Algorithm) SumReader(r io.Reader) (string, int64, error) {
	h := a.newHash()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, fmt.Errorf("read input: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
