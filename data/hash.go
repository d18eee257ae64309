// Package data holds the wire-level identity and message types shared by
// every transport: router identities, peer hashes, addresses, and the
// opaque higher-layer Message.
package data

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashLen is the size in bytes of a canonical router identity digest.
const HashLen = 32

// Hash is a 32-byte opaque router identity digest.
type Hash [HashLen]byte

// DigestHash returns the SHA-256 digest of b as a Hash.
func DigestHash(b []byte) Hash {
	return Hash(sha256.Sum256(b))
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

// Equal reports whether h and other hold the same bytes.
func (h Hash) Equal(other Hash) bool {
	return h == other
}

// XOR returns a new Hash holding h XOR other, byte by byte.
func (h Hash) XOR(other Hash) Hash {
	var out Hash
	for i := range h {
		out[i] = h[i] ^ other[i]
	}
	return out
}

// String renders the hash as lowercase hex, for logging.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashFromBytes copies b (which must be exactly HashLen bytes) into a Hash.
func HashFromBytes(b []byte) Hash {
	var h Hash
	copy(h[:], b)
	return h
}
