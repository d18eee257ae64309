// Package aescbc wraps AES-256-CBC with the persistent-IV semantics the
// T1 transport requires: the IV for message N+1 is the last ciphertext
// block of message N, carried forward for the lifetime of the session
// rather than reset per message.
package aescbc

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// BlockSize is the AES block size in bytes.
const BlockSize = aes.BlockSize

// KeySize is the key size in bytes for AES-256.
const KeySize = 32

// Session holds one direction's persistent CBC state. A Go cipher.BlockMode
// retains its running IV internally across CryptBlocks calls, which is
// exactly the chaining behavior the wire protocol expects, so Session is
// a thin wrapper rather than tracking the IV itself.
type Session struct {
	mode cipher.BlockMode
}

// NewEncryptSession builds the sending-direction CBC state.
func NewEncryptSession(key [KeySize]byte, iv [BlockSize]byte) (*Session, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("aescbc: new cipher: %w", err)
	}
	return &Session{mode: cipher.NewCBCEncrypter(block, iv[:])}, nil
}

// NewDecryptSession builds the receiving-direction CBC state.
func NewDecryptSession(key [KeySize]byte, iv [BlockSize]byte) (*Session, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("aescbc: new cipher: %w", err)
	}
	return &Session{mode: cipher.NewCBCDecrypter(block, iv[:])}, nil
}

// CryptBlocks encrypts or decrypts src into dst in place, advancing the
// session's running IV. src must be a whole number of AES blocks; dst and
// src may overlap exactly as permitted by cipher.BlockMode.CryptBlocks.
func (s *Session) CryptBlocks(dst, src []byte) error {
	if len(src)%BlockSize != 0 {
		return fmt.Errorf("aescbc: %d bytes is not a multiple of the block size", len(src))
	}
	if len(src) == 0 {
		return nil
	}
	s.mode.CryptBlocks(dst, src)
	return nil
}
