package data

import (
	"crypto/ed25519"
	"fmt"
	"os"
)

// CertMetadata carries the small certificate fields that follow the two
// public keys in a serialized RouterIdentity. The core never inspects
// these beyond length accounting; NetDB-level validation is out of scope.
type CertMetadata struct {
	Type   uint8
	Length uint16
	Data   []byte
}

// RouterIdentity is a peer's public identity: an encryption public key,
// a signing public key, and small certificate metadata.
type RouterIdentity struct {
	EncryptionKey [256]byte // ElGamal public key, fixed 256-byte encoding
	SigningKey    ed25519.PublicKey
	Cert          CertMetadata
}

// Hash returns the canonical 32-byte identity digest: SHA-256 over the
// identity's serialized form.
func (ri RouterIdentity) Hash() Hash {
	return DigestHash(ri.serializeForHash())
}

func (ri RouterIdentity) serializeForHash() []byte {
	buf := make([]byte, 0, 256+32+3+len(ri.Cert.Data))
	buf = append(buf, ri.EncryptionKey[:]...)
	buf = append(buf, ri.SigningKey...)
	buf = append(buf, ri.Cert.Type)
	buf = append(buf, byte(ri.Cert.Length>>8), byte(ri.Cert.Length))
	buf = append(buf, ri.Cert.Data...)
	return buf
}

// Verify checks sig against msg using this identity's signing key.
func (ri RouterIdentity) Verify(msg, sig []byte) bool {
	if len(ri.SigningKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ri.SigningKey, msg, sig)
}

// Serialize writes the identity to buf, matching the layout hashed in
// serializeForHash. Returns the number of bytes written, or the required
// size (as a second, false-ok return) if buf is too small.
func (ri RouterIdentity) Serialize(buf []byte) (int, bool) {
	body := ri.serializeForHash()
	if len(buf) < len(body) {
		return len(body), false
	}
	copy(buf, body)
	return len(body), true
}

// ParseRouterIdentity reads a RouterIdentity from buf. It returns the
// number of bytes consumed, or (0, false) if buf is too short.
func ParseRouterIdentity(buf []byte) (RouterIdentity, int, bool) {
	var ri RouterIdentity
	if len(buf) < 256+ed25519.PublicKeySize+3 {
		return ri, 0, false
	}
	copy(ri.EncryptionKey[:], buf[0:256])
	ri.SigningKey = append(ed25519.PublicKey(nil), buf[256:256+ed25519.PublicKeySize]...)
	off := 256 + ed25519.PublicKeySize
	ri.Cert.Type = buf[off]
	ri.Cert.Length = uint16(buf[off+1])<<8 | uint16(buf[off+2])
	off += 3
	if len(buf) < off+int(ri.Cert.Length) {
		return ri, 0, false
	}
	ri.Cert.Data = append([]byte(nil), buf[off:off+int(ri.Cert.Length)]...)
	off += int(ri.Cert.Length)
	return ri, off, true
}

// RouterSecretKeys is owned by the local router: its RouterIdentity
// (public half) plus the private signing key.
type RouterSecretKeys struct {
	Identity       RouterIdentity
	SigningPrivate ed25519.PrivateKey
}

// Sign signs msg with the router's private signing key.
func (rsk RouterSecretKeys) Sign(msg []byte) ([]byte, error) {
	if len(rsk.SigningPrivate) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("router secret keys: signing key not initialized")
	}
	return ed25519.Sign(rsk.SigningPrivate, msg), nil
}

// GenerateRouterSecretKeys creates a fresh signing keypair for tests and
// bootstrap tooling. The encryption key is left zeroed: callers that need
// a real ElGamal keypair fill it in separately via dhkey.
func GenerateRouterSecretKeys() (RouterSecretKeys, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return RouterSecretKeys{}, fmt.Errorf("generate signing key: %w", err)
	}
	return RouterSecretKeys{
		Identity: RouterIdentity{
			SigningKey: pub,
		},
		SigningPrivate: priv,
	}, nil
}

// LoadOrCreateRouterSecretKeys reads a persisted Ed25519 seed from path,
// or generates and persists a fresh one if the file does not exist,
// following the same keyfile convention ntcp2 uses for its static Noise
// key.
func LoadOrCreateRouterSecretKeys(path string) (RouterSecretKeys, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		if len(raw) != ed25519.SeedSize {
			return RouterSecretKeys{}, fmt.Errorf("router secret keys: keyfile %s has unexpected length %d", path, len(raw))
		}
		priv := ed25519.NewKeyFromSeed(raw)
		return RouterSecretKeys{
			Identity:       RouterIdentity{SigningKey: priv.Public().(ed25519.PublicKey)},
			SigningPrivate: priv,
		}, nil
	}
	if !os.IsNotExist(err) {
		return RouterSecretKeys{}, fmt.Errorf("router secret keys: read keyfile %s: %w", path, err)
	}

	rsk, err := GenerateRouterSecretKeys()
	if err != nil {
		return RouterSecretKeys{}, err
	}
	seed := rsk.SigningPrivate.Seed()
	if err := os.WriteFile(path, seed, 0o600); err != nil {
		return RouterSecretKeys{}, fmt.Errorf("router secret keys: write keyfile %s: %w", path, err)
	}
	return rsk, nil
}
