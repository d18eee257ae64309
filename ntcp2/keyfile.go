// Package ntcp2 implements the T2 peer transport: a Noise_XK-based
// handshake (via flynn/noise) behind the same dispatcher contract as
// the ntcp package. Unlike T1, the T2 transport carries a persistent
// long-term static keypair, generated on first run and loaded from disk
// thereafter.
package ntcp2

import (
	"fmt"
	"os"

	"github.com/flynn/noise"
)

// StaticKeySize is the Curve25519 key size flynn/noise uses for DH25519.
const StaticKeySize = 32

// LoadOrCreateKeypair reads a static Noise keypair from path, or
// generates and persists a fresh one if the file does not exist.
func LoadOrCreateKeypair(path string) (noise.DHKey, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		if len(raw) != StaticKeySize*2 {
			return noise.DHKey{}, fmt.Errorf("ntcp2: keyfile %s has unexpected length %d", path, len(raw))
		}
		return noise.DHKey{
			Private: append([]byte(nil), raw[:StaticKeySize]...),
			Public:  append([]byte(nil), raw[StaticKeySize:]...),
		}, nil
	}
	if !os.IsNotExist(err) {
		return noise.DHKey{}, fmt.Errorf("ntcp2: read keyfile %s: %w", path, err)
	}

	kp, err := noise.DH25519.GenerateKeypair(nil)
	if err != nil {
		return noise.DHKey{}, fmt.Errorf("ntcp2: generate keypair: %w", err)
	}
	blob := append(append([]byte{}, kp.Private...), kp.Public...)
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return noise.DHKey{}, fmt.Errorf("ntcp2: write keyfile %s: %w", path, err)
	}
	return kp, nil
}
