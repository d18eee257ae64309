package data

import (
	"path/filepath"
	"testing"
)

func TestLoadOrCreateRouterSecretKeysPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.key")

	first, err := LoadOrCreateRouterSecretKeys(path)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	second, err := LoadOrCreateRouterSecretKeys(path)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if !first.Identity.Hash().Equal(second.Identity.Hash()) {
		t.Fatalf("identity did not persist across loads")
	}

	sig, err := first.Sign([]byte("hello"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !second.Identity.Verify([]byte("hello"), sig) {
		t.Fatalf("loaded identity could not verify a signature from the original")
	}
}

func TestRouterIdentitySerializeRoundTrip(t *testing.T) {
	rsk, err := GenerateRouterSecretKeys()
	if err != nil {
		t.Fatalf("GenerateRouterSecretKeys: %v", err)
	}
	buf := make([]byte, 512)
	n, ok := rsk.Identity.Serialize(buf)
	if !ok {
		t.Fatalf("Serialize reported buffer too small")
	}
	parsed, consumed, ok := ParseRouterIdentity(buf[:n])
	if !ok {
		t.Fatalf("ParseRouterIdentity failed")
	}
	if consumed != n {
		t.Fatalf("consumed %d want %d", consumed, n)
	}
	if !parsed.Hash().Equal(rsk.Identity.Hash()) {
		t.Fatalf("round-tripped identity hash mismatch")
	}
}
