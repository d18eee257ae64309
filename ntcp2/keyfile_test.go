package ntcp2

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestLoadOrCreateKeypairPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ntcp2.key")

	first, err := LoadOrCreateKeypair(path)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	second, err := LoadOrCreateKeypair(path)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if !bytes.Equal(first.Private, second.Private) || !bytes.Equal(first.Public, second.Public) {
		t.Fatalf("keypair did not persist across loads")
	}
}
