package control

import (
	"encoding/hex"
	"fmt"

	"github.com/cvsouth/i2p-go/data"
)

func parseHashHex(s string) (data.Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return data.Hash{}, fmt.Errorf("control: invalid peer hash %q: %w", s, err)
	}
	if len(b) != data.HashLen {
		return data.Hash{}, fmt.Errorf("control: peer hash %q has wrong length", s)
	}
	return data.HashFromBytes(b), nil
}
