package dhkey

import (
	"crypto/rand"
	"math/big"

	"github.com/cvsouth/i2p-go/data"
)

// PubKeyLen is the fixed wire size of a DH public value.
const PubKeyLen = 256

// DHSessionKeyBuilder holds one side of a 2048-bit Diffie-Hellman exchange
// and derives the shared AES session key once the peer's public value is
// known. Every router generates a fresh DHSessionKeyBuilder per handshake;
// it is never reused across connections.
type DHSessionKeyBuilder struct {
	priv *big.Int
	pub  *big.Int
}

// New generates a fresh 2048-bit DH keypair.
func New() (DHSessionKeyBuilder, error) {
	priv, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 2048))
	if err != nil {
		return DHSessionKeyBuilder{}, err
	}
	pub := new(big.Int).Exp(elgG(), priv, elgP())
	return DHSessionKeyBuilder{priv: priv, pub: pub}, nil
}

// GetPub returns this side's public DH value, fixed at PubKeyLen bytes,
// zero-padded on the left.
func (b DHSessionKeyBuilder) GetPub() [PubKeyLen]byte {
	var out [PubKeyLen]byte
	bs := b.pub.Bytes()
	copy(out[PubKeyLen-len(bs):], bs)
	return out
}

// BuildSessionKey derives the shared 32-byte session key from the peer's
// public DH value. The padding rule reproduces the Java reference
// implementation's BigInteger.toByteArray() encoding exactly: a positive,
// minimal-length two's-complement big-endian representation (leading
// 0x00 inserted if the high bit of the raw magnitude is set), then
// extended with trailing zero bytes if shorter than 32 bytes. Any
// deviation here silently breaks interoperability with existing peers.
func (b DHSessionKeyBuilder) BuildSessionKey(peerPub [PubKeyLen]byte) data.SessionKey {
	peer := new(big.Int).SetBytes(peerPub[:])
	shared := new(big.Int).Exp(peer, b.priv, elgP())

	buf := shared.Bytes()
	if len(buf) == 0 {
		buf = []byte{0x00}
	}
	if buf[0]&0x80 != 0 {
		buf = append([]byte{0x00}, buf...)
	}
	if len(buf) < data.SessionKeyLen {
		buf = append(buf, make([]byte, data.SessionKeyLen-len(buf))...)
	}

	var key data.SessionKey
	copy(key[:], buf[:data.SessionKeyLen])
	return key
}
