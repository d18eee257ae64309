package ntcp

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cvsouth/i2p-go/aescbc"
	"github.com/cvsouth/i2p-go/data"
	"github.com/cvsouth/i2p-go/dhkey"
)

// HandshakeTimeout bounds the time from TCP connect to Established.
// A handshake that has not reached Established within this window is
// aborted and the connection is closed.
const HandshakeTimeout = 10 * time.Second

const dhPubLen = dhkey.PubKeyLen
const hashLen = 32

// signedTupleBase is the base capacity of the buffer used to build the
// SessionConfirmA/B signed tuple; growing this is unnecessary in
// practice since the tuple has a fixed shape, but the constant documents
// the reference implementation's starting allocation.
const signedTupleBase = 907

// identityBufBase is the starting buffer size offered to
// RouterIdentity.Serialize while building SessionConfirmA; it grows on
// a "buffer too small" signal per the parser/serializer growth contract.
const identityBufBase = 512

// Connect performs the outbound T1 handshake over conn and returns the
// Established Session. peer must be known a priori: outbound connections
// dial a specific router identity.
func Connect(ctx context.Context, conn net.Conn, own data.RouterSecretKeys, peer data.RouterIdentity) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, HandshakeTimeout)
	defer cancel()

	type result struct {
		sess *Session
		err  error
	}
	done := make(chan result, 1)
	go func() {
		sess, err := outboundHandshake(conn, own, peer)
		done <- result{sess, err}
	}()

	select {
	case r := <-done:
		return r.sess, r.err
	case <-ctx.Done():
		conn.Close()
		return nil, fmt.Errorf("timeout during handshake")
	}
}

// Accept performs the inbound T1 handshake over conn and returns the
// Established Session along with the peer identity learned from
// SessionConfirmA.
func Accept(ctx context.Context, conn net.Conn, own data.RouterSecretKeys) (*Session, data.RouterIdentity, error) {
	ctx, cancel := context.WithTimeout(ctx, HandshakeTimeout)
	defer cancel()

	type result struct {
		sess *Session
		peer data.RouterIdentity
		err  error
	}
	done := make(chan result, 1)
	go func() {
		sess, peer, err := inboundHandshake(conn, own)
		done <- result{sess, peer, err}
	}()

	select {
	case r := <-done:
		return r.sess, r.peer, r.err
	case <-ctx.Done():
		conn.Close()
		return nil, data.RouterIdentity{}, fmt.Errorf("timeout during handshake")
	}
}

func outboundHandshake(conn net.Conn, own data.RouterSecretKeys, peer data.RouterIdentity) (*Session, error) {
	builder, err := dhkey.New()
	if err != nil {
		return nil, fmt.Errorf("ntcp: generate dh keypair: %w", err)
	}
	dhX := builder.GetPub()
	peerHash := peer.Hash()
	xorHash := xorHashes(data.DigestHash(dhX[:]), peerHash)

	// msg1: SessionRequest
	msg1 := make([]byte, dhPubLen+hashLen)
	copy(msg1[0:dhPubLen], dhX[:])
	copy(msg1[dhPubLen:], xorHash[:])
	if _, err := conn.Write(msg1); err != nil {
		return nil, fmt.Errorf("ntcp: send SessionRequest: %w", err)
	}

	// msg2: SessionCreated — plaintext dh_y header, then an encrypted tail.
	var dhY [dhPubLen]byte
	if _, err := io.ReadFull(conn, dhY[:]); err != nil {
		return nil, fmt.Errorf("ntcp: read SessionCreated header: %w", err)
	}
	sessionKey := builder.BuildSessionKey(dhY)

	ivOut := last16(xorHash[:]) // this side's encrypt chain (A->B), carries into msg3
	ivIn := last16(dhY[:])      // this side's decrypt chain (B->A), carries into msg2 tail, msg4

	encSess, err := aescbc.NewEncryptSession([32]byte(sessionKey), ivOut)
	if err != nil {
		return nil, err
	}
	decSess, err := aescbc.NewDecryptSession([32]byte(sessionKey), ivIn)
	if err != nil {
		return nil, err
	}

	tail, err := readEncryptedBlock(conn, decSess, hashLen+4)
	if err != nil {
		return nil, fmt.Errorf("ntcp: read SessionCreated tail: %w", err)
	}
	tsB := binary.BigEndian.Uint32(tail[hashLen : hashLen+4])

	wantHash := data.DigestHash(concatBytes(dhX[:], dhY[:]))
	if !bytes.Equal(tail[0:hashLen], wantHash[:]) {
		return nil, fmt.Errorf("ntcp: InvalidData: SessionCreated hash mismatch")
	}

	// msg3: SessionConfirmA
	tsA := nowUnixRounded()
	tuple := signedTuple(dhX, dhY, peerHash, tsA, tsB)
	sig := ed25519.Sign(own.SigningPrivate, tuple)

	idBytes, err := serializeIdentity(own.Identity)
	if err != nil {
		return nil, fmt.Errorf("ntcp: serialize own identity: %w", err)
	}
	msg3 := make([]byte, 0, len(idBytes)+4+ed25519.SignatureSize)
	msg3 = append(msg3, idBytes...)
	msg3 = append(msg3, be32(tsA)...)
	msg3 = append(msg3, sig...)
	if err := writeEncryptedBlock(conn, encSess, msg3); err != nil {
		return nil, fmt.Errorf("ntcp: send SessionConfirmA: %w", err)
	}

	// msg4: SessionConfirmB
	msg4, err := readEncryptedBlock(conn, decSess, ed25519.SignatureSize)
	if err != nil {
		return nil, fmt.Errorf("ntcp: read SessionConfirmB: %w", err)
	}
	verifyTuple := signedTuple(dhX, dhY, own.Identity.Hash(), tsA, tsB)
	if !peer.Verify(verifyTuple, msg4) {
		return nil, fmt.Errorf("ntcp: ConnectionRefused: SessionConfirmB signature invalid")
	}

	return newSession(conn, encSess, decSess, skewSeconds(tsA, tsB)), nil
}

func inboundHandshake(conn net.Conn, own data.RouterSecretKeys) (*Session, data.RouterIdentity, error) {
	var dhX [dhPubLen]byte
	var xorHash [hashLen]byte
	msg1 := make([]byte, dhPubLen+hashLen)
	if _, err := io.ReadFull(conn, msg1); err != nil {
		return nil, data.RouterIdentity{}, fmt.Errorf("ntcp: read SessionRequest: %w", err)
	}
	copy(dhX[:], msg1[0:dhPubLen])
	copy(xorHash[:], msg1[dhPubLen:])

	ownHash := own.Identity.Hash()

	builder, err := dhkey.New()
	if err != nil {
		return nil, data.RouterIdentity{}, fmt.Errorf("ntcp: generate dh keypair: %w", err)
	}
	dhY := builder.GetPub()
	sessionKey := builder.BuildSessionKey(dhX)

	ivOut := last16(dhY[:])      // this side's encrypt chain (B->A), carries into msg2 tail, msg4
	ivIn := last16(xorHash[:])   // this side's decrypt chain (A->B), carries into msg3

	encSess, err := aescbc.NewEncryptSession([32]byte(sessionKey), ivOut)
	if err != nil {
		return nil, data.RouterIdentity{}, err
	}
	decSess, err := aescbc.NewDecryptSession([32]byte(sessionKey), ivIn)
	if err != nil {
		return nil, data.RouterIdentity{}, err
	}

	// msg2: SessionCreated
	tsB := nowUnixRounded()
	hashXY := data.DigestHash(concatBytes(dhX[:], dhY[:]))
	tail := append(append([]byte{}, hashXY[:]...), be32(tsB)...)
	if _, err := conn.Write(dhY[:]); err != nil {
		return nil, data.RouterIdentity{}, fmt.Errorf("ntcp: send SessionCreated header: %w", err)
	}
	if err := writeEncryptedBlock(conn, encSess, tail); err != nil {
		return nil, data.RouterIdentity{}, fmt.Errorf("ntcp: send SessionCreated tail: %w", err)
	}

	// msg3: SessionConfirmA — variable length (identity + cert), read
	// one extra cipher block at a time until the identity parses.
	msg3, err := readEncryptedGrowing(conn, decSess, identityBufBase, func(buf []byte) (int, bool) {
		_, n, ok := data.ParseRouterIdentity(buf)
		if !ok {
			return 0, false
		}
		return n + 4 + ed25519.SignatureSize, true
	})
	if err != nil {
		return nil, data.RouterIdentity{}, fmt.Errorf("ntcp: read SessionConfirmA: %w", err)
	}
	peer, idLen, ok := data.ParseRouterIdentity(msg3)
	if !ok {
		return nil, data.RouterIdentity{}, fmt.Errorf("ntcp: InvalidData: malformed peer identity in SessionConfirmA")
	}
	tsA := binary.BigEndian.Uint32(msg3[idLen : idLen+4])
	sig := msg3[idLen+4 : idLen+4+ed25519.SignatureSize]

	tuple := signedTuple(dhX, dhY, ownHash, tsA, tsB)
	if !peer.Verify(tuple, sig) {
		return nil, data.RouterIdentity{}, fmt.Errorf("ntcp: ConnectionRefused: SessionConfirmA signature invalid")
	}

	// msg4: SessionConfirmB
	verifyTuple := signedTuple(dhX, dhY, peer.Hash(), tsA, tsB)
	sig4 := ed25519.Sign(own.SigningPrivate, verifyTuple)
	if err := writeEncryptedBlock(conn, encSess, sig4); err != nil {
		return nil, data.RouterIdentity{}, fmt.Errorf("ntcp: send SessionConfirmB: %w", err)
	}

	return newSession(conn, encSess, decSess, skewSeconds(tsA, tsB)), peer, nil
}

// skewSeconds estimates clock skew between the two peers as tsB-tsA,
// the gap between each side's handshake timestamp.
func skewSeconds(tsA, tsB uint32) int32 {
	return int32(int64(tsB) - int64(tsA))
}

func signedTuple(dhX, dhY [dhPubLen]byte, peerRIHash data.Hash, tsA, tsB uint32) []byte {
	buf := make([]byte, 0, signedTupleBase)
	buf = append(buf, dhX[:]...)
	buf = append(buf, dhY[:]...)
	buf = append(buf, peerRIHash[:]...)
	buf = append(buf, be32(tsA)...)
	buf = append(buf, be32(tsB)...)
	return buf
}

func serializeIdentity(id data.RouterIdentity) ([]byte, error) {
	buf := make([]byte, identityBufBase)
	n, ok := id.Serialize(buf)
	if !ok {
		buf = make([]byte, n)
		if _, ok := id.Serialize(buf); !ok {
			return nil, fmt.Errorf("identity serialize failed even after growing buffer")
		}
		return buf, nil
	}
	return buf[:n], nil
}

func nowUnixRounded() uint32 {
	return uint32(time.Now().Add(500 * time.Millisecond).Unix())
}

func last16(b []byte) [16]byte {
	var out [16]byte
	copy(out[:], b[len(b)-16:])
	return out
}

func be32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func concatBytes(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func xorHashes(a, b data.Hash) data.Hash {
	return a.XOR(b)
}

// readEncryptedBlock reads exactly enough whole AES blocks to cover
// plainLen bytes, decrypts them, and returns the first plainLen bytes
// (discarding any trailing block padding).
func readEncryptedBlock(conn net.Conn, decSess *aescbc.Session, plainLen int) ([]byte, error) {
	total := roundUpBlock(plainLen)
	cipherBuf := make([]byte, total)
	if _, err := io.ReadFull(conn, cipherBuf); err != nil {
		return nil, err
	}
	plain := make([]byte, total)
	if err := decSess.CryptBlocks(plain, cipherBuf); err != nil {
		return nil, err
	}
	return plain[:plainLen], nil
}

// readEncryptedGrowing reads one cipher block at a time, decrypting
// incrementally, until tryParse reports success (returning the consumed
// plaintext length) or a generous upper bound is exceeded. This mirrors
// the reference's grow-and-retry message-3 buffer, sized from
// identityBufBase rather than an arbitrary fixed length.
func readEncryptedGrowing(conn net.Conn, decSess *aescbc.Session, initial int, tryParse func([]byte) (int, bool)) ([]byte, error) {
	const maxTotal = data.MaxMessageSize
	plain := make([]byte, 0, roundUpBlock(initial))
	needed := -1
	for {
		block := make([]byte, aescbc.BlockSize)
		cipherBlock := make([]byte, aescbc.BlockSize)
		if _, err := io.ReadFull(conn, cipherBlock); err != nil {
			return nil, err
		}
		if err := decSess.CryptBlocks(block, cipherBlock); err != nil {
			return nil, err
		}
		plain = append(plain, block...)
		if needed < 0 {
			if n, ok := tryParse(plain); ok {
				needed = n
			}
		}
		if needed >= 0 && len(plain) >= needed {
			return plain[:needed], nil
		}
		if len(plain) > maxTotal {
			return nil, fmt.Errorf("InvalidData: SessionConfirmA exceeds MTU")
		}
	}
}

func roundUpBlock(n int) int {
	return (n + aescbc.BlockSize - 1) / aescbc.BlockSize * aescbc.BlockSize
}

func writeEncryptedBlock(conn net.Conn, encSess *aescbc.Session, plain []byte) error {
	total := roundUpBlock(len(plain))
	padded := make([]byte, total)
	copy(padded, plain)
	cipherBuf := make([]byte, total)
	if err := encSess.CryptBlocks(cipherBuf, padded); err != nil {
		return err
	}
	_, err := conn.Write(cipherBuf)
	return err
}
