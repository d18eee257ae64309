package ntcp2

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/flynn/noise"

	"github.com/cvsouth/i2p-go/data"
)

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherAESGCM, noise.HashSHA256)

// HandshakeTimeout bounds a T2 handshake the same way ntcp.HandshakeTimeout
// bounds T1's: an unreasonably slow peer should not tie up a goroutine.
const HandshakeTimeout = 10 * time.Second

// Session is an established T2 duplex message channel: length-prefixed,
// AEAD-sealed frames carried over the Noise_XK transport ciphers
// produced by the handshake.
type Session struct {
	conn net.Conn

	// PeerStatic is the remote party's long-term Noise static public
	// key, authenticated by the XK pattern. For an inbound session this
	// is learned from message 3; for an outbound session it is the
	// remoteStatic the caller supplied.
	PeerStatic []byte

	wmu  sync.Mutex
	send *noise.CipherState

	rmu  sync.Mutex
	recv *noise.CipherState
}

// handshake drives a three-message Noise_XK exchange over conn and
// returns the resulting duplex Session. remoteStatic is required for the
// initiator (XK assumes the responder's static key is known in advance,
// matching I2P's model where a peer's NTCP2 static key is published in
// its RouterInfo) and ignored for the responder.
func handshake(conn net.Conn, local noise.DHKey, initiator bool, remoteStatic []byte) (*Session, error) {
	cfg := noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeXK,
		Initiator:     initiator,
		StaticKeypair: local,
	}
	if initiator {
		cfg.PeerStatic = remoteStatic
	}
	hs, err := noise.NewHandshakeState(cfg)
	if err != nil {
		return nil, fmt.Errorf("ntcp2: new handshake state: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(HandshakeTimeout)); err != nil {
		return nil, fmt.Errorf("ntcp2: set handshake deadline: %w", err)
	}

	var cs1, cs2 *noise.CipherState

	if initiator {
		msg1, _, _, err := hs.WriteMessage(nil, nil)
		if err != nil {
			return nil, fmt.Errorf("ntcp2: write message 1: %w", err)
		}
		if err := writeFramed(conn, msg1); err != nil {
			return nil, fmt.Errorf("ntcp2: send message 1: %w", err)
		}

		msg2, err := readFramed(conn)
		if err != nil {
			return nil, fmt.Errorf("ntcp2: read message 2: %w", err)
		}
		if _, _, _, err := hs.ReadMessage(nil, msg2); err != nil {
			return nil, fmt.Errorf("ntcp2: InvalidData: process message 2: %w", err)
		}

		msg3, rcs1, rcs2, err := hs.WriteMessage(nil, nil)
		if err != nil {
			return nil, fmt.Errorf("ntcp2: write message 3: %w", err)
		}
		if err := writeFramed(conn, msg3); err != nil {
			return nil, fmt.Errorf("ntcp2: send message 3: %w", err)
		}
		cs1, cs2 = rcs1, rcs2
	} else {
		msg1, err := readFramed(conn)
		if err != nil {
			return nil, fmt.Errorf("ntcp2: read message 1: %w", err)
		}
		if _, _, _, err := hs.ReadMessage(nil, msg1); err != nil {
			return nil, fmt.Errorf("ntcp2: InvalidData: process message 1: %w", err)
		}

		msg2, _, _, err := hs.WriteMessage(nil, nil)
		if err != nil {
			return nil, fmt.Errorf("ntcp2: write message 2: %w", err)
		}
		if err := writeFramed(conn, msg2); err != nil {
			return nil, fmt.Errorf("ntcp2: send message 2: %w", err)
		}

		msg3, err := readFramed(conn)
		if err != nil {
			return nil, fmt.Errorf("ntcp2: read message 3: %w", err)
		}
		_, rcs1, rcs2, err := hs.ReadMessage(nil, msg3)
		if err != nil {
			return nil, fmt.Errorf("ntcp2: InvalidData: process message 3: %w", err)
		}
		cs1, cs2 = rcs1, rcs2
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("ntcp2: clear handshake deadline: %w", err)
	}
	sess := &Session{conn: conn, PeerStatic: append([]byte(nil), hs.PeerStatic()...)}
	if initiator {
		sess.send, sess.recv = cs1, cs2
	} else {
		sess.send, sess.recv = cs2, cs1
	}
	return sess, nil
}

// WriteStandard seals and sends payload as one frame.
func (s *Session) WriteStandard(payload []byte) error {
	if len(payload) > data.MaxMessageSize {
		return fmt.Errorf("ntcp2: message too large (%d bytes)", len(payload))
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	sealed := s.send.Encrypt(nil, nil, payload)
	return writeFramed(s.conn, sealed)
}

// ReadFrame blocks for and returns the next decrypted message.
func (s *Session) ReadFrame() ([]byte, error) {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	sealed, err := readFramed(s.conn)
	if err != nil {
		return nil, err
	}
	plain, err := s.recv.Decrypt(nil, nil, sealed)
	if err != nil {
		return nil, fmt.Errorf("ntcp2: InvalidData: frame auth failed: %w", err)
	}
	return plain, nil
}

// Close tears down the underlying connection.
func (s *Session) Close() error { return s.conn.Close() }

func writeFramed(conn net.Conn, msg []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(msg)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := conn.Write(msg)
	return err
}

func readFramed(conn net.Conn) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > data.MaxMessageSize+64 { // frame + AEAD overhead
		return nil, fmt.Errorf("ntcp2: InvalidData: frame length %d exceeds MTU", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
