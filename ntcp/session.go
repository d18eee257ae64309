package ntcp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/cvsouth/i2p-go/aescbc"
	"github.com/cvsouth/i2p-go/data"
)

// Session is an established T1 duplex message channel. It owns the
// persistent AES-CBC cipher state (one chain per direction, never reset
// for the connection's lifetime) and an incremental decrypt cursor that
// tracks decrypted-but-not-yet-parsed bytes.
//
// Reads and writes use independent mutexes (rmu and wmu): a session may
// be written from one goroutine while read from another.
type Session struct {
	conn net.Conn

	wmu     sync.Mutex
	encSess *aescbc.Session

	rmu         sync.Mutex
	decSess     *aescbc.Session
	cipherPend  []byte // raw bytes read but not yet a whole AES block
	plainPend   []byte // decrypted bytes not yet consumed into a Frame
	readScratch []byte

	skewSeconds int32
}

func newSession(conn net.Conn, encSess, decSess *aescbc.Session, skewSeconds int32) *Session {
	return &Session{
		conn:        conn,
		encSess:     encSess,
		decSess:     decSess,
		readScratch: make([]byte, data.MaxMessageSize),
		skewSeconds: skewSeconds,
	}
}

// Skew reports tsB-tsA from the handshake that established this
// session: the difference between the two peers' handshake timestamps,
// a rough clock-skew estimate surfaced to observability (spec does not
// have the handshake reject on a large skew, only report it).
func (s *Session) Skew() int32 { return s.skewSeconds }

// Conn returns the underlying TCP connection.
func (s *Session) Conn() net.Conn { return s.conn }

// Close tears down the underlying connection.
func (s *Session) Close() error { return s.conn.Close() }

// WriteStandard encodes and sends a Standard frame carrying payload (an
// already-serialized Message).
func (s *Session) WriteStandard(payload []byte) error {
	plain, err := EncodeStandard(payload)
	if err != nil {
		return err
	}
	return s.writePlain(plain)
}

// WriteTimeSync encodes and sends a TimeSync frame.
func (s *Session) WriteTimeSync(seconds uint32) error {
	plain, err := EncodeTimeSync(seconds)
	if err != nil {
		return err
	}
	return s.writePlain(plain)
}

func (s *Session) writePlain(plain []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	cipherBuf := make([]byte, len(plain))
	if err := s.encSess.CryptBlocks(cipherBuf, plain); err != nil {
		return fmt.Errorf("ntcp: encrypt frame: %w", err)
	}
	if _, err := s.conn.Write(cipherBuf); err != nil {
		return fmt.Errorf("ntcp: write frame: %w", err)
	}
	return nil
}

// ReadFrame blocks until a complete Frame has been received, decrypted,
// and parsed, draining as many whole cipher blocks as are available on
// each underlying read.
func (s *Session) ReadFrame() (Frame, error) {
	s.rmu.Lock()
	defer s.rmu.Unlock()

	for {
		if f, n, err := Decode(s.plainPend); err == nil {
			s.plainPend = s.plainPend[n:]
			return f, nil
		} else if !errors.Is(err, errIncomplete) {
			s.plainPend = nil
			return Frame{}, err
		}

		n, err := s.conn.Read(s.readScratch)
		if err != nil {
			return Frame{}, fmt.Errorf("ntcp: read frame: %w", err)
		}
		s.cipherPend = append(s.cipherPend, s.readScratch[:n]...)

		whole := len(s.cipherPend) - len(s.cipherPend)%aescbc.BlockSize
		if whole == 0 {
			continue
		}
		plain := make([]byte, whole)
		if err := s.decSess.CryptBlocks(plain, s.cipherPend[:whole]); err != nil {
			return Frame{}, fmt.Errorf("ntcp: decrypt frame: %w", err)
		}
		s.plainPend = append(s.plainPend, plain...)
		s.cipherPend = append([]byte(nil), s.cipherPend[whole:]...)
	}
}
