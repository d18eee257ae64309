package ntcp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/adler32"

	"github.com/cvsouth/i2p-go/aescbc"
	"github.com/cvsouth/i2p-go/data"
)

// errIncomplete signals that buf does not yet hold a whole frame.
var errIncomplete = errors.New("ntcp: incomplete frame")

// Frame is an established-session wire unit: either a Standard frame
// carrying an opaque serialized Message payload, or a TimeSync frame
// carrying a peer-reported UNIX timestamp. The core treats the message
// body as opaque bytes; parsing it into a data.Message is the caller's
// concern.
type Frame struct {
	IsTimeSync bool
	TimeSync   uint32
	Payload    []byte
}

// EncodeStandard builds a Standard frame's plaintext wire form:
// [2-byte size_hint][payload][zero padding][4-byte Adler32], sized to
// the next 16-byte boundary.
func EncodeStandard(payload []byte) ([]byte, error) {
	if len(payload) == 0 || len(payload) > 0xFFFF {
		return nil, fmt.Errorf("ntcp: invalid standard frame payload size %d", len(payload))
	}
	return encodeFrame(uint16(len(payload)), payload)
}

// EncodeTimeSync builds a TimeSync frame's plaintext wire form.
func EncodeTimeSync(seconds uint32) ([]byte, error) {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, seconds)
	return encodeFrame(0, payload)
}

func encodeFrame(sizeHint uint16, payload []byte) ([]byte, error) {
	base := 2 + len(payload) + 4
	pad := (aescbc.BlockSize - base%aescbc.BlockSize) % aescbc.BlockSize
	total := base + pad
	if total > data.MaxMessageSize {
		return nil, fmt.Errorf("ntcp: frame exceeds MTU (%d > %d)", total, data.MaxMessageSize)
	}

	buf := make([]byte, total)
	binary.BigEndian.PutUint16(buf[0:2], sizeHint)
	copy(buf[2:2+len(payload)], payload)
	// buf[2+len(payload):base] is zero padding by construction.
	sum := adler32.Checksum(buf[0 : 2+len(payload)])
	binary.BigEndian.PutUint32(buf[total-4:total], sum)
	return buf, nil
}

// Decode parses one Frame from the prefix of buf. It returns the number
// of bytes consumed. If buf does not yet contain a whole frame, it
// returns errIncomplete and the caller should wait for more decrypted
// bytes before retrying.
func Decode(buf []byte) (Frame, int, error) {
	if len(buf) < 2 {
		return Frame{}, 0, errIncomplete
	}
	sizeHint := binary.BigEndian.Uint16(buf[0:2])
	isTimeSync := sizeHint == 0
	n := int(sizeHint)
	if isTimeSync {
		n = 4
	}

	base := 2 + n + 4
	pad := (aescbc.BlockSize - base%aescbc.BlockSize) % aescbc.BlockSize
	total := base + pad
	if total > data.MaxMessageSize {
		return Frame{}, 0, fmt.Errorf("ntcp: InvalidData: frame exceeds MTU (%d > %d)", total, data.MaxMessageSize)
	}
	if len(buf) < total {
		return Frame{}, 0, errIncomplete
	}

	payload := append([]byte(nil), buf[2:2+n]...)
	gotSum := adler32.Checksum(buf[0 : 2+n])
	wantSum := binary.BigEndian.Uint32(buf[total-4 : total])
	if gotSum != wantSum {
		return Frame{}, 0, fmt.Errorf("ntcp: InvalidData: frame checksum mismatch")
	}

	if isTimeSync {
		return Frame{IsTimeSync: true, TimeSync: binary.BigEndian.Uint32(payload)}, total, nil
	}
	return Frame{Payload: payload}, total, nil
}
