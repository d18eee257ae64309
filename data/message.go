package data

import (
	"encoding/binary"
	"fmt"
	"time"
)

// MaxMessageSize is the largest serialized Message the core will carry.
const MaxMessageSize = 16384

// Message is the higher-level payload carried by a session. The core
// treats it as opaque except for serialization and size accounting;
// wire parsing of the inner message body belongs to a higher layer.
type Message interface {
	Serialize(buf []byte) (int, bool)
	Size() int
	SizeForT2() int
}

// Expirable is implemented by Message values that carry an expiration
// used only for test equality (the reference's dummy_data() messages
// compare equal modulo expiration normalization).
type Expirable interface {
	Expiration() time.Time
}

// DummyMessage is a minimal Message implementation used by tests: a
// 4-byte length-prefixed opaque payload plus an expiration timestamp.
type DummyMessage struct {
	Payload []byte
	Expires time.Time
}

var _ Message = DummyMessage{}
var _ Expirable = DummyMessage{}

// NewDummyMessage builds a DummyMessage carrying payload, expiring in 1h.
func NewDummyMessage(payload []byte) DummyMessage {
	return DummyMessage{
		Payload: append([]byte(nil), payload...),
		Expires: time.Now().Add(time.Hour),
	}
}

func (m DummyMessage) Size() int { return 4 + len(m.Payload) }

// SizeForT2 mirrors Size for the dummy message; a real Message
// implementation might differ (e.g. additional framing overhead used
// only on the NTCP2 wire).
func (m DummyMessage) SizeForT2() int { return m.Size() }

func (m DummyMessage) Expiration() time.Time { return m.Expires }

func (m DummyMessage) Serialize(buf []byte) (int, bool) {
	need := m.Size()
	if len(buf) < need {
		return need, false
	}
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(m.Payload)))
	copy(buf[4:], m.Payload)
	return need, true
}

// ParseDummyMessage parses a DummyMessage previously written by
// Serialize, returning the number of bytes consumed. The expiration is
// not carried on the wire and is left zero.
func ParseDummyMessage(buf []byte) (DummyMessage, int, error) {
	if len(buf) < 4 {
		return DummyMessage{}, 0, fmt.Errorf("dummy message: short buffer")
	}
	n := int(binary.BigEndian.Uint32(buf[0:4]))
	if len(buf) < 4+n {
		return DummyMessage{}, 0, fmt.Errorf("dummy message: truncated payload")
	}
	return DummyMessage{
		Payload: append([]byte(nil), buf[4:4+n]...),
	}, 4 + n, nil
}
