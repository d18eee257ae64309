package ntcp

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/cvsouth/i2p-go/aescbc"
	"github.com/cvsouth/i2p-go/data"
	"github.com/cvsouth/i2p-go/dhkey"
)

// tamperingAccept plays the responder side of the handshake but flips a
// bit in message 2's hash field before sending it, to exercise the
// outbound side's InvalidData check.
func tamperingAccept(conn net.Conn, own data.RouterSecretKeys) {
	var dhX [dhPubLen]byte
	msg1 := make([]byte, dhPubLen+hashLen)
	if _, err := io.ReadFull(conn, msg1); err != nil {
		return
	}
	copy(dhX[:], msg1[0:dhPubLen])
	var xorHash [hashLen]byte
	copy(xorHash[:], msg1[dhPubLen:])

	builder, err := dhkey.New()
	if err != nil {
		return
	}
	dhY := builder.GetPub()
	sessionKey := builder.BuildSessionKey(dhX)

	ivOut := last16(dhY[:])
	encSess, err := aescbc.NewEncryptSession([32]byte(sessionKey), ivOut)
	if err != nil {
		return
	}

	tsB := nowUnixRounded()
	hashXY := data.DigestHash(concatBytes(dhX[:], dhY[:]))
	hashXY[0] ^= 0xFF // tamper
	tail := append(append([]byte{}, hashXY[:]...), be32(tsB)...)

	if _, err := conn.Write(dhY[:]); err != nil {
		return
	}
	_ = writeEncryptedBlock(conn, encSess, tail)
}

func mustGenerateKeys(t *testing.T) data.RouterSecretKeys {
	t.Helper()
	keys, err := data.GenerateRouterSecretKeys()
	if err != nil {
		t.Fatalf("GenerateRouterSecretKeys: %v", err)
	}
	return keys
}

// TestHandshakeEstablishesSharedSession drives a full four-message
// handshake over an in-memory pipe and checks both sides agree on a
// session capable of exchanging frames afterward.
func TestHandshakeEstablishesSharedSession(t *testing.T) {
	alice := mustGenerateKeys(t)
	bob := mustGenerateKeys(t)

	clientConn, serverConn := net.Pipe()

	type outResult struct {
		sess *Session
		err  error
	}
	type inResult struct {
		sess *Session
		peer data.RouterIdentity
		err  error
	}
	outCh := make(chan outResult, 1)
	inCh := make(chan inResult, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		sess, err := Connect(ctx, clientConn, alice, bob.Identity)
		outCh <- outResult{sess, err}
	}()
	go func() {
		sess, peer, err := Accept(ctx, serverConn, bob)
		inCh <- inResult{sess, peer, err}
	}()

	out := <-outCh
	in := <-inCh

	if out.err != nil {
		t.Fatalf("outbound handshake failed: %v", out.err)
	}
	if in.err != nil {
		t.Fatalf("inbound handshake failed: %v", in.err)
	}
	if in.peer.Hash() != alice.Identity.Hash() {
		t.Fatalf("responder learned wrong peer identity")
	}

	payload := []byte("hello across the established session")
	writeErr := make(chan error, 1)
	go func() { writeErr <- out.sess.WriteStandard(payload) }()

	f, err := in.sess.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if err := <-writeErr; err != nil {
		t.Fatalf("WriteStandard: %v", err)
	}
	if f.IsTimeSync {
		t.Fatalf("expected Standard frame, got TimeSync")
	}
	if string(f.Payload) != string(payload) {
		t.Fatalf("payload mismatch: got %q want %q", f.Payload, payload)
	}
}

// TestHandshakeRejectsTamperedHash corrupts message 2's hash field and
// checks the outbound side fails with InvalidData, never exposing a
// Session.
func TestHandshakeRejectsTamperedHash(t *testing.T) {
	alice := mustGenerateKeys(t)
	bob := mustGenerateKeys(t)

	clientConn, serverConn := net.Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type outResult struct {
		sess *Session
		err  error
	}
	outCh := make(chan outResult, 1)
	go func() {
		sess, err := Connect(ctx, clientConn, alice, bob.Identity)
		outCh <- outResult{sess, err}
	}()

	// Minimal hand-rolled responder that tampers with the hash field of
	// message 2's encrypted tail before sending it.
	go func() {
		tamperingAccept(serverConn, bob)
	}()

	out := <-outCh
	if out.err == nil {
		t.Fatalf("expected handshake failure on tampered hash")
	}
	if !strings.Contains(out.err.Error(), "InvalidData") {
		t.Fatalf("expected an InvalidData error, got %v", out.err)
	}
	if out.sess != nil {
		t.Fatalf("failed handshake exposed a Session")
	}
}
