package ntcp2

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/flynn/noise"

	"github.com/cvsouth/i2p-go/data"
)

const maxPendingHandshakes = 64

// Manager owns the T2 listener, the persistent static keypair, and the
// set of live Noise sessions keyed by peer hash.
type Manager struct {
	addr   *net.TCPAddr
	local  noise.DHKey
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[data.Hash]*Session
	statics  map[data.Hash][]byte // known peer static keys, e.g. from RouterInfo

	inbound chan *PeerSession
	sem     chan struct{}
}

// PeerSession pairs an established T2 Session with the peer hash it was
// authenticated against. T2 learns the peer's identity only as a static
// Noise key, not a full RouterIdentity, so callers that need the latter
// must already have a hash-to-identity mapping (e.g. NetDB, out of
// scope here).
type PeerSession struct {
	PeerHash data.Hash
	Session  *Session
}

// NewManager constructs a Manager bound to addr, loading or generating
// its static keypair from keyfilePath.
func NewManager(addr *net.TCPAddr, keyfilePath string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	kp, err := LoadOrCreateKeypair(keyfilePath)
	if err != nil {
		return nil, err
	}
	return &Manager{
		addr:     addr,
		local:    kp,
		logger:   logger,
		sessions: make(map[data.Hash]*Session),
		statics:  make(map[data.Hash][]byte),
		inbound:  make(chan *PeerSession, 16),
		sem:      make(chan struct{}, maxPendingHandshakes),
	}, nil
}

// Address returns the RouterAddress this manager advertises, carrying
// its static public key so peers can dial in as the XK initiator.
func (m *Manager) Address() data.RouterAddress {
	ra := data.NewRouterAddress("NTCP2", m.addr)
	ra.Options["s"] = fmt.Sprintf("%x", m.local.Public)
	return ra
}

// RegisterPeerStaticKey records a peer's published static key, learned
// from its RouterInfo, so EnsureSession can dial it as an XK initiator.
func (m *Manager) RegisterPeerStaticKey(peerHash data.Hash, staticKey []byte) {
	m.mu.Lock()
	m.statics[peerHash] = append([]byte(nil), staticKey...)
	m.mu.Unlock()
}

// Inbound yields newly accepted, handshake-established sessions.
func (m *Manager) Inbound() <-chan *PeerSession { return m.inbound }

// ListenAndServe accepts inbound TCP connections and drives each through
// the responder side of the Noise_XK handshake.
func (m *Manager) ListenAndServe(ctx context.Context) error {
	l, err := net.ListenTCP("tcp", m.addr)
	if err != nil {
		return fmt.Errorf("ntcp2: listen %s: %w", m.addr, err)
	}
	m.addr = l.Addr().(*net.TCPAddr)
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	m.logger.Info("ntcp2 listening", "addr", m.addr.String())
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("ntcp2: accept: %w", err)
			}
		}

		select {
		case m.sem <- struct{}{}:
		case <-ctx.Done():
			conn.Close()
			return nil
		}
		go func() {
			defer func() { <-m.sem }()
			m.handleInbound(conn)
		}()
	}
}

func (m *Manager) handleInbound(conn net.Conn) {
	sess, err := handshake(conn, m.local, false, nil)
	if err != nil {
		m.logger.Warn("ntcp2 inbound handshake failed", "remote", conn.RemoteAddr(), "err", err)
		conn.Close()
		return
	}
	// The peer's static key was authenticated by the Noise pattern but
	// we have no a-priori hash to key the session map by; index by the
	// static key's own digest until a higher layer maps it to a
	// RouterIdentity hash.
	peerHash := data.DigestHash(sess.PeerStatic)

	m.mu.Lock()
	m.sessions[peerHash] = sess
	m.mu.Unlock()
	m.logger.Info("ntcp2 session established (inbound)", "peer", peerHash.String())

	select {
	case m.inbound <- &PeerSession{PeerHash: peerHash, Session: sess}:
	default:
	}
}

// EnsureSession returns a cached session to peerHash, or dials addr and
// performs the initiator side of the Noise_XK handshake using a
// previously registered static key.
func (m *Manager) EnsureSession(ctx context.Context, peerHash data.Hash, addr *net.TCPAddr) (*Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[peerHash]
	remoteStatic, haveStatic := m.statics[peerHash]
	m.mu.Unlock()
	if ok {
		return sess, nil
	}
	if !haveStatic {
		return nil, fmt.Errorf("ntcp2: no known static key for peer %s", peerHash.String())
	}

	conn, err := net.DialTCP("tcp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("ntcp2: dial %s: %w", addr, err)
	}
	sess, err = handshake(conn, m.local, true, remoteStatic)
	if err != nil {
		conn.Close()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[peerHash] = sess
	m.mu.Unlock()
	m.logger.Info("ntcp2 session established (outbound)", "peer", peerHash.String())
	return sess, nil
}

// Bid reports T2's delivery cost. Per design decision (see DESIGN.md),
// T2 prefers reusing its own live sessions over paying a fresh T1
// handshake, but costs slightly more than an already-live T1 session:
// a live T2 session bids 6 (vs. T1's 5), while establishing a fresh T2
// session bids 8 (vs. T1's fresh-connection bid of 10).
func (m *Manager) Bid(peerHash data.Hash, size int) (cost int, ok bool) {
	if size > data.MaxMessageSize {
		return 0, false
	}
	m.mu.Lock()
	_, live := m.sessions[peerHash]
	_, known := m.statics[peerHash]
	m.mu.Unlock()
	if live {
		return 6, true
	}
	if known {
		return 8, true
	}
	return 0, false
}

// Forget drops a session, e.g. after a fatal read/write error.
func (m *Manager) Forget(peerHash data.Hash) {
	m.mu.Lock()
	delete(m.sessions, peerHash)
	m.mu.Unlock()
}

// Peers returns the hashes of all currently live sessions, for the
// control API's session listing.
func (m *Manager) Peers() []data.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]data.Hash, 0, len(m.sessions))
	for h := range m.sessions {
		out = append(out, h)
	}
	return out
}
