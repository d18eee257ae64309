package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/cvsouth/i2p-go/data"
	"github.com/cvsouth/i2p-go/ntcp"
	"github.com/cvsouth/i2p-go/ntcp2"
	"github.com/cvsouth/i2p-go/reputation"
)

// Transport is the contract both ntcp.Manager and ntcp2.Manager satisfy:
// a per-peer delivery cost estimate, cheapest-wins.
type Transport interface {
	Bid(peerHash data.Hash, size int) (cost int, ok bool)
}

var (
	_ Transport = (*ntcp.Manager)(nil)
	_ Transport = (*ntcp2.Manager)(nil)
)

// Manager is the cross-transport dispatcher: it owns one T1 and one T2
// manager, bids every outbound message across both, and multiplexes
// their inbound sessions fairly.
type Manager struct {
	t1  *ntcp.Manager
	t2  *ntcp2.Manager
	rep reputation.Store

	logger *slog.Logger

	started atomic.Bool

	routesMu sync.Mutex
	routes   map[data.Hash]*peerRoute
}

// peerRoute is the per-peer outbound queue: a Handle that Send enqueues
// onto, drained by a single goroutine that owns the actual write so
// concurrent Sends to the same peer can never race each other's bid
// decision against a session that changed mid-flight.
type peerRoute struct {
	handle *Handle
	peer   data.RouterIdentity
	t1Addr *net.TCPAddr
	t2Addr *net.TCPAddr
}

// NewManager builds a dispatcher over already-constructed T1/T2
// managers and a reputation store. rep may be nil, in which case the
// reputation gate is skipped entirely (useful for tests).
func NewManager(t1 *ntcp.Manager, t2 *ntcp2.Manager, rep reputation.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{t1: t1, t2: t2, rep: rep, logger: logger, routes: make(map[data.Hash]*peerRoute)}
}

// Addresses returns the RouterAddress values this router should
// advertise in its RouterInfo, one per live transport.
func (m *Manager) Addresses() []data.RouterAddress {
	return []data.RouterAddress{m.t1.Address(), m.t2.Address()}
}

// SessionInfo names one live session for the control API's session
// listing.
type SessionInfo struct {
	PeerHash  data.Hash
	Transport string
}

// Sessions reports every currently live session across both transports.
func (m *Manager) Sessions() []SessionInfo {
	out := make([]SessionInfo, 0)
	for _, h := range m.t1.Peers() {
		out = append(out, SessionInfo{PeerHash: h, Transport: "NTCP"})
	}
	for _, h := range m.t2.Peers() {
		out = append(out, SessionInfo{PeerHash: h, Transport: "NTCP2"})
	}
	return out
}

// Start launches the listener-accept loops for both transports and the
// fair ingress multiplexer, all tied to an internally derived context.
// It may be called at most once; a second call returns an error rather
// than panicking, since that is the idiom this codebase uses throughout
// for caller mistakes it can detect cheaply.
func (m *Manager) Start(ctx context.Context) (func() (*PeerSession, bool), context.CancelFunc, error) {
	if !m.started.CompareAndSwap(false, true) {
		return nil, nil, fmt.Errorf("transport: Start called more than once")
	}

	runCtx, cancel := context.WithCancel(ctx)

	merged := make(chan *PeerSession, 32)
	t1in := make(chan *PeerSession, 16)
	t2in := make(chan *PeerSession, 16)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return m.t1.ListenAndServe(gctx) })
	g.Go(func() error { return m.t2.ListenAndServe(gctx) })
	g.Go(func() error {
		for p := range m.t1.Inbound() {
			select {
			case t1in <- &PeerSession{T1: p}:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})
	g.Go(func() error {
		for p := range m.t2.Inbound() {
			select {
			case t2in <- &PeerSession{T2: p}:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})
	g.Go(func() error {
		fairSelect(gctx, t1in, t2in, merged)
		return nil
	})

	go func() {
		if err := g.Wait(); err != nil {
			m.logger.Warn("transport manager stopped", "err", err)
		}
	}()

	next := func() (*PeerSession, bool) {
		select {
		case p, ok := <-merged:
			return p, ok
		case <-runCtx.Done():
			return nil, false
		}
	}
	return next, cancel, nil
}

// PeerSession is one fairly-multiplexed inbound session, from whichever
// transport produced it.
type PeerSession struct {
	T1 *ntcp.PeerSession
	T2 *ntcp2.PeerSession
}

// bannedErr is returned by Send when the peer reputation gate rejects
// a peer before any transport is consulted.
type bannedErr struct{ hash data.Hash }

func (e *bannedErr) Error() string {
	return fmt.Sprintf("transport: peer %s is banned", e.hash.String())
}

// Send bids the message across both transports to confirm at least one
// can currently accept it, then hands it to the peer's Handle: a
// single per-peer goroutine drains the Handle and re-bids each message
// at write time, so a session that comes up or drops between Send and
// actual delivery never races the caller's view of which transport
// won. Before bidding, it consults the reputation store; a banned peer
// causes Send to reject the message immediately without invoking
// either transport's Bid.
func (m *Manager) Send(ctx context.Context, peer data.RouterIdentity, t2Addr *net.TCPAddr, t1Addr *net.TCPAddr, msg data.Message) error {
	hash := peer.Hash()
	if m.rep != nil {
		banned, err := m.rep.IsBanned(hash)
		if err != nil {
			return fmt.Errorf("transport: reputation check: %w", err)
		}
		if banned {
			return &bannedErr{hash: hash}
		}
	}

	_, t1OK := m.t1.Bid(hash, msg.Size())
	_, t2OK := m.t2.Bid(hash, msg.SizeForT2())
	if !t1OK && !t2OK {
		return fmt.Errorf("transport: no transport can deliver to %s", hash.String())
	}

	route := m.routeFor(ctx, hash, peer, t1Addr, t2Addr)
	route.handle.Send(hash, msg)
	return nil
}

// routeFor returns the peer's existing route, or creates one and starts
// its drain goroutine if this is the first Send to that hash.
func (m *Manager) routeFor(ctx context.Context, hash data.Hash, peer data.RouterIdentity, t1Addr, t2Addr *net.TCPAddr) *peerRoute {
	m.routesMu.Lock()
	defer m.routesMu.Unlock()

	r, ok := m.routes[hash]
	if ok {
		if t1Addr != nil {
			r.t1Addr = t1Addr
		}
		if t2Addr != nil {
			r.t2Addr = t2Addr
		}
		return r
	}

	r = &peerRoute{handle: NewHandle(), peer: peer, t1Addr: t1Addr, t2Addr: t2Addr}
	m.routes[hash] = r
	go m.drainRoute(ctx, hash, r)
	return r
}

// drainRoute is the single writer for one peer's outbound queue: it
// pulls queued messages off the Handle and bids again at delivery time,
// so the transport chosen reflects the session state at the moment of
// the write rather than at the moment of the call to Send. Timestamps
// queued on the Handle are not read here.
func (m *Manager) drainRoute(ctx context.Context, hash data.Hash, r *peerRoute) {
	go func() {
		<-ctx.Done()
		r.handle.Close()
	}()

	for {
		item, ok := r.handle.RecvMessage()
		if !ok {
			return
		}
		if err := m.deliver(ctx, hash, r, item.Msg); err != nil {
			m.logger.Warn("transport: outbound delivery failed", "peer", hash.String(), "err", err)
		}
	}
}

func (m *Manager) deliver(ctx context.Context, hash data.Hash, r *peerRoute, msg data.Message) error {
	t1Cost, t1OK := m.t1.Bid(hash, msg.Size())
	t2Cost, t2OK := m.t2.Bid(hash, msg.SizeForT2())

	switch {
	case !t1OK && !t2OK:
		return fmt.Errorf("transport: no transport can deliver to %s", hash.String())
	case t1OK && (!t2OK || t1Cost <= t2Cost):
		return m.sendT1(ctx, r.peer, r.t1Addr, msg)
	default:
		return m.sendT2(ctx, hash, r.t2Addr, msg)
	}
}

func (m *Manager) sendT1(ctx context.Context, peer data.RouterIdentity, addr *net.TCPAddr, msg data.Message) error {
	sess, err := m.t1.EnsureSession(ctx, peer, addr)
	if err != nil {
		return fmt.Errorf("transport: t1 send: %w", err)
	}
	buf := make([]byte, msg.Size())
	n, ok := msg.Serialize(buf)
	if !ok {
		return fmt.Errorf("transport: t1 send: message did not fit its own reported size")
	}
	return sess.WriteStandard(buf[:n])
}

func (m *Manager) sendT2(ctx context.Context, hash data.Hash, addr *net.TCPAddr, msg data.Message) error {
	sess, err := m.t2.EnsureSession(ctx, hash, addr)
	if err != nil {
		return fmt.Errorf("transport: t2 send: %w", err)
	}
	buf := make([]byte, msg.SizeForT2())
	n, ok := msg.Serialize(buf)
	if !ok {
		return fmt.Errorf("transport: t2 send: message did not fit its own reported size")
	}
	return sess.WriteStandard(buf[:n])
}
