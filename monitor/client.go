// Package monitor implements a Bubble Tea TUI that dials the router's
// control API event stream and renders a live table of peer sessions.
package monitor

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
)

// RowEvent mirrors control.Event's JSON shape without importing the
// control package (the monitor only ever speaks to it over the wire).
type RowEvent struct {
	Type      string `json:"type"`
	PeerHash  string `json:"peer_hash"`
	Transport string `json:"transport,omitempty"`
	Cost      int    `json:"cost,omitempty"`
	Seconds   uint32 `json:"seconds,omitempty"`
	Timestamp string `json:"timestamp"`
}

// EventStream wraps a WebSocket connection to /api/v1/events.
type EventStream struct {
	conn *websocket.Conn
}

// DialEvents connects to host's control API event stream, e.g.
// "127.0.0.1:7070".
func DialEvents(host string) (*EventStream, error) {
	u := url.URL{Scheme: "ws", Host: host, Path: "/api/v1/events"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("monitor: dial %s: %w", u.String(), err)
	}
	return &EventStream{conn: conn}, nil
}

// Next blocks for the next event on the stream.
func (s *EventStream) Next() (RowEvent, error) {
	var ev RowEvent
	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		return ev, err
	}
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ev, fmt.Errorf("monitor: decode event: %w", err)
	}
	return ev, nil
}

// Close closes the underlying connection.
func (s *EventStream) Close() error { return s.conn.Close() }
