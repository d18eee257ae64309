package data

import (
	"net"
	"strconv"
)

// RouterAddress is a peer-reachable endpoint: a transport name, a socket
// address, and transport-specific options.
type RouterAddress struct {
	Transport string // "NTCP" or "NTCP2"
	Cost      int
	Options   map[string]string
}

// Addr returns the endpoint's TCP address, parsed from the "host" and
// "port" options, if both are present and well-formed.
func (ra RouterAddress) Addr() (*net.TCPAddr, bool) {
	host, ok := ra.Options["host"]
	if !ok {
		return nil, false
	}
	port, ok := ra.Options["port"]
	if !ok {
		return nil, false
	}
	addr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, false
	}
	return addr, true
}

// NewRouterAddress builds a RouterAddress for transport from a TCP
// endpoint.
func NewRouterAddress(transport string, addr *net.TCPAddr) RouterAddress {
	return RouterAddress{
		Transport: transport,
		Options: map[string]string{
			"host": addr.IP.String(),
			"port": strconv.Itoa(addr.Port),
		},
	}
}
