package port

import (
	"fmt"
	"net"

	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// Scanner checks whether specific ports are available on the host machine.
//
// It binds the port with net.Listen / net.ListenPacket and releases it
// immediately. This needs no elevated permissions, unlike parsing the
// output of lsof or ss.
type Scanner struct{}

// NewScanner creates a new Scanner instance.
func NewScanner() *Scanner {
	return &Scanner{}
}

// IsPortAvailable checks whether a single port is free on the host machine.
//
// We bind to all interfaces (":port" rather than "127.0.0.1:port") because
// Docker publishes ports on 0.0.0.0 by default.
//
// Returns true if the port is free, false if it is in use or the protocol
// is unknown.
func (s *Scanner) IsPortAvailable(port int, protocol string) bool {
	addr := fmt.Sprintf(":%d", port)

	switch protocol {
	case "tcp", "":
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return false
		}
		defer func() { _ = listener.Close() }()
		return true

	case "udp":
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return false
		}
		defer func() { _ = conn.Close() }()
		return true

	default:
		return false
	}
}

// Conflicts returns the mappings whose host port is already in use,
// preserving input order. An empty result means every port is free.
func (s *Scanner) Conflicts(mappings []model.PortMapping) []model.PortMapping {
	var conflicts []model.PortMapping
	for _, m := range mappings {
		if !s.IsPortAvailable(m.HostPort, m.Protocol) {
			conflicts = append(conflicts, m)
		}
	}
	return conflicts
}
