package port

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/devlaunch/internal/model"
)

// freeTCPPort asks the OS for an unused port and releases it.
func freeTCPPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

// TestIsPortAvailable_FreePort verifies a released port reads as free.
func TestIsPortAvailable_FreePort(t *testing.T) {
	port := freeTCPPort(t)
	assert.True(t, NewScanner().IsPortAvailable(port, "tcp"))
}

// TestIsPortAvailable_UsedPort verifies that a port held by a listener
// in this process reads as in use.
func TestIsPortAvailable_UsedPort(t *testing.T) {
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err, "failed to start test listener")
	defer func() { _ = listener.Close() }()

	port := listener.Addr().(*net.TCPAddr).Port
	assert.False(t, NewScanner().IsPortAvailable(port, "tcp"))
}

// TestIsPortAvailable_UDP verifies UDP port scanning.
func TestIsPortAvailable_UDP(t *testing.T) {
	conn, err := net.ListenPacket("udp", ":0")
	require.NoError(t, err, "failed to start test UDP listener")
	defer func() { _ = conn.Close() }()

	port := conn.LocalAddr().(*net.UDPAddr).Port
	assert.False(t, NewScanner().IsPortAvailable(port, "udp"))
}

// TestIsPortAvailable_UnknownProtocol verifies fail-safe behavior.
func TestIsPortAvailable_UnknownProtocol(t *testing.T) {
	assert.False(t, NewScanner().IsPortAvailable(50000, "sctp"))
}

// TestConflicts reports only the mapping whose host port is held.
func TestConflicts(t *testing.T) {
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()
	busy := listener.Addr().(*net.TCPAddr).Port
	free := freeTCPPort(t)

	mappings := []model.PortMapping{
		{HostPort: free, ContainerPort: 5678, Protocol: "tcp"},
		{HostPort: busy, ContainerPort: 8080, Protocol: "tcp"},
	}

	conflicts := NewScanner().Conflicts(mappings)
	require.Len(t, conflicts, 1)
	assert.Equal(t, busy, conflicts[0].HostPort)
}

func TestConflicts_Empty(t *testing.T) {
	assert.Empty(t, NewScanner().Conflicts(nil))
}
