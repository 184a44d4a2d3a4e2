// ABOUTME: Tests for mDNS discovery
// ABOUTME: Covers TXT records and entry conversion without touching the network
package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Test Server", Port: 8928})
	require.NotNil(t, mgr)
	assert.Equal(t, "/sinetone", mgr.config.Path)
	mgr.Stop()
}

func TestTXTRecordsAreSorted(t *testing.T) {
	mgr := NewManager(Config{
		ServiceName: "tone",
		Port:        8928,
		Info:        map[string]string{"rate": "48000", "format": "S16_LE"},
	})
	assert.Equal(t, []string{"path=/sinetone", "format=S16_LE", "rate=48000"}, mgr.txtRecords())
}

func TestEntryToServer(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "lab-tone." + ServiceType + ".local.",
		AddrV4:     net.IPv4(192, 168, 1, 20),
		Port:       8928,
		InfoFields: []string{"path=/tone", "rate=48000", "flag"},
	}

	s := entryToServer(entry)
	require.NotNil(t, s)
	assert.Equal(t, "lab-tone", s.Name)
	assert.Equal(t, "192.168.1.20:8928", s.Addr())
	assert.Equal(t, "/tone", s.Path)
	assert.Equal(t, map[string]string{"rate": "48000", "flag": ""}, s.Info)
}

func TestEntryWithoutAddress(t *testing.T) {
	assert.Nil(t, entryToServer(&mdns.ServiceEntry{Name: "x", Port: 1}))
}

func TestEntryDefaultPath(t *testing.T) {
	s := entryToServer(&mdns.ServiceEntry{Name: "x", AddrV6: net.ParseIP("fe80::1"), Port: 1})
	require.NotNil(t, s)
	assert.Equal(t, "/sinetone", s.Path)
	assert.Equal(t, "[fe80::1]:1", s.Addr())
}
