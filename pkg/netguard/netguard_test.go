package netguard

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPublic(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"8.8.8.8", true},
		{"151.101.1.69", true},
		{"2606:4700::1111", true},
		{"127.0.0.1", false},
		{"::1", false},
		{"10.0.0.5", false},
		{"172.16.3.4", false},
		{"192.168.1.1", false},
		{"169.254.169.254", false},
		{"fe80::1", false},
		{"fd00::1", false},
		{"0.0.0.0", false},
		{"100.64.0.1", false},
		{"224.0.0.1", false},
		{"::ffff:127.0.0.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPublic(netip.MustParseAddr(tt.addr)))
		})
	}
}

func TestControl(t *testing.T) {
	assert.NoError(t, Control("tcp4", "93.184.216.34:443", nil))

	for _, addr := range []string{"127.0.0.1:6379", "169.254.169.254:80", "[::1]:5432", "10.1.2.3:80", "garbage"} {
		err := Control("tcp", addr, nil)
		assert.True(t, errors.Is(err, ErrRefusedAddress), addr)
	}
}

func TestIsLocalName(t *testing.T) {
	assert.True(t, IsLocalName("localhost"))
	assert.True(t, IsLocalName("LOCALHOST."))
	assert.True(t, IsLocalName("db.localhost"))
	assert.False(t, IsLocalName("localhost.example.com"))
	assert.False(t, IsLocalName("cdn.example.com"))
}

func TestHostAllowed(t *testing.T) {
	allowed := []string{"cdn.example.com", "Images.Host.IO"}

	tests := []struct {
		host string
		want bool
	}{
		{"cdn.example.com", true},
		{"eu.cdn.example.com", true},
		{"images.host.io", true},
		{"CDN.EXAMPLE.COM.", true},
		{"example.com", false},
		{"evilcdn.example.com", false},
		{"cdn.example.com.attacker.net", false},
		{"127.0.0.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, HostAllowed(tt.host, allowed))
		})
	}

	assert.True(t, HostAllowed("anything.test", nil))
}
