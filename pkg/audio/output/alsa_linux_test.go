//go:build linux

// ABOUTME: Tests for ALSA device name parsing
// ABOUTME: Hardware access is not required
package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHWName(t *testing.T) {
	tests := []struct {
		name         string
		card, device uint
		wantErr      bool
	}{
		{"default", 0, 0, false},
		{"", 0, 0, false},
		{"hw:0,0", 0, 0, false},
		{"hw:1,3", 1, 3, false},
		{"hw:2", 2, 0, false},
		{"plughw:0,0", 0, 0, true},
		{"hw:foo,bar", 0, 0, true},
		{"hw:0,x", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, device, err := parseHWName(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.card, card)
			assert.Equal(t, tt.device, device)
		})
	}
}

func TestNewALSAName(t *testing.T) {
	dev, err := NewALSA("hw:1,2")
	require.NoError(t, err)
	assert.Equal(t, "hw:1,2", dev.Name())
}
