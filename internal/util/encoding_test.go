package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureUTF8(t *testing.T) {
	assert.Equal(t, "plain", EnsureUTF8("plain"))
	assert.Equal(t, "", EnsureUTF8(""))
	// 0xE9 在 Windows-1252 中是 é
	assert.Equal(t, "café", EnsureUTF8("caf\xe9"))
}

func TestNormalizeOutput(t *testing.T) {
	raw := "\xef\xbb\xbf\x1b[0mrkscli: \x1b[Kget acx\r\n\x00State: RUN\r\n"
	assert.Equal(t, "rkscli: get acx\r\nState: RUN\r\n", NormalizeOutput(raw))
	assert.Equal(t, "Channel: 44 (5220 Mhz)", NormalizeOutput("Channel: 44 (5220 Mhz)"))
}

func TestNormalizeOutputBackspace(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"erases previous", "abc\bd", "abd"},
		{"repeated", "get acxx\b\b\bcx", "get acx"},
		{"stops at line start", "rkscli:\r\n\bget acx", "rkscli:\r\nget acx"},
		{"leading", "\b\bState: RUN", "State: RUN"},
		{"multibyte", "café\be", "cafe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeOutput(tt.raw))
		})
	}
}
