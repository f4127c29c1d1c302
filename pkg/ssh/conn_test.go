package ssh

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkscollector/rkscollector/internal/errs"
)

func TestConnectionInfoWithDefaults(t *testing.T) {
	info := ConnectionInfo{Host: " 10.0.0.1 ", Password: "pw"}.WithDefaults()
	assert.Equal(t, "10.0.0.1", info.Host)
	assert.Equal(t, DefaultPort, info.Port)
	assert.Equal(t, DefaultUsername, info.Username)
	assert.Equal(t, "10.0.0.1:22", info.Address())

	info = ConnectionInfo{Host: "fe80::1", Port: 2222, Username: "super"}.WithDefaults()
	assert.Equal(t, "super", info.Username)
	assert.Equal(t, "[fe80::1]:2222", info.Address())
}

func TestConnectionInfoValidate(t *testing.T) {
	tests := []struct {
		name string
		info ConnectionInfo
		want string
	}{
		{"missing password", ConnectionInfo{Host: "10.0.0.1"}, "missing required connection parameter(s): password"},
		{"missing both", ConnectionInfo{}, "missing required connection parameter(s): host, password"},
		{"bad port", ConnectionInfo{Host: "10.0.0.1", Port: 70000, Password: "topsecret"}, "invalid connection parameter(s): port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.info.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrConfiguration))
			assert.Contains(t, err.Error(), tt.want)
			assert.NotContains(t, err.Error(), "topsecret")
		})
	}

	assert.NoError(t, ConnectionInfo{Host: "10.0.0.1", Password: "pw"}.Validate())
}

func TestConnectionInfoStringMasksPassword(t *testing.T) {
	s := ConnectionInfo{Host: "10.0.0.1", Port: 22, Username: "admin", Password: "topsecret"}.String()
	assert.Equal(t, "admin@10.0.0.1:22 (password: ***)", s)
	assert.Contains(t, ConnectionInfo{Host: "h"}.String(), "<empty>")
}
