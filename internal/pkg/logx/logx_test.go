package logx

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	cases := map[string]string{
		"203.0.113.42:4433":        "203.0.113.0",
		"203.0.113.42":             "203.0.113.0",
		"127.0.0.1:9000":           "127.0.0.1",
		"[::1]:9000":               "127.0.0.1",
		"[2001:db8:1:2:3:4:5:6]:1": "2001:db8:1:2::",
		"not-an-ip":                "unknown_ip",
	}
	for in, want := range cases {
		assert.Equal(t, want, AnonymizeIP(in), in)
	}
}

func TestAnonymizeAddr(t *testing.T) {
	addr := &net.UDPAddr{IP: net.ParseIP("198.51.100.7"), Port: 4433}
	assert.Equal(t, "198.51.100.0", AnonymizeAddr(addr))
	assert.Equal(t, "unknown_ip", AnonymizeAddr(nil))
}

func TestCheckFields(t *testing.T) {
	assert.Equal(t, []any{"k", 1}, checkFields("Info", []any{"k", 1}))
	assert.Nil(t, checkFields("Info", []any{"k"}))
}
