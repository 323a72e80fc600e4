package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "ENVIRONMENT", "LOG_LEVEL", "LISTEN_ADDR", "ADMIN_PORT", "ALLOWED_ORIGINS",
		"TLS_CERT_FILE", "TLS_KEY_FILE", "CERT_OUT_FILE", "MAX_NAME_BYTES", "MAX_MESSAGE_BYTES",
		"MAX_SEQUENCE_LEN", "COMMAND_RATE", "COMMAND_BURST", "KEEP_ALIVE", "IDLE_TIMEOUT", "FANOUT_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "quichat.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment = "production"
listen_addr = "127.0.0.1:5000"
admin_port = 9090
allowed_origins = [" https://a.example ", ""]
max_name_bytes = 16
max_sequence_len = 0
idle_timeout = "30s"
`), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ADMIN_PORT", "9191")
	t.Setenv("FANOUT_TIMEOUT", "750ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "127.0.0.1:5000", cfg.ListenAddr)
	assert.Equal(t, 9191, cfg.AdminPort)
	assert.Equal(t, []string{"https://a.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 16, cfg.MaxNameBytes)
	assert.Equal(t, uint32(0), cfg.MaxSequenceLen)
	assert.Equal(t, 30*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 750*time.Millisecond, cfg.FanoutTimeout)
	assert.Equal(t, 5000, cfg.MaxMessageBytes)
}

func TestLoadConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		file string
	}{
		{"bad port", map[string]string{"ADMIN_PORT": "http"}, ""},
		{"privileged port", map[string]string{"ADMIN_PORT": "80"}, ""},
		{"bad duration", map[string]string{"IDLE_TIMEOUT": "soon"}, ""},
		{"keep-alive not below idle", map[string]string{"KEEP_ALIVE": "10s", "IDLE_TIMEOUT": "5s"}, ""},
		{"cert without key", map[string]string{"TLS_CERT_FILE": "server.crt"}, ""},
		{"name limit zero", map[string]string{"MAX_NAME_BYTES": "0"}, ""},
		{"negative sequence cap", map[string]string{"MAX_SEQUENCE_LEN": "-1"}, ""},
		{"unknown file key", nil, "bogus = 1\n"},
		{"bad file duration", nil, "keep_alive = \"often\"\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if tc.file != "" {
				path := filepath.Join(t.TempDir(), "c.toml")
				require.NoError(t, os.WriteFile(path, []byte(tc.file), 0o644))
				t.Setenv("CONFIG_FILE", path)
			}

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestAdminPortZeroDisables(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADMIN_PORT", "0")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Zero(t, cfg.AdminPort)
}
