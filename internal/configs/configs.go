/*
Package configs loads the server configuration.

Values are resolved in three layers: built-in defaults, then an optional TOML
file named by CONFIG_FILE, then individual environment variables. The result is
validated before it is returned.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// AppConfig contains every parameter the server needs at runtime.
type AppConfig struct {
	// General Server Settings
	Environment string
	LogLevel    string

	// ListenAddr is the UDP address of the QUIC chat listener.
	ListenAddr string

	// AdminPort serves the HTTP admin API and observer feed. 0 disables it.
	AdminPort int

	// Security Settings
	AllowedOrigins []string
	TLSCertFile    string
	TLSKeyFile     string

	// CertOutFile receives the DER certificate when one is generated, so
	// clients can pin it. Empty skips writing.
	CertOutFile string

	// Protocol limits
	MaxNameBytes    int
	MaxMessageBytes int
	MaxSequenceLen  uint32

	// Per-connection command rate; CommandRate <= 0 disables limiting.
	CommandRate  float64
	CommandBurst int

	// Transport timing
	KeepAlive     time.Duration
	IdleTimeout   time.Duration
	FanoutTimeout time.Duration
}

// fileConfig mirrors the TOML layout. Durations are strings such as "5s".
type fileConfig struct {
	Environment     string   `toml:"environment"`
	LogLevel        string   `toml:"log_level"`
	ListenAddr      string   `toml:"listen_addr"`
	AdminPort       int      `toml:"admin_port"`
	AllowedOrigins  []string `toml:"allowed_origins"`
	TLSCertFile     string   `toml:"tls_cert_file"`
	TLSKeyFile      string   `toml:"tls_key_file"`
	CertOutFile     string   `toml:"cert_out_file"`
	MaxNameBytes    int      `toml:"max_name_bytes"`
	MaxMessageBytes int      `toml:"max_message_bytes"`
	MaxSequenceLen  int64    `toml:"max_sequence_len"`
	CommandRate     float64  `toml:"command_rate"`
	CommandBurst    int      `toml:"command_burst"`
	KeepAlive       string   `toml:"keep_alive"`
	IdleTimeout     string   `toml:"idle_timeout"`
	FanoutTimeout   string   `toml:"fanout_timeout"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *AppConfig {
	return &AppConfig{
		Environment:     "development",
		LogLevel:        "info",
		ListenAddr:      "0.0.0.0:4433",
		AdminPort:       8080,
		AllowedOrigins:  []string{},
		CertOutFile:     "cert.der",
		MaxNameBytes:    32,
		MaxMessageBytes: 5000,
		MaxSequenceLen:  1 << 16,
		CommandRate:     20,
		CommandBurst:    40,
		KeepAlive:       time.Second,
		IdleTimeout:     5 * time.Second,
		FanoutTimeout:   2 * time.Second,
	}
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig resolves defaults, the CONFIG_FILE TOML file and the environment.
func LoadConfig() (*AppConfig, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config file %s: unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("environment") {
		c.Environment = strings.TrimSpace(raw.Environment)
	}
	if meta.IsDefined("log_level") {
		c.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("listen_addr") {
		c.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("admin_port") {
		c.AdminPort = raw.AdminPort
	}
	if meta.IsDefined("allowed_origins") {
		c.AllowedOrigins = normalizeList(raw.AllowedOrigins)
	}
	if meta.IsDefined("tls_cert_file") {
		c.TLSCertFile = strings.TrimSpace(raw.TLSCertFile)
	}
	if meta.IsDefined("tls_key_file") {
		c.TLSKeyFile = strings.TrimSpace(raw.TLSKeyFile)
	}
	if meta.IsDefined("cert_out_file") {
		c.CertOutFile = strings.TrimSpace(raw.CertOutFile)
	}
	if meta.IsDefined("max_name_bytes") {
		c.MaxNameBytes = raw.MaxNameBytes
	}
	if meta.IsDefined("max_message_bytes") {
		c.MaxMessageBytes = raw.MaxMessageBytes
	}
	if meta.IsDefined("max_sequence_len") {
		if raw.MaxSequenceLen < 0 || raw.MaxSequenceLen > int64(^uint32(0)) {
			return fmt.Errorf("config file %s: max_sequence_len %d out of range", path, raw.MaxSequenceLen)
		}
		c.MaxSequenceLen = uint32(raw.MaxSequenceLen)
	}
	if meta.IsDefined("command_rate") {
		c.CommandRate = raw.CommandRate
	}
	if meta.IsDefined("command_burst") {
		c.CommandBurst = raw.CommandBurst
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"keep_alive", raw.KeepAlive, &c.KeepAlive},
		{"idle_timeout", raw.IdleTimeout, &c.IdleTimeout},
		{"fanout_timeout", raw.FanoutTimeout, &c.FanoutTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("config file %s: parse %s: %w", path, d.key, err)
		}
		*d.dst = v
	}

	return nil
}

func (c *AppConfig) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("ENVIRONMENT"); ok {
		c.Environment = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("LISTEN_ADDR"); ok {
		c.ListenAddr = v
	}
	if v, ok := get("ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = normalizeList(strings.Split(v, ","))
	}
	if v, ok := get("TLS_CERT_FILE"); ok {
		c.TLSCertFile = v
	}
	if v, ok := get("TLS_KEY_FILE"); ok {
		c.TLSKeyFile = v
	}
	if v, ok := get("CERT_OUT_FILE"); ok {
		c.CertOutFile = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"ADMIN_PORT", &c.AdminPort},
		{"MAX_NAME_BYTES", &c.MaxNameBytes},
		{"MAX_MESSAGE_BYTES", &c.MaxMessageBytes},
		{"COMMAND_BURST", &c.CommandBurst},
	}
	for _, e := range ints {
		v, ok := get(e.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s environment variable: %w", e.key, err)
		}
		*e.dst = n
	}

	if v, ok := get("MAX_SEQUENCE_LEN"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid MAX_SEQUENCE_LEN environment variable: %w", err)
		}
		c.MaxSequenceLen = uint32(n)
	}

	if v, ok := get("COMMAND_RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid COMMAND_RATE environment variable: %w", err)
		}
		c.CommandRate = f
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"KEEP_ALIVE", &c.KeepAlive},
		{"IDLE_TIMEOUT", &c.IdleTimeout},
		{"FANOUT_TIMEOUT", &c.FanoutTimeout},
	}
	for _, e := range durations {
		v, ok := get(e.key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s environment variable: %w", e.key, err)
		}
		*e.dst = d
	}

	return nil
}

// Validate checks ranges and cross-field constraints.
func (c *AppConfig) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.AdminPort != 0 && (c.AdminPort < 1024 || c.AdminPort > 65535) {
		return fmt.Errorf("admin port %d is outside the allowed range (%d-%d)", c.AdminPort, 1024, 65535)
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	if c.MaxNameBytes < 1 || c.MaxNameBytes > 65535 {
		return fmt.Errorf("max name bytes %d must be between 1 and 65535", c.MaxNameBytes)
	}
	if c.MaxMessageBytes < 1 || c.MaxMessageBytes > 65535 {
		return fmt.Errorf("max message bytes %d must be between 1 and 65535", c.MaxMessageBytes)
	}
	if c.CommandRate > 0 && c.CommandBurst < 1 {
		return fmt.Errorf("command burst must be at least 1 when command rate is set")
	}
	if c.KeepAlive < 0 || c.IdleTimeout <= 0 || c.FanoutTimeout <= 0 {
		return fmt.Errorf("keep-alive must be >= 0 and idle/fanout timeouts must be positive")
	}
	if c.KeepAlive >= c.IdleTimeout {
		return fmt.Errorf("keep-alive %s must be shorter than idle timeout %s", c.KeepAlive, c.IdleTimeout)
	}
	return nil
}

func normalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
