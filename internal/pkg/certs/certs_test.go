package certs

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	cert, err := Generate("chat.example", "10.1.2.3")
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)

	assert.Equal(t, []string{"chat.example"}, cert.Leaf.DNSNames)
	require.Len(t, cert.Leaf.IPAddresses, 1)
	assert.Equal(t, "10.1.2.3", cert.Leaf.IPAddresses[0].String())
	assert.NoError(t, cert.Leaf.VerifyHostname("chat.example"))
}

func TestWriteDERAndClientConfig(t *testing.T) {
	cert, err := Generate()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cert.der")
	require.NoError(t, WriteDER(path, cert))

	conf, err := ClientConfigFromFile("localhost", path)
	require.NoError(t, err)
	assert.Equal(t, "localhost", conf.ServerName)

	_, err = cert.Leaf.Verify(x509.VerifyOptions{DNSName: "localhost", Roots: conf.RootCAs})
	assert.NoError(t, err)

	assert.Error(t, WriteDER(path, tls.Certificate{}))
	_, err = ClientConfig("localhost", []byte("not der"))
	assert.Error(t, err)
}

func TestLoadOrGenerate(t *testing.T) {
	t.Run("generates without paths", func(t *testing.T) {
		cert, generated, err := LoadOrGenerate("", "")
		require.NoError(t, err)
		assert.True(t, generated)
		assert.NotEmpty(t, cert.Certificate)
	})

	t.Run("loads pem files", func(t *testing.T) {
		cert, err := Generate()
		require.NoError(t, err)

		dir := t.TempDir()
		certPath := filepath.Join(dir, "server.crt")
		keyPath := filepath.Join(dir, "server.key")

		keyDER, err := x509.MarshalPKCS8PrivateKey(cert.PrivateKey)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate[0]}), 0o644))
		require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}), 0o600))

		loaded, generated, err := LoadOrGenerate(certPath, keyPath)
		require.NoError(t, err)
		assert.False(t, generated)
		assert.Equal(t, cert.Certificate[0], loaded.Certificate[0])
	})

	t.Run("missing files", func(t *testing.T) {
		_, _, err := LoadOrGenerate("/nonexistent.crt", "/nonexistent.key")
		assert.Error(t, err)
	})
}
