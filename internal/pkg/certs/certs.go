/*
Package certs provides the TLS material for the QUIC listener and its clients.

The server either loads a PEM certificate and key from disk or generates a
self-signed certificate at startup. A generated certificate can be written out
in DER form so clients can trust exactly that certificate.
*/
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

// DefaultHosts are the names a generated certificate is valid for.
var DefaultHosts = []string{"localhost", "127.0.0.1", "::1"}

const validity = 365 * 24 * time.Hour

// Generate creates a self-signed ECDSA P-256 certificate for hosts. Entries that
// parse as IP addresses become IP SANs; the rest become DNS SANs.
func Generate(hosts ...string) (tls.Certificate, error) {
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: hosts[0]},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("create certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parse certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

// Load reads a PEM certificate chain and key.
func Load(certFile, keyFile string) (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load key pair: %w", err)
	}
	return cert, nil
}

// LoadOrGenerate loads the key pair when both paths are set and generates one
// otherwise. generated reports which happened.
func LoadOrGenerate(certFile, keyFile string) (cert tls.Certificate, generated bool, err error) {
	if certFile != "" && keyFile != "" {
		cert, err = Load(certFile, keyFile)
		return cert, false, err
	}
	cert, err = Generate()
	return cert, true, err
}

// WriteDER writes the leaf certificate of cert to path in DER form.
func WriteDER(path string, cert tls.Certificate) error {
	if len(cert.Certificate) == 0 {
		return errors.New("certificate chain is empty")
	}
	if err := os.WriteFile(path, cert.Certificate[0], 0o644); err != nil {
		return fmt.Errorf("write certificate %s: %w", path, err)
	}
	return nil
}

// ServerConfig returns a TLS configuration presenting cert.
func ServerConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	}
}

// ClientConfig trusts only the DER certificates in trusted. serverName is
// checked against the certificate SANs.
func ClientConfig(serverName string, trusted ...[]byte) (*tls.Config, error) {
	pool := x509.NewCertPool()
	for _, der := range trusted {
		c, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("parse trusted certificate: %w", err)
		}
		pool.AddCert(c)
	}
	return &tls.Config{
		RootCAs:    pool,
		ServerName: serverName,
		MinVersion: tls.VersionTLS13,
	}, nil
}

// ClientConfigFromFile is ClientConfig with the DER certificate read from path.
func ClientConfigFromFile(serverName, path string) (*tls.Config, error) {
	der, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read certificate %s: %w", path, err)
	}
	return ClientConfig(serverName, der)
}
