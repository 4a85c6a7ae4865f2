package chassis

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"slices"
	"time"

	"github.com/hazyhaar/auditlens/pkg/mcpquic"
	"github.com/quic-go/quic-go/http3"
)

// devCertLifetime bounds how long a generated development certificate is
// accepted; a restart issues a new one.
const devCertLifetime = 30 * 24 * time.Hour

// devHosts are always covered by a development certificate.
var devHosts = []string{"localhost", "127.0.0.1", "::1"}

// GenerateSelfSignedCert issues an ECDSA P-256 server certificate for
// localhost and the given extra hosts (names or IPs). Empty and wildcard
// listen hosts are ignored. Development only.
func GenerateSelfSignedCert(hosts ...string) (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate serial: %w", err)
	}

	notBefore := time.Now().Add(-time.Minute)
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"Auditlens Dev"}, CommonName: "auditlens"},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(devCertLifetime),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range append(slices.Clone(devHosts), hosts...) {
		addSAN(tmpl, h)
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("sign certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parse certificate: %w", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}, nil
}

func addSAN(tmpl *x509.Certificate, host string) {
	if host == "" {
		return
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsUnspecified() || slices.ContainsFunc(tmpl.IPAddresses, ip.Equal) {
			return
		}
		tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		return
	}
	if !slices.Contains(tmpl.DNSNames, host) {
		tmpl.DNSNames = append(tmpl.DNSNames, host)
	}
}

// DevelopmentTLSConfig self-signs for hosts and offers both QUIC protocols.
func DevelopmentTLSConfig(hosts ...string) (*tls.Config, error) {
	cert, err := GenerateSelfSignedCert(hosts...)
	if err != nil {
		return nil, err
	}
	return serverTLS(cert), nil
}

// ProductionTLSConfig loads cert/key files and offers both QUIC protocols.
func ProductionTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return serverTLS(cert), nil
}

func serverTLS(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		MinVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{http3.NextProtoH3, mcpquic.ALPNProtocolMCP},
	}
}
