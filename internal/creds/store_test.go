package creds

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"
)

// selfSigned generates a throwaway certificate for cn, valid for an hour.
func selfSigned(t *testing.T, cn string) tls.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		DNSNames:     []string{cn},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}
}

func commonName(t *testing.T, cert *tls.Certificate) string {
	t.Helper()
	if cert == nil {
		t.Fatal("Expected a certificate, got nil")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("parse selected certificate: %v", err)
	}
	return leaf.Subject.CommonName
}

func TestStore_Select(t *testing.T) {
	store := NewStore(selfSigned(t, "default.test"))
	store.Bind("a.example.test", selfSigned(t, "a.example.test"))
	store.Bind("b.example.test", selfSigned(t, "b.example.test"))

	cases := []struct {
		name string
		host string
		want string
	}{
		{"bound host a", "a.example.test", "a.example.test"},
		{"bound host b", "b.example.test", "b.example.test"},
		{"unknown host", "c.example.test", "default.test"},
		{"empty host", "", "default.test"},
		{"mixed case", "A.Example.TEST", "a.example.test"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := commonName(t, store.Select(tc.host))
			if got != tc.want {
				t.Errorf("Select(%q) = certificate for %q, want %q", tc.host, got, tc.want)
			}
		})
	}
}

func TestStore_SelectNeverNil(t *testing.T) {
	store := NewStore(selfSigned(t, "only.test"))
	if store.Select("anything") == nil {
		t.Error("Expected Select to fall back to the default, got nil")
	}
}

func TestStore_TLSConfig(t *testing.T) {
	store := NewStore(selfSigned(t, "default.test"))
	store.Bind("a.example.test", selfSigned(t, "a.example.test"))

	cfg := store.TLSConfig()
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("Expected MinVersion TLS 1.2, got %x", cfg.MinVersion)
	}
	if cfg.GetCertificate == nil {
		t.Fatal("Expected GetCertificate to be set")
	}

	cert, err := cfg.GetCertificate(&tls.ClientHelloInfo{ServerName: "a.example.test"})
	if err != nil {
		t.Fatalf("GetCertificate error = %v", err)
	}
	if got := commonName(t, cert); got != "a.example.test" {
		t.Errorf("Expected certificate for a.example.test, got %q", got)
	}

	cert, err = cfg.GetCertificate(&tls.ClientHelloInfo{})
	if err != nil {
		t.Fatalf("GetCertificate error = %v", err)
	}
	if got := commonName(t, cert); got != "default.test" {
		t.Errorf("Expected default certificate for empty server name, got %q", got)
	}
}

func TestStore_BindOverwrite(t *testing.T) {
	store := NewStore(selfSigned(t, "default.test"))
	store.Bind("a.example.test", selfSigned(t, "old.test"))
	store.Bind("a.example.test", selfSigned(t, "new.test"))

	if got := commonName(t, store.Select("a.example.test")); got != "new.test" {
		t.Errorf("Expected the later binding to win, got %q", got)
	}
}
