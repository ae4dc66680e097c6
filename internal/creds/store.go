// Package creds selects server TLS credentials by the host name a client
// asserts during the handshake (SNI virtual hosting).
package creds

import (
	"crypto/tls"
	"fmt"
	"strings"
)

// Store maps virtual host names to certificate/key pairs, with a mandatory
// default pair for connections that assert no host name or an unknown one.
//
// A Store is built once during configuration and read-only afterwards, so
// concurrent lookups need no locking.
type Store struct {
	def    tls.Certificate
	byHost map[string]*tls.Certificate
}

// NewStore creates a store presenting def when no virtual host matches.
func NewStore(def tls.Certificate) *Store {
	return &Store{
		def:    def,
		byHost: make(map[string]*tls.Certificate),
	}
}

// NewStoreFromFiles creates a store with the default pair loaded from PEM
// files.
func NewStoreFromFiles(certFile, keyFile string) (*Store, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load default key pair: %w", err)
	}
	return NewStore(cert), nil
}

// Bind associates a virtual host name with a certificate/key pair.
// Configuration phase only; not safe to call once the store is serving.
func (s *Store) Bind(host string, cert tls.Certificate) {
	s.byHost[strings.ToLower(host)] = &cert
}

// BindFiles associates a virtual host name with a pair loaded from PEM
// files.
func (s *Store) BindFiles(host, certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return fmt.Errorf("load key pair for %q: %w", host, err)
	}
	s.Bind(host, cert)
	return nil
}

// Select returns the pair for the requested host: exact match, else the
// default. The empty host always selects the default. Select is a pure
// lookup and never returns nil.
func (s *Store) Select(host string) *tls.Certificate {
	if host != "" {
		if cert, ok := s.byHost[strings.ToLower(host)]; ok {
			return cert
		}
	}
	return &s.def
}

// TLSConfig returns a server-side TLS configuration whose handshake picks
// credentials through Select, using the host name from the client hello.
// The choice is made once per connection, before any application byte is
// exchanged.
func (s *Store) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		GetCertificate: func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
			return s.Select(hello.ServerName), nil
		},
	}
}
