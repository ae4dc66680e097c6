// Package config loads server configuration from a YAML file and maps it
// onto the public velox.Config.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/albertbausili/velox/pkg/velox"
)

// TLSHost holds one certificate pair bound to a virtual host name.
type TLSHost struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// TLS holds the TLS section of the config file.
type TLS struct {
	Enabled      bool               `yaml:"enabled"`
	CertFile     string             `yaml:"cert_file"`
	KeyFile      string             `yaml:"key_file"`
	VirtualHosts map[string]TLSHost `yaml:"virtual_hosts"`
}

// File models the on-disk YAML configuration.
type File struct {
	Listen         string `yaml:"listen"`
	Engine         string `yaml:"engine"`
	KeepAlive      *bool  `yaml:"keep_alive"`
	MaxConnections int    `yaml:"max_connections"`
	IdleTimeout    string `yaml:"idle_timeout"`
	TLS            TLS    `yaml:"tls"`
	MetricsListen  string `yaml:"metrics_listen"`
	DocRoot        string `yaml:"doc_root"`
}

// Load reads and parses the YAML file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &f, nil
}

// ServerConfig converts the file into a velox.Config. Fields left empty in
// the file keep the library defaults.
func (f *File) ServerConfig() (velox.Config, error) {
	cfg := velox.DefaultConfig()

	if f.Listen != "" {
		cfg.Addr = f.Listen
	}
	if f.Engine != "" {
		cfg.Engine = f.Engine
	}
	if f.KeepAlive != nil {
		cfg.DisableKeepAlive = !*f.KeepAlive
	}
	if f.MaxConnections != 0 {
		cfg.MaxConnections = f.MaxConnections
	}
	if f.IdleTimeout != "" {
		d, err := time.ParseDuration(f.IdleTimeout)
		if err != nil {
			return velox.Config{}, fmt.Errorf("parse idle_timeout: %w", err)
		}
		cfg.IdleTimeout = d
	}

	if f.TLS.Enabled {
		cfg.TLS = velox.TLSConfig{
			Enabled:  true,
			CertFile: f.TLS.CertFile,
			KeyFile:  f.TLS.KeyFile,
		}
		if len(f.TLS.VirtualHosts) > 0 {
			cfg.TLS.VirtualHosts = make(map[string]velox.CertPair, len(f.TLS.VirtualHosts))
			for host, pair := range f.TLS.VirtualHosts {
				cfg.TLS.VirtualHosts[host] = velox.CertPair{
					CertFile: pair.CertFile,
					KeyFile:  pair.KeyFile,
				}
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return velox.Config{}, err
	}
	return cfg, nil
}
