// Package config provides shared configuration loading for the search query service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/tailscale/hujson"
)

const (
	// DefaultPort is used when no port is configured.
	DefaultPort = 9041
	// DefaultStorePath is the badger directory used when none is configured.
	DefaultStorePath = "searches.db"
	// DefaultMaxQueryLength bounds raw query text accepted over HTTP and the websocket.
	DefaultMaxQueryLength = 8192
)

// StoreConfig configures the saved search store.
type StoreConfig struct {
	Path     string `json:"path"`
	InMemory bool   `json:"in_memory"` // Keep everything in memory; nothing survives a restart
}

// GetPath returns the configured directory or DefaultStorePath.
func (s StoreConfig) GetPath() string {
	if s.Path == "" {
		return DefaultStorePath
	}
	return s.Path
}

// SearchConfig tunes the query endpoints.
type SearchConfig struct {
	MaxQueryLength int `json:"max_query_length"`
}

// GetMaxQueryLength returns the configured limit or DefaultMaxQueryLength.
func (s SearchConfig) GetMaxQueryLength() int {
	if s.MaxQueryLength <= 0 {
		return DefaultMaxQueryLength
	}
	return s.MaxQueryLength
}

// OIDCConfig configures OpenID Connect login for external access.
type OIDCConfig struct {
	ServiceURL   string `json:"service_url"`
	Callback     string `json:"callback"`
	ConfigURL    string `json:"config_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GroupsClaim  string `json:"groups_claim"` // Claim holding group membership, "groups" if empty
	EditorGroup  string `json:"editor_group"` // Group allowed to write saved searches, "editor" if empty
}

// LocalConfig configures PAM basic auth for requests that do not arrive on the service URL.
type LocalConfig struct {
	Editors string `json:"editors"` // Comma-separated usernames
}

// EditorNames returns the trimmed, non-empty usernames in Editors.
func (l *LocalConfig) EditorNames() []string {
	if l == nil {
		return nil
	}
	var names []string
	for _, name := range strings.Split(l.Editors, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// GotifyConfig configures the Gotify notifier.
type GotifyConfig struct {
	Enabled  bool   `json:"enabled"`
	Hostname string `json:"hostname"`
	Token    string `json:"token"`
	Priority int    `json:"priority"`
}

// IsValid reports whether the notifier is enabled and has everything it needs.
func (g *GotifyConfig) IsValid() bool {
	return g != nil && g.Enabled && g.Hostname != "" && g.Token != ""
}

// Config represents the complete service configuration.
type Config struct {
	Port   int           `json:"port"`
	Store  StoreConfig   `json:"store"`
	Search SearchConfig  `json:"search"`
	OIDC   *OIDCConfig   `json:"oidc"`
	Local  *LocalConfig  `json:"local"`
	Gotify *GotifyConfig `json:"gotify"`
}

// GetPort returns the configured port or DefaultPort.
func (c *Config) GetPort() int {
	if c.Port == 0 {
		return DefaultPort
	}
	return c.Port
}

// IsOIDCEnabled reports whether enough OIDC settings are present to start a provider.
func (c *Config) IsOIDCEnabled() bool {
	return c.OIDC != nil &&
		c.OIDC.ServiceURL != "" &&
		c.OIDC.ConfigURL != "" &&
		c.OIDC.ClientID != "" &&
		c.OIDC.ClientSecret != ""
}

// Global configuration instance
var (
	globalConfig *Config
	configMutex  sync.RWMutex
)

// Load reads and parses the configuration file.
// Supports JSON with comments (//, /* */) and trailing commas.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	configMutex.Lock()
	globalConfig = cfg
	configMutex.Unlock()

	return cfg, nil
}

// Parse decodes configuration from JSON with comments. It does not touch the
// global configuration.
func Parse(data []byte) (*Config, error) {
	data, err := standardizeJSON(data)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.OIDC != nil && cfg.OIDC.Callback == "" {
		cfg.OIDC.Callback = "/oidc/callback"
	}
	return &cfg, nil
}

// standardizeJSON strips comments and trailing commas from JSON.
func standardizeJSON(b []byte) ([]byte, error) {
	ast, err := hujson.Parse(b)
	if err != nil {
		return nil, err
	}
	ast.Standardize()
	return ast.Pack(), nil
}

// Get returns the currently loaded global configuration.
func Get() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// Default returns a default configuration for when no config file exists.
// It also stores the default as the global configuration.
func Default() *Config {
	cfg := &Config{
		Port:  DefaultPort,
		Store: StoreConfig{Path: DefaultStorePath},
	}

	configMutex.Lock()
	globalConfig = cfg
	configMutex.Unlock()

	return cfg
}
