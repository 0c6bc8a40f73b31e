// connections.go manages saved database connections used for schema import.
//
// Connections are stored in ~/.obsql/connections.json so the composer can
// pull a schema from a live database instead of having it pasted.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DBConfig is a resolved connection target for schema import.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	SSH SSHConfig
}

// SSHConfig holds SSH tunnel settings.
type SSHConfig struct {
	Enabled       bool
	Host          string
	Port          int
	User          string
	KeyPath       string
	KeyPassphrase string
	// KnownHostsPath defaults to ~/.ssh/known_hosts.
	KnownHostsPath string
	// InsecureIgnoreHostKey skips host key verification.
	InsecureIgnoreHostKey bool
}

// DSN builds a pgx-compatible connection URL.
// When an SSH tunnel is active, the caller overrides Host/Port with the
// local tunnel endpoint first.
func (c DBConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// Connection is a named, saveable database connection profile.
type Connection struct {
	Name     string   `json:"name"`
	Host     string   `json:"host"`
	Port     string   `json:"port"`
	User     string   `json:"user"`
	Password string   `json:"password"`
	Database string   `json:"database"`
	Schema   string   `json:"schema,omitempty"`
	SSLMode  string   `json:"ssl_mode"`
	SSH      SSHEntry `json:"ssh,omitempty"`
}

// SSHEntry holds SSH tunnel settings for a saved connection.
type SSHEntry struct {
	Enabled       bool   `json:"enabled,omitempty"`
	Host          string `json:"host,omitempty"`
	Port          string `json:"port,omitempty"`
	User          string `json:"user,omitempty"`
	KeyPath       string `json:"key_path,omitempty"`
	KeyPassphrase string `json:"key_passphrase,omitempty"`
	KnownHosts    string `json:"known_hosts,omitempty"`
	Insecure      bool   `json:"insecure_ignore_host_key,omitempty"`
}

// DBConfig converts the stored profile into a connection target.
func (c Connection) DBConfig() (DBConfig, error) {
	port, err := parsePort(c.Port, 5432)
	if err != nil {
		return DBConfig{}, fmt.Errorf("connection %q: port: %w", c.Name, err)
	}
	cfg := DBConfig{
		Host:     c.Host,
		Port:     port,
		User:     c.User,
		Password: c.Password,
		Database: c.Database,
		SSLMode:  c.SSLMode,
	}
	if c.SSH.Enabled {
		sshPort, err := parsePort(c.SSH.Port, 22)
		if err != nil {
			return DBConfig{}, fmt.Errorf("connection %q: ssh port: %w", c.Name, err)
		}
		cfg.SSH = SSHConfig{
			Enabled:       true,
			Host:          c.SSH.Host,
			Port:          sshPort,
			User:          c.SSH.User,
			KeyPath:       c.SSH.KeyPath,
			KeyPassphrase: c.SSH.KeyPassphrase,

			KnownHostsPath:        c.SSH.KnownHosts,
			InsecureIgnoreHostKey: c.SSH.Insecure,
		}
	}
	return cfg, nil
}

func parsePort(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("%d out of range", port)
	}
	return port, nil
}

// ConnectionStore manages saved connections on disk.
type ConnectionStore struct {
	path        string
	Connections []Connection `json:"connections"`
}

// NewConnectionStore creates a store, loading from ~/.obsql/connections.json.
func NewConnectionStore() (*ConnectionStore, error) {
	return OpenConnectionStore(Dir())
}

// OpenConnectionStore loads connections.json from dir, creating dir if needed.
func OpenConnectionStore(dir string) (*ConnectionStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	store := &ConnectionStore{
		path: filepath.Join(dir, "connections.json"),
	}

	data, err := os.ReadFile(store.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, store); err != nil {
		return nil, fmt.Errorf("parse connections: %w", err)
	}

	return store, nil
}

// Save writes all connections to disk.
func (s *ConnectionStore) Save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// Add adds or updates a connection by name.
func (s *ConnectionStore) Add(conn Connection) {
	for i, c := range s.Connections {
		if c.Name == conn.Name {
			s.Connections[i] = conn
			return
		}
	}
	s.Connections = append(s.Connections, conn)
}

// Delete removes a connection by name.
func (s *ConnectionStore) Delete(name string) {
	for i, c := range s.Connections {
		if c.Name == name {
			s.Connections = append(s.Connections[:i], s.Connections[i+1:]...)
			return
		}
	}
}

// Get retrieves a connection by name.
func (s *ConnectionStore) Get(name string) (Connection, bool) {
	for _, c := range s.Connections {
		if c.Name == name {
			return c, true
		}
	}
	return Connection{}, false
}

// DefaultConnection returns a connection with sensible defaults.
func DefaultConnection() Connection {
	return Connection{
		Host:     "localhost",
		Port:     "5432",
		User:     "postgres",
		Database: "postgres",
		Schema:   "public",
		SSLMode:  "disable",
		SSH: SSHEntry{
			Port: "22",
		},
	}
}
