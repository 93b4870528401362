// Package config loads the mqttlite command line tool settings from YAML
// with environment variable overrides.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "MQTTLITE_"

var supportedSchemes = []string{"tcp", "mqtt", "tls", "ssl", "mqtts", "ws", "wss", "quic", "unix"}

// Config is the root configuration structure.
type Config struct {
	Broker  BrokerConfig  `yaml:"broker"`
	Client  ClientConfig  `yaml:"client"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
}

// BrokerConfig describes how to reach the broker.
type BrokerConfig struct {
	// URL is scheme://host[:port], or unix:///path/to/socket. The port
	// defaults per scheme.
	URL string `yaml:"url"`

	// Proxy is an http, https, socks5 or socks5h proxy URL. When empty the
	// HTTP_PROXY family of environment variables is consulted.
	Proxy string `yaml:"proxy"`

	TLS TLSConfig `yaml:"tls"`

	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// TLSConfig holds certificate settings for tls, wss and quic brokers.
type TLSConfig struct {
	CAFile             string `yaml:"ca_file"`
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	ServerName         string `yaml:"server_name"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// ClientConfig is the identity presented in CONNECT.
type ClientConfig struct {
	ID        string        `yaml:"id"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	KeepAlive time.Duration `yaml:"keep_alive"`
	Will      WillConfig    `yaml:"will"`
}

// WillConfig is the optional last will message.
type WillConfig struct {
	Topic   string `yaml:"topic"`
	Message string `yaml:"message"`
	QoS     int    `yaml:"qos"`
	Retain  bool   `yaml:"retain"`
}

// SessionConfig tunes the protocol engine.
type SessionConfig struct {
	MaxRequests    int           `yaml:"max_requests"`
	TxBufferSize   int           `yaml:"tx_buffer_size"`
	RxBufferSize   int           `yaml:"rx_buffer_size"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Endpoint is a parsed broker URL. Port is zero when the URL has none.
// Path is only set for unix sockets.
type Endpoint struct {
	Scheme string
	Host   string
	Port   uint16
	Path   string
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with the library defaults.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			URL:         "mqtt://localhost:1883",
			DialTimeout: 10 * time.Second,
		},
		Client: ClientConfig{
			ID:        "mqttlite",
			KeepAlive: 60 * time.Second,
		},
		Session: SessionConfig{
			MaxRequests:    8,
			TxBufferSize:   512,
			RxBufferSize:   512,
			RequestTimeout: 10 * time.Second,
			MaxRetries:     3,
			ConnectTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func applyEnvOverrides(cfg *Config) error {
	overrides := map[string]*string{
		"BROKER_URL":      &cfg.Broker.URL,
		"BROKER_PROXY":    &cfg.Broker.Proxy,
		"TLS_CA_FILE":     &cfg.Broker.TLS.CAFile,
		"TLS_CERT_FILE":   &cfg.Broker.TLS.CertFile,
		"TLS_KEY_FILE":    &cfg.Broker.TLS.KeyFile,
		"TLS_SERVER_NAME": &cfg.Broker.TLS.ServerName,
		"CLIENT_ID":       &cfg.Client.ID,
		"USERNAME":        &cfg.Client.Username,
		"PASSWORD":        &cfg.Client.Password,
		"LOG_LEVEL":       &cfg.Logging.Level,
	}
	for key, dst := range overrides {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv(EnvPrefix + "KEEP_ALIVE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing %sKEEP_ALIVE: %w", EnvPrefix, err)
		}
		cfg.Client.KeepAlive = d
	}

	if v := os.Getenv(EnvPrefix + "TLS_INSECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing %sTLS_INSECURE: %w", EnvPrefix, err)
		}
		cfg.Broker.TLS.InsecureSkipVerify = b
	}

	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if _, err := c.Broker.Endpoint(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Broker.Proxy != "" {
		if _, err := url.Parse(c.Broker.Proxy); err != nil {
			errs = append(errs, "broker.proxy is not a valid URL")
		}
	}
	if (c.Broker.TLS.CertFile == "") != (c.Broker.TLS.KeyFile == "") {
		errs = append(errs, "broker.tls.cert_file and broker.tls.key_file must be set together")
	}

	if c.Client.ID == "" {
		errs = append(errs, "client.id is required")
	}
	if len(c.Client.ID) > 65535 {
		errs = append(errs, "client.id is too long")
	}
	if c.Client.Password != "" && c.Client.Username == "" {
		errs = append(errs, "client.password requires client.username")
	}
	if c.Client.KeepAlive < 0 || c.Client.KeepAlive > 65535*time.Second {
		errs = append(errs, "client.keep_alive must be between 0s and 65535s")
	}
	if c.Client.Will.QoS < 0 || c.Client.Will.QoS > 2 {
		errs = append(errs, "client.will.qos must be 0, 1, or 2")
	}
	if c.Client.Will.Topic == "" && c.Client.Will.Message != "" {
		errs = append(errs, "client.will.message requires client.will.topic")
	}

	if c.Session.MaxRequests < 1 || c.Session.MaxRequests > 65535 {
		errs = append(errs, "session.max_requests must be between 1 and 65535")
	}
	if c.Session.TxBufferSize < 16 || c.Session.RxBufferSize < 16 {
		errs = append(errs, "session buffer sizes must be at least 16 bytes")
	}
	if c.Session.MaxRetries < 0 {
		errs = append(errs, "session.max_retries must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Endpoint parses the broker URL.
func (b *BrokerConfig) Endpoint() (Endpoint, error) {
	if b.URL == "" {
		return Endpoint{}, errors.New("broker.url is required")
	}

	u, err := url.Parse(b.URL)
	if err != nil {
		return Endpoint{}, fmt.Errorf("broker.url is invalid: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if !slices.Contains(supportedSchemes, scheme) {
		return Endpoint{}, fmt.Errorf("broker.url scheme %q is not supported", u.Scheme)
	}

	if scheme == "unix" {
		if u.Path == "" {
			return Endpoint{}, errors.New("broker.url must name a socket path")
		}
		return Endpoint{Scheme: scheme, Path: u.Path}, nil
	}

	host := u.Hostname()
	if host == "" {
		return Endpoint{}, errors.New("broker.url must name a host")
	}

	ep := Endpoint{Scheme: scheme, Host: host}
	if p := u.Port(); p != "" {
		port, err := strconv.ParseUint(p, 10, 16)
		if err != nil || port == 0 {
			return Endpoint{}, fmt.Errorf("broker.url port %q is invalid", p)
		}
		ep.Port = uint16(port)
	}

	return ep, nil
}

// Address joins host and port.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// Secure reports whether the scheme runs over TLS.
func (e Endpoint) Secure() bool {
	switch e.Scheme {
	case "tls", "ssl", "mqtts", "wss", "quic":
		return true
	}
	return false
}

// Build loads the certificate files into a tls.Config. It returns nil when
// nothing is configured so dialers fall back to their defaults.
func (t *TLSConfig) Build() (*tls.Config, error) {
	if *t == (TLSConfig{}) {
		return nil, nil
	}

	cfg := &tls.Config{
		ServerName:         t.ServerName,
		InsecureSkipVerify: t.InsecureSkipVerify, //nolint:gosec // opt-in for test brokers
		MinVersion:         tls.VersionTLS12,
	}

	if t.CAFile != "" {
		pem, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", t.CAFile)
		}
		cfg.RootCAs = pool
	}

	if t.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}
