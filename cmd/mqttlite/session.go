package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/vitalvas/mqttlite"
	"github.com/vitalvas/mqttlite/internal/config"
)

// target is a resolved broker endpoint and the dialer that reaches it.
type target struct {
	dialer mqttlite.Dialer
	host   string
	port   uint16
	proxy  *url.URL
}

func resolveTarget(cfg *config.Config) (*target, error) {
	ep, err := cfg.Broker.Endpoint()
	if err != nil {
		return nil, err
	}

	if ep.Scheme == "unix" {
		// The engine still dials a host and port; the socket dialer ignores them.
		return &target{dialer: mqttlite.NewUnixDialer(ep.Path), host: "localhost", port: mqttlite.DefaultPortTCP}, nil
	}

	tlsConfig, err := cfg.Broker.TLS.Build()
	if err != nil {
		return nil, err
	}

	dialer, defaultPort, err := mqttlite.DialerForScheme(ep.Scheme, tlsConfig)
	if err != nil {
		return nil, err
	}
	if ep.Port == 0 {
		ep.Port = defaultPort
	}

	t := &target{dialer: dialer, host: ep.Host, port: ep.Port}

	proxyURL, err := proxyFor(cfg)
	if err != nil {
		return nil, err
	}
	if proxyURL == nil {
		return t, nil
	}
	t.proxy = proxyURL

	switch d := dialer.(type) {
	case *mqttlite.WSDialer:
		d.Dialer.Proxy = http.ProxyURL(proxyURL)
	case *mqttlite.QUICDialer:
		return nil, fmt.Errorf("proxy %s cannot carry quic", proxyURL.Redacted())
	default:
		pd, err := mqttlite.NewProxyDialer(proxyURL.String(), "", "")
		if err != nil {
			return nil, err
		}
		if ep.Secure() {
			pd.TLSConfig = tlsConfig
			if pd.TLSConfig == nil {
				pd.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
		t.dialer = pd
	}

	return t, nil
}

func proxyFor(cfg *config.Config) (*url.URL, error) {
	if cfg.Broker.Proxy != "" {
		return url.Parse(cfg.Broker.Proxy)
	}

	ep, err := cfg.Broker.Endpoint()
	if err != nil {
		return nil, err
	}
	if ep.Scheme == "quic" {
		return nil, nil
	}

	return mqttlite.ProxyFromEnvironment(cfg.Broker.URL)
}

// newLogger writes engine logs to stderr at the configured level.
func newLogger(cfg *config.Config) (mqttlite.Logger, error) {
	level, err := mqttlite.ParseLogLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return mqttlite.NewStdLogger(os.Stderr, level), nil
}

func clientOptions(cfg *config.Config, log mqttlite.Logger) []mqttlite.Option {
	s := cfg.Session
	return []mqttlite.Option{
		mqttlite.WithLogger(log),
		mqttlite.WithMaxRequests(s.MaxRequests),
		mqttlite.WithTxBufferSize(s.TxBufferSize),
		mqttlite.WithRxBufferSize(s.RxBufferSize),
		mqttlite.WithRequestTimeout(s.RequestTimeout),
		mqttlite.WithMaxRetries(s.MaxRetries),
		mqttlite.WithConnectTimeout(s.ConnectTimeout),
		mqttlite.WithDialTimeout(cfg.Broker.DialTimeout),
	}
}

func clientInfo(cfg *config.Config) mqttlite.ClientInfo {
	c := cfg.Client
	info := mqttlite.ClientInfo{
		ID:        c.ID,
		Username:  c.Username,
		Password:  c.Password,
		KeepAlive: c.KeepAlive,
	}
	if c.Will.Topic != "" {
		info.WillTopic = c.Will.Topic
		info.WillMessage = []byte(c.Will.Message)
		info.WillQoS = byte(c.Will.QoS)
		info.WillRetain = c.Will.Retain
	}
	return info
}

// session is a connected Runner whose events arrive on a channel owned by
// the command goroutine.
type session struct {
	runner *mqttlite.Runner
	events chan mqttlite.Event
	log    mqttlite.Logger
}

// eventBacklog is how many events may wait for the command goroutine on top
// of one per request slot.
const eventBacklog = 64

func connect(ctx context.Context, cfg *config.Config, out *printer) (*session, error) {
	t, err := resolveTarget(cfg)
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	runner, err := mqttlite.NewRunner(ctx, t.dialer, clientOptions(cfg, log)...)
	if err != nil {
		return nil, err
	}

	s := &session{
		runner: runner,
		events: make(chan mqttlite.Event, eventBacklog+cfg.Session.MaxRequests),
		log:    log,
	}

	out.connecting(cfg.Broker.URL, t.proxy)
	if err := runner.ConnectAndWait(ctx, t.host, t.port, clientInfo(cfg), s.handle); err != nil {
		runner.Close()
		return nil, err
	}

	return s, nil
}

// handle queues e for the command goroutine. It runs on the Runner
// goroutine and never blocks; events beyond the backlog are dropped.
func (s *session) handle(_ *mqttlite.Client, e mqttlite.Event) {
	select {
	case s.events <- e:
	default:
		s.log.Warn("event backlog full, dropping event", mqttlite.LogFields{mqttlite.LogFieldEvent: e.Type().String()})
	}
}

// next returns the next event, or nil once ctx is done.
func (s *session) next(ctx context.Context) mqttlite.Event {
	select {
	case e := <-s.events:
		return e
	case <-ctx.Done():
		return nil
	}
}

// close disconnects gracefully and stops the Runner.
func (s *session) close() {
	if s.runner.IsConnected() {
		if err := s.runner.Disconnect(); err != nil {
			s.log.Warn("disconnect failed", mqttlite.LogFields{mqttlite.LogFieldError: err.Error()})
		}
	}
	s.runner.Close()
}
