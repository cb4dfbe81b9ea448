package mbtcp

import (
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/arloliu/go-plantbus/logger"
)

// ServerConfig represents the configuration parameters for a Modbus TCP
// server.
type ServerConfig struct {
	mu sync.RWMutex

	// host specifies the local interface to bind. An empty host binds all
	// interfaces.
	host string

	// port specifies the TCP port number to listen on.
	// Defaults to 5502.
	port int

	// readTimeout defines the timeout for reading the remainder of a frame
	// once its header has arrived. A connection may idle indefinitely
	// between frames.
	// Defaults to 5 seconds.
	readTimeout time.Duration

	// closeConnTimeout defines the timeout for draining connections on
	// Close.
	// Defaults to 3 seconds.
	closeConnTimeout time.Duration

	// maxConnections limits the number of concurrently served connections.
	// Further connections are accepted and immediately closed.
	// Defaults to 16.
	maxConnections int

	// logger provides a logger instance for server events and errors.
	logger logger.Logger
}

// NewServerConfig creates a server configuration with the given host, port,
// and optional functional options.
//
// It initializes a ServerConfig with default values and then applies the
// provided options. See the WithXXX functions for available options.
func NewServerConfig(host string, port int, opts ...ServerOption) (*ServerConfig, error) {
	cfg := &ServerConfig{
		host:             host,
		port:             5502,
		readTimeout:      5 * time.Second,
		closeConnTimeout: 3 * time.Second,
		maxConnections:   16,
		logger:           logger.GetLogger(),
	}

	if err := withPort(port).apply(cfg); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// ListenAddress returns the host:port endpoint the server binds.
func (cfg *ServerConfig) ListenAddress() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))
}

func (cfg *ServerConfig) ReadTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.readTimeout
}

func (cfg *ServerConfig) MaxConnections() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.maxConnections
}

// ServerOption represents a functional option for configuring a ServerConfig.
type ServerOption interface {
	apply(*ServerConfig) error
}

type serverOptFunc struct {
	name      string
	applyFunc func(*ServerConfig) error
}

func (o *serverOptFunc) apply(cfg *ServerConfig) error { return o.applyFunc(cfg) }

func newServerOptFunc(name string, f func(*ServerConfig) error) *serverOptFunc {
	return &serverOptFunc{name: name, applyFunc: f}
}

// withPort sets the TCP port number to listen on.
// An error is returned if the port number is out of the valid range (0-65535).
// Port 0 lets the operating system pick a free port, which is mainly useful
// in tests.
func withPort(port int) ServerOption {
	return newServerOptFunc("withPort", func(cfg *ServerConfig) error {
		if cfg == nil {
			return ErrServerConfigNil
		}

		if port < 0 || port > 65535 {
			return errors.New("port is out of range [0, 65535]")
		}
		cfg.port = port

		return nil
	})
}

// WithReadTimeout sets the timeout for reading the body of a frame whose
// header has arrived. It should be between 1 and 120 seconds.
//
// The default is 5 seconds.
func WithReadTimeout(timeout time.Duration) ServerOption {
	return newServerOptFunc("WithReadTimeout", func(cfg *ServerConfig) error {
		if cfg == nil {
			return ErrServerConfigNil
		}

		if timeout < 1*time.Second || timeout > 120*time.Second {
			return errors.New("read timeout is out of range [1s, 120s]")
		}
		cfg.readTimeout = timeout

		return nil
	})
}

// WithMaxConnections limits the number of concurrently served connections.
//
// The default is 16.
func WithMaxConnections(n int) ServerOption {
	return newServerOptFunc("WithMaxConnections", func(cfg *ServerConfig) error {
		if cfg == nil {
			return ErrServerConfigNil
		}

		if n < 1 {
			return errors.New("max connections must be at least 1")
		}
		cfg.maxConnections = n

		return nil
	})
}

// WithLogger sets the logger instance used by the server.
func WithLogger(l logger.Logger) ServerOption {
	return newServerOptFunc("WithLogger", func(cfg *ServerConfig) error {
		if cfg == nil {
			return ErrServerConfigNil
		}

		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
