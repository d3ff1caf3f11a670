package srv

import (
	"time"

	lg "github.com/gabibotos/httpsrv/log"
	"github.com/gabibotos/httpsrv/srv/schema"
	"github.com/prometheus/client_golang/prometheus"
)

type (
	Option func(*options)

	options struct {
		listener schema.ServerListener
		factory  schema.ListenerFactory

		callbacks schema.Hook
		logger    lg.Logger

		hsts        *hstsConfig
		logRequests bool
		onShutdown  func()
		metricsReg  prometheus.Registerer
		metricsNS   string
		cleanup     time.Duration
		maxHeader   ByteSize
		rebindTries int
	}
)

func newDefaultWithOptions(opts ...Option) *options {
	o := &options{
		listener:    &schema.HTTPFlg{},
		onShutdown:  func() {},
		logger:      lg.Nop(),
		cleanup:     defaultCleanupTimeout,
		maxHeader:   defaultMaxHeaderSize,
		rebindTries: 3,
	}

	for _, apply := range opts {
		apply(o)
	}

	return o
}

// LogsWith provides a logger to the server
func LogsWith(l lg.Logger) Option {
	return func(s *options) {
		if l != nil {
			s.logger = l
		}
	}
}

// LogsRequests writes an access log line per request to the server logger
func LogsRequests() Option {
	return func(s *options) {
		s.logRequests = true
	}
}

// WithListener replaces the default listener (http, all interfaces, ephemeral port)
func WithListener(listener schema.ServerListener) Option {
	return func(s *options) {
		if listener != nil {
			s.listener = listener
		}
	}
}

// WithListenerFactory replaces the factory used to bind sockets
func WithListenerFactory(factory schema.ListenerFactory) Option {
	return func(s *options) {
		s.factory = factory
	}
}

// OnShutdown runs the provided functions after every stop
func OnShutdown(handlers ...func()) Option {
	return func(s *options) {
		if len(handlers) == 0 {
			return
		}
		s.onShutdown = func() {
			for _, run := range handlers {
				run()
			}
		}
	}
}

// EnableHSTS sends the Strict-Transport-Security header on https listeners
func EnableHSTS(maxAge time.Duration, sendPreload bool) Option {
	if maxAge == 0 {
		maxAge = time.Hour * 24 * 126 // 126 days (minimum for inclusion in the Chrome HSTS list)
	}
	return func(s *options) {
		s.hsts = &hstsConfig{
			MaxAge:      maxAge,
			SendPreload: sendPreload,
		}
	}
}

// Hooks allows for registering one or more hooks for the server to call during its lifecycle
func Hooks(hook schema.Hook, extra ...schema.Hook) Option {
	h := &compositeHook{
		hooks: append([]schema.Hook{hook}, extra...),
	}
	return func(s *options) {
		s.callbacks = h
	}
}

// WithMetrics registers the listener metrics on reg
func WithMetrics(reg prometheus.Registerer, namespace string) Option {
	return func(s *options) {
		s.metricsReg = reg
		s.metricsNS = namespace
	}
}

// WithCleanupTimeout bounds Stop when its context carries no deadline
func WithCleanupTimeout(d time.Duration) Option {
	return func(s *options) {
		s.cleanup = d
	}
}

// WithMaxHeaderSize limits the size of request headers
func WithMaxHeaderSize(size ByteSize) Option {
	return func(s *options) {
		s.maxHeader = size
	}
}
