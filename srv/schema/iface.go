package schema

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/gabibotos/httpsrv/log"
	"golang.org/x/sync/errgroup"
)

type (
	// ServerListener describes one listening socket: where it binds and how it serves.
	ServerListener interface {
		// Listen binds a fresh socket for the requested host and port.
		Listen(context.Context, ListenerFactory) (net.Listener, error)
		// Serve builds the http.Server for an already bound listener and starts
		// serving it on the group.
		Serve(ServerConfig, net.Listener, *errgroup.Group) (*http.Server, error)
		// Requested returns the configured host and port.
		Requested() (string, int)
		Scheme() string
		String() string
	}

	// ListenerFactory creates bound listeners.
	ListenerFactory interface {
		Listen(ctx context.Context, network, address string) (net.Listener, error)
	}

	// Hook allows for hooking into the lifecycle of the server
	Hook interface {
		ConfigureTLS(*tls.Config)
		ConfigureListener(*http.Server, string, string)
	}
)

type ServerConfig struct {
	MaxHeaderSize  int
	Logger         log.Logger
	Handler        http.Handler
	Callbacks      Hook
	CleanupTimeout time.Duration
	ConnState      func(net.Conn, http.ConnState)
}
