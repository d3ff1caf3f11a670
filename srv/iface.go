package srv

import (
	"context"
	"net/http"

	"github.com/gabibotos/httpsrv/srv/schema"
)

// Server manages the lifecycle of a single http or https listener.
//
// The address accessors are safe to call from any goroutine. Start and Stop
// should be sequenced by the caller.
type Server interface {
	// GetHandler returns the handler requests are dispatched to, useful for testing
	GetHandler() http.Handler

	// Start binds the listener and begins serving. It returns once the socket is bound.
	Start(context.Context) error
	// Stop closes the listener and waits for in-flight requests. Stopping a
	// server that is not listening is a no-op.
	Stop(context.Context) error

	Listening() bool
	// Address reports the bound address; ok is false unless listening.
	Address() (info schema.AddressInfo, ok bool)
	// Port is the requested port until the first start, then the bound one.
	Port() int
	// Host is the requested host (empty when unset) until the first start, then the bound one.
	Host() string
	Protocol() string
	URL() string
}
