package schema

import (
	"context"
	"net"
	"time"
)

// NetListenerFactory binds real TCP sockets through net.ListenConfig.
type NetListenerFactory struct {
	KeepAlive time.Duration
}

func (f NetListenerFactory) Listen(ctx context.Context, network, address string) (net.Listener, error) {
	lc := net.ListenConfig{KeepAlive: f.KeepAlive}
	return lc.Listen(ctx, network, address)
}

// ListenerFactoryFunc adapts a function to ListenerFactory.
type ListenerFactoryFunc func(ctx context.Context, network, address string) (net.Listener, error)

func (f ListenerFactoryFunc) Listen(ctx context.Context, network, address string) (net.Listener, error) {
	return f(ctx, network, address)
}
