package schema

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
)

// HTTPFlg configures a plaintext listener. The zero value listens on an
// ephemeral port on all interfaces.
type HTTPFlg struct {
	Prefix       string        `yaml:"prefix"`
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ListenLimit  int           `yaml:"listenLimit"`
	KeepAlive    time.Duration `yaml:"keepAlive"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

func (h *HTTPFlg) RegisterFlags(fs *flag.FlagSet) {
	prefix := h.Prefix

	fs.StringVar(&h.Host, prefixer(prefix, "host"), h.Host, "the IP to listen on")
	fs.IntVar(&h.Port, prefixer(prefix, "port"), h.Port, "the port to listen on for http connections, defaults to a random value")
	fs.IntVar(&h.ListenLimit, prefixer(prefix, "listen-limit"), h.ListenLimit, "limit the number of outstanding requests")
	fs.DurationVar(&h.KeepAlive, prefixer(prefix, "keep-alive"), durationOr(h.KeepAlive, 3*time.Minute), "sets the TCP keep-alive timeouts on accepted connections. It prunes dead TCP connections ( e.g. closing laptop mid-download)")
	fs.DurationVar(&h.ReadTimeout, prefixer(prefix, "read-timeout"), durationOr(h.ReadTimeout, 30*time.Second), "maximum duration before timing out read of the request")
	fs.DurationVar(&h.WriteTimeout, prefixer(prefix, "write-timeout"), durationOr(h.WriteTimeout, 30*time.Second), "maximum duration before timing out write of the response")
}

func durationOr(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

// Requested returns the configured host and port, never the bound ones.
func (h *HTTPFlg) Requested() (string, int) {
	return h.Host, h.Port
}

// Listen binds a new socket on every call. The descriptor is left untouched,
// so a port of 0 asks the OS for a new ephemeral port each time.
func (h *HTTPFlg) Listen(ctx context.Context, factory ListenerFactory) (net.Listener, error) {
	if factory == nil {
		factory = NetListenerFactory{KeepAlive: h.KeepAlive}
	}

	l, err := factory.Listen(ctx, listenNetwork(h.Host), net.JoinHostPort(h.Host, strconv.Itoa(h.Port)))
	if err != nil {
		return nil, err
	}

	if h.ListenLimit > 0 {
		l = netutil.LimitListener(l, h.ListenLimit)
	}
	return l, nil
}

func (h *HTTPFlg) newServer(s ServerConfig) *http.Server {
	httpSrv := &http.Server{
		MaxHeaderBytes: s.MaxHeaderSize,
		ReadTimeout:    h.ReadTimeout,
		WriteTimeout:   h.WriteTimeout,
		Handler:        s.Handler,
		ConnState:      s.ConnState,
	}

	if int64(s.CleanupTimeout) > 0 {
		httpSrv.IdleTimeout = s.CleanupTimeout
	}

	if int64(h.KeepAlive) > 0 {
		httpSrv.SetKeepAlivesEnabled(true)
	}
	return httpSrv
}

func (h *HTTPFlg) label() string {
	if h.Prefix == "" {
		return h.Scheme()
	}
	return h.Prefix
}

func (h *HTTPFlg) Serve(s ServerConfig, listener net.Listener, eg *errgroup.Group) (*http.Server, error) {
	httpSrv := h.newServer(s)

	if s.Callbacks != nil {
		s.Callbacks.ConfigureListener(httpSrv, h.Scheme(), listener.Addr().String())
	}

	address := listener.Addr().String()
	p := h.label()
	s.Logger.Printf("Serving %s at %s://%s", p, h.Scheme(), address)
	eg.Go(func() error {
		if herr := httpSrv.Serve(listener); herr != nil && herr != http.ErrServerClosed {
			s.Logger.Printf("Error stopping %s listener: %v", p, herr)
			return herr
		}
		s.Logger.Printf("Stopped serving %s at %s://%s", p, h.Scheme(), address)
		return nil
	})

	return httpSrv, nil
}

func (h *HTTPFlg) Scheme() string {
	return SchemeHTTP
}

func (h *HTTPFlg) String() string {
	return fmt.Sprintf("Prefix: %s,Host: %s,Port: %d,ListenLimit: %d,KeepAlive: %s,ReadTimeout: %s,WriteTimeout: %s",
		h.Prefix, h.Host, h.Port, h.ListenLimit, h.KeepAlive, h.ReadTimeout, h.WriteTimeout)
}
