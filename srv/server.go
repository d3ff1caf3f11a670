package srv

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/a-h/hsts"
	"github.com/gabibotos/httpsrv/middleware"
	"github.com/gabibotos/httpsrv/srv/schema"
	"golang.org/x/sync/errgroup"
)

type (
	defaultServer struct {
		opts    *options
		handler http.Handler
		metrics *lifecycleMetrics

		// lifecycle serializes Start and Stop; mu guards st.
		lifecycle sync.Mutex
		mu        sync.RWMutex
		st        state
	}

	hstsConfig struct {
		MaxAge      time.Duration
		SendPreload bool
	}

	compositeHook struct {
		hooks []schema.Hook
	}
)

// New creates a server dispatching requests to handler. Nothing is bound
// until Start. A nil handler serves http.DefaultServeMux.
func New(handler http.Handler, opts ...Option) Server {
	s := &defaultServer{
		opts: newDefaultWithOptions(opts...),
		st:   stopped{},
	}

	if handler == nil {
		handler = http.DefaultServeMux
	}
	if s.opts.logRequests {
		handler = middleware.LogRequests(s.opts.logger)(handler)
	}
	if s.opts.hsts != nil && s.opts.listener.Scheme() == schema.SchemeHTTPS {
		h := hsts.NewHandler(handler)
		h.MaxAge = s.opts.hsts.MaxAge
		h.SendPreloadDirective = s.opts.hsts.SendPreload
		handler = h
	}
	s.handler = handler

	if s.opts.metricsReg != nil {
		m, err := newLifecycleMetrics(s.opts.metricsReg, s.opts.metricsNS, s.opts.listener.Scheme())
		if err != nil {
			s.opts.logger.Printf("listener metrics disabled: %v", err)
		} else {
			s.metrics = m
		}
	}
	return s
}

// Start binds the configured address and serves on a background goroutine.
func (s *defaultServer) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.Listening() {
		return ErrAlreadyListening
	}

	listener, info, err := s.bind(ctx)
	if err != nil {
		return err
	}

	group := new(errgroup.Group)
	sc := schema.ServerConfig{
		Callbacks:      s.opts.callbacks,
		CleanupTimeout: s.opts.cleanup,
		MaxHeaderSize:  int(s.opts.maxHeader.Get()),
		Handler:        s.handler,
		Logger:         s.opts.logger,
	}
	if s.metrics != nil {
		sc.ConnState = s.metrics.connState
	}
	server, err := s.opts.listener.Serve(sc, listener, group)
	if err != nil {
		_ = listener.Close()
		scheme := s.opts.listener.Scheme()
		if scheme == schema.SchemeHTTPS {
			s.metrics.startFailed("invalid_credentials")
			return &CredentialsError{Scheme: scheme, Err: err}
		}
		s.metrics.startFailed("")
		return fmt.Errorf("serve %s listener: %w", scheme, err)
	}

	st := started{addr: info, server: server, group: group, done: make(chan struct{})}
	s.setState(st)
	s.metrics.started()
	go s.watch(st)
	return nil
}

// watch marks the server stopped when the serve loop exits with an error, as
// the listener is closed by then.
func (s *defaultServer) watch(st started) {
	defer close(st.done)

	err := st.group.Wait()
	if err == nil {
		return
	}

	s.mu.Lock()
	cur, ok := s.st.(started)
	live := ok && cur.server == st.server
	if live {
		addr := st.addr
		s.st = stopped{last: &addr, err: err}
	}
	s.mu.Unlock()
	if !live {
		return
	}

	s.opts.logger.Printf("%s listener at %s stopped accepting connections: %v", s.opts.listener.Scheme(), s.URL(), err)
	_ = st.server.Close()
	s.metrics.stopped()
}

// bind listens on the requested address. When an ephemeral port was requested
// and the OS hands back the port of the previous run, it rebinds so restarts
// never silently reuse it.
func (s *defaultServer) bind(ctx context.Context) (net.Listener, schema.AddressInfo, error) {
	host, port := s.opts.listener.Requested()
	scheme := s.opts.listener.Scheme()
	requested := net.JoinHostPort(host, strconv.Itoa(port))
	previous := s.current().bound()

	for attempt := 0; ; attempt++ {
		l, err := s.opts.listener.Listen(ctx, s.opts.factory)
		if err != nil {
			lerr := newListenError(scheme, requested, err)
			s.metrics.startFailed(lerr.Code)
			return nil, schema.AddressInfo{}, lerr
		}

		info, err := schema.NewAddressInfo(l.Addr())
		if err != nil {
			_ = l.Close()
			s.metrics.startFailed("")
			return nil, schema.AddressInfo{}, newListenError(scheme, requested, err)
		}

		if port != 0 || previous == nil || info.Port != previous.Port || attempt >= s.opts.rebindTries {
			return l, info, nil
		}
		s.opts.logger.Printf("got ephemeral port %d of the previous run, rebinding", info.Port)
		_ = l.Close()
	}
}

// Stop shuts the server down and waits for the serving goroutine to exit.
// Without a deadline on ctx, the cleanup timeout bounds the wait; once it
// expires open connections are closed forcibly.
func (s *defaultServer) Stop(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	var st started
	switch cur := s.current().(type) {
	case started:
		st = cur
	case stopped:
		if cur.err == nil {
			return nil
		}
		s.setState(stopped{last: cur.last})
		return cur.err
	}

	if _, ok := ctx.Deadline(); !ok && s.opts.cleanup > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.cleanup)
		defer cancel()
	}

	url := s.URL()
	shutdownErr := st.server.Shutdown(ctx)
	if shutdownErr != nil {
		s.opts.logger.Printf("HTTP server Shutdown at %s: %v", url, shutdownErr)
		_ = st.server.Close()
	}
	serveErr := st.group.Wait()
	<-st.done

	// the serve loop may have failed while shutting down
	if _, ok := s.current().(started); ok {
		s.metrics.stopped()
	}
	addr := st.addr
	s.setState(stopped{last: &addr})
	s.opts.onShutdown()

	if shutdownErr != nil {
		return fmt.Errorf("shutdown %s: %w", url, shutdownErr)
	}
	return serveErr
}

func (s *defaultServer) current() state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

func (s *defaultServer) setState(st state) {
	s.mu.Lock()
	s.st = st
	s.mu.Unlock()
}

// GetHandler returns a handler useful for testing
func (s *defaultServer) GetHandler() http.Handler {
	return s.handler
}

func (s *defaultServer) Listening() bool {
	_, ok := s.current().(started)
	return ok
}

func (s *defaultServer) Address() (schema.AddressInfo, bool) {
	if st, ok := s.current().(started); ok {
		return st.addr, true
	}
	return schema.AddressInfo{}, false
}

func (s *defaultServer) Port() int {
	if addr := s.current().bound(); addr != nil {
		return addr.Port
	}
	_, port := s.opts.listener.Requested()
	return port
}

func (s *defaultServer) Host() string {
	if addr := s.current().bound(); addr != nil {
		return addr.Address
	}
	host, _ := s.opts.listener.Requested()
	return host
}

func (s *defaultServer) Protocol() string {
	return s.opts.listener.Scheme()
}

// URL composes protocol, host and port. Unset and wildcard hosts are replaced
// by the loopback address of their family and IPv6 literals are bracketed.
func (s *defaultServer) URL() string {
	host := schema.URLHost(s.Host())
	// zone separators must be escaped in a URL authority
	host = strings.Replace(host, "%", "%25", 1)
	return s.Protocol() + "://" + net.JoinHostPort(host, strconv.Itoa(s.Port()))
}

func (c *compositeHook) ConfigureTLS(cfg *tls.Config) {
	for _, h := range c.hooks {
		h.ConfigureTLS(cfg)
	}
}

func (c *compositeHook) ConfigureListener(s *http.Server, scheme, addr string) {
	for _, h := range c.hooks {
		h.ConfigureListener(s, scheme, addr)
	}
}
