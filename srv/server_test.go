package srv

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/gabibotos/httpsrv/srv/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var urlPattern = regexp.MustCompile(`^https?://.+`)

func TestServer_StartsServer(t *testing.T) {
	s := newTestServer(t, dummyHandler)
	start(t, s)

	status, err := get(t, s.URL())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}

func TestServer_StopsServer(t *testing.T) {
	s := newTestServer(t, dummyHandler, WithListener(&schema.HTTPFlg{Host: "127.0.0.1"}))
	start(t, s)
	require.NoError(t, s.Stop(context.Background()))

	_, err := get(t, s.URL())
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)
}

func TestServer_ExportsOriginalPortAndHost(t *testing.T) {
	s := New(dummyHandler, WithListener(&schema.HTTPFlg{Port: 0}))
	assert.Equal(t, 0, s.Port())
	assert.Equal(t, "", s.Host())
	assert.Equal(t, "http", s.Protocol())

	s = New(dummyHandler, WithListener(&schema.HTTPFlg{Host: "::1", Port: 8080}))
	assert.Equal(t, 8080, s.Port())
	assert.Equal(t, "::1", s.Host())
	assert.Equal(t, "http://[::1]:8080", s.URL())
}

func TestServer_ExportsReportedPortAndHost(t *testing.T) {
	s := newTestServer(t, dummyHandler)
	start(t, s)

	assert.Greater(t, s.Port(), 0)
	assert.NotEmpty(t, s.Host())
	assert.Regexp(t, urlPattern, s.URL())
	assert.Equal(t, "http", s.Protocol())

	addr, ok := s.Address()
	require.True(t, ok)
	assert.Equal(t, s.Port(), addr.Port)
	assert.Equal(t, s.Host(), addr.Address)
}

func TestServer_URLUsesLoopbackForWildcard(t *testing.T) {
	s := newTestServer(t, dummyHandler, WithListener(&schema.HTTPFlg{Host: "0.0.0.0"}))
	start(t, s)

	assert.Equal(t, "0.0.0.0", s.Host())
	assert.Equal(t, "http://127.0.0.1:"+strconv.Itoa(s.Port()), s.URL())

	addr, ok := s.Address()
	require.True(t, ok)
	assert.Equal(t, schema.IPv4, addr.Family)

	status, err := get(t, s.URL())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}

func TestServer_DoesNotPermanentlyBindToInitialPort(t *testing.T) {
	s := newTestServer(t, dummyHandler, WithListener(&schema.HTTPFlg{Host: "127.0.0.1"}))
	start(t, s)
	port := s.Port()
	require.NoError(t, s.Stop(context.Background()))
	start(t, s)

	assert.NotEqual(t, port, s.Port())
}

func TestServer_RebindsWhenOSReturnsPreviousEphemeralPort(t *testing.T) {
	factory := &portSequence{ip: "127.0.0.1", ports: []int{41000, 41000, 41000, 41001}}
	s := newTestServer(t, dummyHandler, WithListenerFactory(factory))

	start(t, s)
	assert.Equal(t, 41000, s.Port())
	require.NoError(t, s.Stop(context.Background()))

	start(t, s)
	assert.Equal(t, 41001, s.Port())
	assert.Equal(t, 4, factory.calls())
	assert.Equal(t, []string{":0", ":0", ":0", ":0"}, factory.addresses)
	assert.Equal(t, []string{"tcp", "tcp", "tcp", "tcp"}, factory.networks)
}

func TestServer_ListenNetworkFollowsHostFamily(t *testing.T) {
	for host, network := range map[string]string{"127.0.0.1": "tcp4", "::1": "tcp6", "localhost": "tcp"} {
		factory := &portSequence{ip: "127.0.0.1", ports: []int{8080}}
		s := newTestServer(t, dummyHandler, WithListener(&schema.HTTPFlg{Host: host, Port: 8080}), WithListenerFactory(factory))
		start(t, s)
		require.NoError(t, s.Stop(context.Background()))
		assert.Equal(t, []string{network}, factory.networks, host)
	}
}

func TestServer_ServeLoopFailureStopsListening(t *testing.T) {
	factory := schema.ListenerFactoryFunc(func(context.Context, string, string) (net.Listener, error) {
		return brokenListener{newFakeListener("127.0.0.1", 41000)}, nil
	})
	s := newTestServer(t, dummyHandler, WithListenerFactory(factory))
	start(t, s)

	require.Eventually(t, func() bool { return !s.Listening() }, 5*time.Second, 10*time.Millisecond)
	_, ok := s.Address()
	assert.False(t, ok)
	assert.Equal(t, 41000, s.Port())
	assert.Error(t, ListeningCheck(s)())

	err := s.Stop(context.Background())
	assert.ErrorIs(t, err, errBrokenAccept)
	assert.NoError(t, s.Stop(context.Background()))
}

func TestServer_KeepsExplicitPortAcrossRestarts(t *testing.T) {
	factory := &portSequence{ip: "127.0.0.1", ports: []int{8080}}
	s := newTestServer(t, dummyHandler, WithListener(&schema.HTTPFlg{Host: "127.0.0.1", Port: 8080}), WithListenerFactory(factory))

	start(t, s)
	require.NoError(t, s.Stop(context.Background()))
	start(t, s)

	assert.Equal(t, 8080, s.Port())
	assert.Equal(t, 2, factory.calls())
}

func TestServer_GivesUpRebindingAfterRetries(t *testing.T) {
	factory := &portSequence{ip: "127.0.0.1", ports: []int{41000}}
	s := newTestServer(t, dummyHandler, WithListenerFactory(factory))

	start(t, s)
	require.NoError(t, s.Stop(context.Background()))
	start(t, s)

	assert.Equal(t, 41000, s.Port())
	assert.Equal(t, 5, factory.calls())
}

func TestServer_ListeningInvariant(t *testing.T) {
	s := newTestServer(t, dummyHandler)
	assert.False(t, s.Listening())
	_, ok := s.Address()
	assert.False(t, ok)

	start(t, s)
	assert.True(t, s.Listening())
	_, ok = s.Address()
	assert.True(t, ok)

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.Listening())
	_, ok = s.Address()
	assert.False(t, ok)
	// the last bound port stays observable
	assert.Greater(t, s.Port(), 0)
}

func TestServer_ReportsAddressInUse(t *testing.T) {
	s := newTestServer(t, dummyHandler, WithListener(&schema.HTTPFlg{Host: "127.0.0.1"}))
	start(t, s)

	another := newTestServer(t, dummyHandler, WithListener(&schema.HTTPFlg{Host: "127.0.0.1", Port: s.Port()}))
	err := another.Start(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAddressInUse)
	assert.ErrorIs(t, err, syscall.EADDRINUSE)
	assert.Regexp(t, `EADDRINUSE`, err.Error())

	var lerr *ListenError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, CodeAddressInUse, lerr.Code)
	assert.Equal(t, "http", lerr.Scheme)

	assert.False(t, another.Listening())
	_, ok := another.Address()
	assert.False(t, ok)
	assert.Equal(t, s.Port(), another.Port())
}

func TestServer_StopWithoutStart(t *testing.T) {
	s := New(dummyHandler)
	assert.NoError(t, s.Stop(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}

func TestServer_StopTwice(t *testing.T) {
	calls := 0
	s := newTestServer(t, dummyHandler, OnShutdown(func() { calls++ }))
	start(t, s)

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestServer_StartWhileListening(t *testing.T) {
	s := newTestServer(t, dummyHandler)
	start(t, s)
	port := s.Port()

	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyListening)
	assert.True(t, s.Listening())
	assert.Equal(t, port, s.Port())
}

func TestServer_IPv6URL(t *testing.T) {
	skipWithoutIPv6(t)

	s := newTestServer(t, dummyHandler, WithListener(&schema.HTTPFlg{Host: "::1"}))
	start(t, s)

	addr, ok := s.Address()
	require.True(t, ok)
	assert.Equal(t, schema.IPv6, addr.Family)
	assert.Equal(t, "http://[::1]:"+strconv.Itoa(s.Port()), s.URL())

	status, err := get(t, s.URL())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}

func TestServer_IPv4Family(t *testing.T) {
	s := newTestServer(t, dummyHandler, WithListener(&schema.HTTPFlg{Host: "127.0.0.1"}))
	start(t, s)

	addr, ok := s.Address()
	require.True(t, ok)
	assert.Equal(t, schema.IPv4, addr.Family)
	assert.Equal(t, "127.0.0.1", addr.Address)
}

func TestServer_HTTPS(t *testing.T) {
	cases := []struct {
		name  string
		host  string
		creds func(*testing.T) schema.Credentials
	}{
		{"key and certificate", "127.0.0.1", keyPair},
		{"pfx", "127.0.0.1", pfxBundle},
		{"default host", "", keyPair},
		{"ipv6 loopback", "::1", keyPair},
		{"ipv6 loopback pfx", "::1", pfxBundle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.host == "::1" {
				skipWithoutIPv6(t)
			}
			s := newTestServer(t, dummyHandler, WithListener(&schema.TLSFlg{
				HTTPFlg:     schema.HTTPFlg{Host: tc.host},
				Credentials: tc.creds(t),
			}))
			start(t, s)

			assert.Equal(t, "https", s.Protocol())
			assert.Regexp(t, `^https://`, s.URL())
			if tc.host == "::1" {
				addr, _ := s.Address()
				assert.Equal(t, schema.IPv6, addr.Family)
			}

			status, err := get(t, s.URL())
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, status)
		})
	}
}

func TestServer_HTTPSInvalidCredentials(t *testing.T) {
	cases := []struct {
		name  string
		creds schema.Credentials
	}{
		{"none", nil},
		{"wrong passphrase", schema.PKCS12{Bundle: readTestdata(t, "bundle.pfx"), Passphrase: "wrong"}},
		{"malformed key pair", schema.KeyPair{Cert: []byte("cert"), Key: []byte("key")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, dummyHandler, WithListener(&schema.TLSFlg{
				HTTPFlg:     schema.HTTPFlg{Host: "127.0.0.1"},
				Credentials: tc.creds,
			}))

			err := s.Start(context.Background())
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			assert.False(t, s.Listening())
			assert.Equal(t, 0, s.Port())
		})
	}
}

func TestServer_HSTSOnHTTPS(t *testing.T) {
	s := newTestServer(t, dummyHandler, EnableHSTS(time.Hour, false), WithListener(&schema.TLSFlg{
		HTTPFlg:     schema.HTTPFlg{Host: "127.0.0.1"},
		Credentials: keyPair(t),
	}))
	start(t, s)

	resp, err := testClient().Get(s.URL())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Strict-Transport-Security"), "max-age=")
}

func TestServer_HSTSIgnoredOnHTTP(t *testing.T) {
	s := New(dummyHandler, EnableHSTS(0, true))
	_, wrapped := s.GetHandler().(http.HandlerFunc)
	assert.True(t, wrapped, "plaintext handler should not be wrapped")
}

type countingHook struct {
	tls, listeners int
	scheme         string
}

func (c *countingHook) ConfigureTLS(*tls.Config) { c.tls++ }

func (c *countingHook) ConfigureListener(_ *http.Server, scheme, _ string) {
	c.listeners++
	c.scheme = scheme
}

func TestServer_HooksAndShutdownCallbacks(t *testing.T) {
	first, second := &countingHook{}, &countingHook{}
	var stopped []string
	s := newTestServer(t, dummyHandler,
		Hooks(first, second),
		OnShutdown(func() { stopped = append(stopped, "a") }, func() { stopped = append(stopped, "b") }),
		WithListener(&schema.TLSFlg{HTTPFlg: schema.HTTPFlg{Host: "127.0.0.1"}, Credentials: keyPair(t)}),
	)
	start(t, s)

	for _, h := range []*countingHook{first, second} {
		assert.Equal(t, 1, h.tls)
		assert.Equal(t, 1, h.listeners)
		assert.Equal(t, "https", h.scheme)
	}

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"a", "b"}, stopped)
}

func TestServer_StopWaitsForInFlightRequests(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	})
	s := newTestServer(t, h, WithListener(&schema.HTTPFlg{Host: "127.0.0.1"}))
	start(t, s)

	result := make(chan int, 1)
	go func() {
		status, _ := get(t, s.URL())
		result <- status
	}()
	<-entered

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, http.StatusOK, <-result)
}

func TestServer_StopForcesCloseAfterDeadline(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	})
	s := newTestServer(t, h, WithListener(&schema.HTTPFlg{Host: "127.0.0.1"}))
	start(t, s)

	done := make(chan error, 1)
	go func() {
		_, err := get(t, s.URL())
		done <- err
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Stop(ctx)
	close(release)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, s.Listening())
	assert.Error(t, <-done)
}

func TestServer_LogsRequests(t *testing.T) {
	lg := &recordLogger{}
	s := newTestServer(t, dummyHandler, LogsWith(lg), LogsRequests(), WithListener(&schema.HTTPFlg{Host: "127.0.0.1"}))
	start(t, s)

	_, err := get(t, s.URL()+"/ping")
	require.NoError(t, err)
	require.NoError(t, s.Stop(context.Background()))

	assert.True(t, lg.contains("path=/ping"), "access log missing: %v", lg.all())
	assert.True(t, lg.contains("Serving http at http://127.0.0.1:"), "lifecycle log missing: %v", lg.all())
}
