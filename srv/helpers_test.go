package srv

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gabibotos/httpsrv/srv/schema"
	"github.com/stretchr/testify/require"
)

const testPassphrase = "httpsrv-test"

var dummyHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func readTestdata(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("schema", "testdata", name))
	require.NoError(t, err)
	return b
}

func keyPair(t *testing.T) schema.Credentials {
	return schema.KeyPair{Cert: readTestdata(t, "cert.pem"), Key: readTestdata(t, "key.pem")}
}

func pfxBundle(t *testing.T) schema.Credentials {
	return schema.PKCS12{Bundle: readTestdata(t, "bundle.pfx"), Passphrase: testPassphrase}
}

// newTestServer builds a server that is stopped again when the test ends.
func newTestServer(t *testing.T, h http.Handler, opts ...Option) Server {
	t.Helper()
	s := New(h, opts...)
	t.Cleanup(func() {
		_ = s.Stop(context.Background())
	})
	return s
}

func start(t *testing.T, s Server) {
	t.Helper()
	require.NoError(t, s.Start(context.Background()))
}

func skipWithoutIPv6(t *testing.T) {
	t.Helper()
	l, err := net.Listen("tcp", "[::1]:0")
	if err != nil {
		t.Skipf("IPv6 loopback unavailable: %v", err)
	}
	_ = l.Close()
}

// testClient skips certificate verification and keeps no idle connections.
func testClient() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig:   &tls.Config{InsecureSkipVerify: true},
			DisableKeepAlives: true,
		},
	}
}

func get(t *testing.T, url string) (int, error) {
	t.Helper()
	resp, err := testClient().Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// fakeListener never accepts; it only reports an address.
type fakeListener struct {
	addr   *net.TCPAddr
	closed chan struct{}
	once   sync.Once
}

func newFakeListener(ip string, port int) *fakeListener {
	return &fakeListener{
		addr:   &net.TCPAddr{IP: tcpIP(ip), Port: port},
		closed: make(chan struct{}),
	}
}

// tcpIP returns the IP in the form a bound socket reports it.
func tcpIP(s string) net.IP {
	ip := net.ParseIP(s)
	if v4 := ip.To4(); v4 != nil {
		return v4
	}
	return ip
}

func (f *fakeListener) Accept() (net.Conn, error) {
	<-f.closed
	return nil, net.ErrClosed
}

func (f *fakeListener) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeListener) Addr() net.Addr { return f.addr }

// brokenListener fails every Accept, which ends the serve loop.
type brokenListener struct {
	*fakeListener
}

func (b brokenListener) Accept() (net.Conn, error) {
	return nil, errBrokenAccept
}

var errBrokenAccept = errors.New("accept: broken")

// portSequence hands out fake listeners with the given ports in order.
type portSequence struct {
	mu        sync.Mutex
	ip        string
	ports     []int
	networks  []string
	addresses []string
}

func (p *portSequence) Listen(_ context.Context, network, address string) (net.Listener, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.networks = append(p.networks, network)
	p.addresses = append(p.addresses, address)
	port := p.ports[0]
	if len(p.ports) > 1 {
		p.ports = p.ports[1:]
	}
	return newFakeListener(p.ip, port), nil
}

func (p *portSequence) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.addresses)
}
