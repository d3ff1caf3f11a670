package schema

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

// ErrNoCredentials is returned when an https listener has no certificate material.
var ErrNoCredentials = errors.New("no TLS credentials configured")

// TLSFlg configures an https listener.
//
// Credentials may be set directly, or resolved from the file flags by LoadCredentials.
type TLSFlg struct {
	HTTPFlg `yaml:",inline"`

	Credentials Credentials `yaml:"-"`
	// ClientCA is a PEM bundle; when set, clients must present a certificate it signed.
	ClientCA []byte `yaml:"-"`

	CertFile   string `yaml:"certificate"`
	KeyFile    string `yaml:"key"`
	PFXFile    string `yaml:"pfx"`
	Passphrase string `yaml:"passphrase"`
	CAFile     string `yaml:"ca"`
}

func (t *TLSFlg) RegisterFlags(fs *flag.FlagSet) {
	prefix := t.Prefix

	fs.StringVar(&t.Host, prefixer(prefix, "tls-host"), t.Host, "the IP to listen on")
	fs.IntVar(&t.Port, prefixer(prefix, "tls-port"), t.Port, "the port to listen on for secure connections, defaults to a random value")
	fs.StringVar(&t.CertFile, prefixer(prefix, "tls-certificate"), t.CertFile, "the certificate to use for secure connections")
	fs.StringVar(&t.KeyFile, prefixer(prefix, "tls-key"), t.KeyFile, "the private key to use for secure connections")
	fs.StringVar(&t.PFXFile, prefixer(prefix, "tls-pfx"), t.PFXFile, "a PKCS#12 bundle holding the certificate and private key, instead of tls-certificate and tls-key")
	fs.StringVar(&t.Passphrase, prefixer(prefix, "tls-passphrase"), t.Passphrase, "the passphrase of the PKCS#12 bundle")
	fs.StringVar(&t.CAFile, prefixer(prefix, "tls-ca"), t.CAFile, "the certificate authority file to be used with mutual TLS auth")
	fs.IntVar(&t.ListenLimit, prefixer(prefix, "tls-listen-limit"), t.ListenLimit, "limit the number of outstanding requests")
	fs.DurationVar(&t.KeepAlive, prefixer(prefix, "tls-keep-alive"), durationOr(t.KeepAlive, 3*time.Minute), "sets the TCP keep-alive timeouts on accepted connections. It prunes dead TCP connections (e.g., closing laptop mid-download)")
	fs.DurationVar(&t.ReadTimeout, prefixer(prefix, "tls-read-timeout"), durationOr(t.ReadTimeout, 30*time.Second), "maximum duration before timing out read of the request")
	fs.DurationVar(&t.WriteTimeout, prefixer(prefix, "tls-write-timeout"), durationOr(t.WriteTimeout, 30*time.Second), "maximum duration before timing out write of the response")
}

func (t *TLSFlg) ApplyDefaults(values *HTTPFlg) {
	if values == nil {
		return
	}
	// Use http host if https host wasn't defined
	if t.Host == "" {
		t.Host = values.Host
	}
	// Use http listen limit if https listen limit wasn't defined
	if t.ListenLimit == 0 {
		t.ListenLimit = values.ListenLimit
	}
	// Use http tcp keep alive if https tcp keep alive wasn't defined
	if int64(t.KeepAlive) == 0 {
		t.KeepAlive = values.KeepAlive
	}
	// Use http read timeout if https read timeout wasn't defined
	if int64(t.ReadTimeout) == 0 {
		t.ReadTimeout = values.ReadTimeout
	}
	// Use http write timeout if https write timeout wasn't defined
	if int64(t.WriteTimeout) == 0 {
		t.WriteTimeout = values.WriteTimeout
	}
}

// LoadCredentials resolves the file flags into Credentials and ClientCA.
// It is a no-op for forms whose flags are empty.
func (t *TLSFlg) LoadCredentials() error {
	prefix := t.Prefix
	switch {
	case t.PFXFile != "" && (t.CertFile != "" || t.KeyFile != ""):
		return fmt.Errorf("flags %q and %q are mutually exclusive",
			prefixer(prefix, "tls-pfx"), prefixer(prefix, "tls-certificate"))
	case t.PFXFile != "":
		creds, err := PKCS12File(t.PFXFile, t.Passphrase)
		if err != nil {
			return err
		}
		t.Credentials = creds
	case t.CertFile != "" || t.KeyFile != "":
		if t.CertFile == "" {
			return fmt.Errorf("the required flag %q was not specified", prefixer(prefix, "tls-certificate"))
		}
		if t.KeyFile == "" {
			return fmt.Errorf("the required flag %q was not specified", prefixer(prefix, "tls-key"))
		}
		creds, err := KeyPairFiles(t.CertFile, t.KeyFile)
		if err != nil {
			return err
		}
		t.Credentials = creds
	}

	if t.CAFile != "" {
		caCert, err := os.ReadFile(t.CAFile)
		if err != nil {
			return fmt.Errorf("failed to read CA certificate: %w", err)
		}
		t.ClientCA = caCert
	}
	return nil
}

// TLSConfig builds the server side TLS configuration from the credentials.
func (t *TLSFlg) TLSConfig() (*tls.Config, error) {
	cfg := &tls.Config{
		CurvePreferences: []tls.CurveID{tls.CurveP256, tls.X25519, tls.CurveP384},
		NextProtos:       []string{"h2", "http/1.1"},
		MinVersion:       tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		},
	}

	if t.Credentials == nil {
		return nil, ErrNoCredentials
	}
	cert, err := t.Credentials.Certificate()
	if err != nil {
		return nil, fmt.Errorf("failed to load %s credentials: %w", t.Credentials.Kind(), err)
	}
	cfg.Certificates = []tls.Certificate{cert}

	if len(t.ClientCA) > 0 {
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(t.ClientCA) {
			return nil, errors.New("no certificates found in the client CA bundle")
		}
		cfg.ClientCAs = caCertPool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}

// Serve configures TLS before serving; credential problems surface here and
// nothing is served.
func (t *TLSFlg) Serve(s ServerConfig, listener net.Listener, eg *errgroup.Group) (*http.Server, error) {
	tlsConfig, err := t.TLSConfig()
	if err != nil {
		return nil, err
	}

	httpsServer := t.newServer(s)
	httpsServer.Addr = listener.Addr().String()
	httpsServer.TLSConfig = tlsConfig

	if s.Callbacks != nil {
		s.Callbacks.ConfigureTLS(httpsServer.TLSConfig)
	}

	if len(httpsServer.TLSConfig.Certificates) == 0 && httpsServer.TLSConfig.GetCertificate == nil {
		return nil, ErrNoCredentials
	}

	if s.Callbacks != nil {
		s.Callbacks.ConfigureListener(httpsServer, t.Scheme(), listener.Addr().String())
	}

	address := listener.Addr().String()
	p := t.label()
	s.Logger.Printf("Serving %s at %s://%s", p, t.Scheme(), address)
	eg.Go(func() error {
		if terr := httpsServer.ServeTLS(listener, "", ""); terr != nil && terr != http.ErrServerClosed {
			s.Logger.Printf("Error stopping %s listener: %v", p, terr)
			return terr
		}
		s.Logger.Printf("Stopped serving %s at %s://%s", p, t.Scheme(), address)
		return nil
	})

	return httpsServer, nil
}

func (t *TLSFlg) Scheme() string {
	return SchemeHTTPS
}

func (t *TLSFlg) label() string {
	if t.Prefix == "" {
		return t.Scheme()
	}
	return t.Prefix
}

func (t *TLSFlg) String() string {
	kind := "none"
	if t.Credentials != nil {
		kind = t.Credentials.Kind()
	}
	return fmt.Sprintf("%s,Credentials: %s", t.HTTPFlg.String(), kind)
}
