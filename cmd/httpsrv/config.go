package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gabibotos/httpsrv/srv"
	"github.com/gabibotos/httpsrv/srv/schema"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type responseConfig struct {
	Status int    `yaml:"status"`
	Body   string `yaml:"body"`
}

type config struct {
	Scheme   string         `yaml:"scheme"`
	HTTP     schema.HTTPFlg `yaml:"http"`
	TLS      schema.TLSFlg  `yaml:"https"`
	System   schema.HTTPFlg `yaml:"system"`
	Server   srv.Flags      `yaml:"server"`
	Response responseConfig `yaml:"response"`

	HSTS     bool `yaml:"hsts"`
	Trace    bool `yaml:"trace"`
	IsPublic bool `yaml:"public"`
	Dev      bool `yaml:"dev"`
}

func defaultConfig() *config {
	return &config{
		Scheme: schema.SchemeHTTP,
		HTTP:   schema.HTTPFlg{Host: "localhost", Port: 8080},
		System: schema.HTTPFlg{Prefix: "system", Host: "localhost", Port: 10239},
		Server: srv.DefaultFlags(),
		Response: responseConfig{
			Status: http.StatusOK,
		},
	}
}

func (c *config) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Scheme, "scheme", c.Scheme, "the scheme of the request listener, http or https")
	fs.IntVar(&c.Response.Status, "status", c.Response.Status, "the status code every request is answered with")
	fs.StringVar(&c.Response.Body, "body", c.Response.Body, "the body every request is answered with")
	fs.BoolVar(&c.HSTS, "hsts", c.HSTS, "send Strict-Transport-Security on https responses")
	fs.BoolVar(&c.Trace, "trace", c.Trace, "trace requests with opencensus and serve zpages on the system listener")
	fs.BoolVar(&c.IsPublic, "public", c.IsPublic, "treat the listener as the first hop when tracing")
	fs.BoolVar(&c.Dev, "dev", c.Dev, "development logging")

	c.Server.RegisterFlags(fs)
	c.HTTP.RegisterFlags(fs)
	c.TLS.RegisterFlags(fs)
	c.System.RegisterFlags(fs)
}

// load layers the config file and the environment under the flags that were
// set explicitly on the command line.
func (c *config) load(fs *flag.FlagSet, path string) error {
	changed := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		changed[f.Name] = f.Value.String()
	})

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := c.HTTP.ApplyEnv(); err != nil {
		return err
	}
	if err := c.TLS.ApplyEnv(); err != nil {
		return err
	}
	if err := c.System.ApplyEnv(); err != nil {
		return err
	}

	for name, value := range changed {
		if err := fs.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// listener returns the descriptor of the request listener.
func (c *config) listener() (schema.ServerListener, error) {
	switch c.Scheme {
	case schema.SchemeHTTP:
		return &c.HTTP, nil
	case schema.SchemeHTTPS:
		c.TLS.ApplyDefaults(&c.HTTP)
		if err := c.TLS.LoadCredentials(); err != nil {
			return nil, err
		}
		return &c.TLS, nil
	}
	return nil, fmt.Errorf("unknown scheme %q, expected %s or %s", c.Scheme, schema.SchemeHTTP, schema.SchemeHTTPS)
}
