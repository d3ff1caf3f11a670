package srv

import (
	"time"

	flag "github.com/spf13/pflag"
)

const (
	defaultCleanupTimeout = 10 * time.Second
	defaultMaxHeaderSize  = 1000000
)

// Flags holds the server wide settings that are not tied to a listener.
type Flags struct {
	CleanupTimeout time.Duration `yaml:"cleanupTimeout"`
	MaxHeaderSize  ByteSize      `yaml:"maxHeaderSize"`
}

func DefaultFlags() Flags {
	return Flags{
		CleanupTimeout: defaultCleanupTimeout,
		MaxHeaderSize:  defaultMaxHeaderSize,
	}
}

// RegisterFlags to the specified pflag set
func (f *Flags) RegisterFlags(fs *flag.FlagSet) {
	fs.DurationVar(&f.CleanupTimeout, "cleanup-timeout", f.CleanupTimeout, "grace period for which to wait before shutting down the server")
	fs.Var(&f.MaxHeaderSize, "max-header-size", "controls the maximum number of bytes the server will read parsing the request header's keys and values, including the request line. It does not limit the size of the request body")
}

// Options converts the settings into server options.
func (f Flags) Options() []Option {
	return []Option{
		WithCleanupTimeout(f.CleanupTimeout),
		WithMaxHeaderSize(f.MaxHeaderSize),
	}
}
