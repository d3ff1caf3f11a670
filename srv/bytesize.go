package srv

import (
	"fmt"
	"strconv"

	units "github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// ByteSize is a byte count that parses human readable sizes ("1MB", "512k")
// and can be used as a pflag value.
type ByteSize uint64

func NewByteSize(n uint64) *ByteSize {
	b := ByteSize(n)
	return &b
}

func (b ByteSize) Get() uint64 {
	return uint64(b)
}

// String prints the human readable size when it parses back to the same
// value, the plain byte count otherwise.
func (b ByteSize) String() string {
	s := units.BytesSize(float64(b))
	if n, err := units.RAMInBytes(s); err == nil && uint64(n) == uint64(b) {
		return s
	}
	return strconv.FormatUint(uint64(b), 10)
}

func (b *ByteSize) Set(value string) error {
	n, err := units.RAMInBytes(value)
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("byte size must not be negative: %s", value)
	}
	*b = ByteSize(n)
	return nil
}

func (b *ByteSize) Type() string {
	return "byte-size"
}

// UnmarshalYAML accepts both plain numbers and human readable sizes.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	return b.Set(value.Value)
}
