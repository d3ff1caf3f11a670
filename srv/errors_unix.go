//go:build unix

package srv

import (
	"errors"

	"golang.org/x/sys/unix"
)

func errnoCode(err error) string {
	switch {
	case errors.Is(err, unix.EADDRINUSE):
		return CodeAddressInUse
	case errors.Is(err, unix.EADDRNOTAVAIL):
		return CodeAddressNotAvailable
	case errors.Is(err, unix.EACCES):
		return CodeAccessDenied
	}
	return ""
}
