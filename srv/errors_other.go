//go:build !unix

package srv

import "strings"

func errnoCode(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "address already in use"),
		strings.Contains(msg, "only one usage of each socket address"):
		return CodeAddressInUse
	case strings.Contains(msg, "requested address is not valid"),
		strings.Contains(msg, "can't assign requested address"):
		return CodeAddressNotAvailable
	case strings.Contains(msg, "access permissions"),
		strings.Contains(msg, "permission denied"):
		return CodeAccessDenied
	}
	return ""
}
