package srv

import (
	"errors"
	"fmt"
)

var (
	// ErrAddressInUse matches bind failures caused by another socket owning the address.
	ErrAddressInUse = errors.New("address already in use")
	// ErrInvalidCredentials matches https start failures caused by the TLS credentials.
	ErrInvalidCredentials = errors.New("invalid TLS credentials")
	// ErrAlreadyListening is returned by Start on a server that is listening.
	ErrAlreadyListening = errors.New("server is already listening")
)

// Errno names carried in ListenError.Code.
const (
	CodeAddressInUse        = "EADDRINUSE"
	CodeAddressNotAvailable = "EADDRNOTAVAIL"
	CodeAccessDenied        = "EACCES"
)

// ListenError is returned by Start when the socket cannot be bound. Code holds
// the errno name when the OS error is recognized.
type ListenError struct {
	Code    string
	Scheme  string
	Address string
	Err     error
}

func newListenError(scheme, address string, err error) *ListenError {
	return &ListenError{
		Code:    errnoCode(err),
		Scheme:  scheme,
		Address: address,
		Err:     err,
	}
}

func (e *ListenError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("listen %s://%s: %s: %v", e.Scheme, e.Address, e.Code, e.Err)
	}
	return fmt.Sprintf("listen %s://%s: %v", e.Scheme, e.Address, e.Err)
}

func (e *ListenError) Unwrap() error { return e.Err }

func (e *ListenError) Is(target error) bool {
	return target == ErrAddressInUse && e.Code == CodeAddressInUse
}

// CredentialsError is returned by Start when the TLS configuration cannot be built.
type CredentialsError struct {
	Scheme string
	Err    error
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("configure %s listener: %v", e.Scheme, e.Err)
}

func (e *CredentialsError) Unwrap() error { return e.Err }

func (e *CredentialsError) Is(target error) bool { return target == ErrInvalidCredentials }
