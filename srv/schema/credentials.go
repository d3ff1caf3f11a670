package schema

import (
	"bytes"
	"crypto/tls"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"
)

// Credentials is the certificate material of an https listener. It is either
// a KeyPair or a PKCS12 bundle.
type Credentials interface {
	// Certificate decodes the material into a certificate usable by crypto/tls.
	Certificate() (tls.Certificate, error)
	// Kind names the credential form.
	Kind() string

	isCredentials()
}

// KeyPair holds a PEM encoded certificate (chain) and its private key.
type KeyPair struct {
	Cert []byte
	Key  []byte
}

func (k KeyPair) Certificate() (tls.Certificate, error) {
	if len(k.Cert) == 0 || len(k.Key) == 0 {
		return tls.Certificate{}, errors.New("both a certificate and a private key are required")
	}
	return tls.X509KeyPair(k.Cert, k.Key)
}

func (KeyPair) Kind() string { return "key-pair" }

func (KeyPair) isCredentials() {}

// PKCS12 holds a PFX bundle and the passphrase that unlocks it.
type PKCS12 struct {
	Bundle     []byte
	Passphrase string
}

func (p PKCS12) Certificate() (tls.Certificate, error) {
	if len(p.Bundle) == 0 {
		return tls.Certificate{}, errors.New("pkcs12 bundle is empty")
	}

	key, leaf, err := pkcs12.Decode(p.Bundle, p.Passphrase)
	if err == nil {
		return tls.Certificate{
			Certificate: [][]byte{leaf.Raw},
			PrivateKey:  key,
			Leaf:        leaf,
		}, nil
	}
	if errors.Is(err, pkcs12.ErrIncorrectPassword) {
		return tls.Certificate{}, err
	}

	// Decode only accepts a single certificate, bundles carrying a chain go through PEM.
	blocks, perr := pkcs12.ToPEM(p.Bundle, p.Passphrase)
	if perr != nil {
		return tls.Certificate{}, err
	}
	var certPEM, keyPEM bytes.Buffer
	for _, b := range blocks {
		b.Headers = nil
		if b.Type == "CERTIFICATE" {
			_ = pem.Encode(&certPEM, b)
		} else {
			_ = pem.Encode(&keyPEM, b)
		}
	}
	return tls.X509KeyPair(certPEM.Bytes(), keyPEM.Bytes())
}

func (PKCS12) Kind() string { return "pkcs12" }

func (PKCS12) isCredentials() {}

// KeyPairFiles reads a PEM certificate and key from disk.
func KeyPairFiles(certFile, keyFile string) (KeyPair, error) {
	cert, err := os.ReadFile(certFile)
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to read TLS certificate: %w", err)
	}
	key, err := os.ReadFile(keyFile)
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to read TLS key: %w", err)
	}
	return KeyPair{Cert: cert, Key: key}, nil
}

// PKCS12File reads a PFX bundle from disk.
func PKCS12File(path, passphrase string) (PKCS12, error) {
	bundle, err := os.ReadFile(path)
	if err != nil {
		return PKCS12{}, fmt.Errorf("failed to read pkcs12 bundle: %w", err)
	}
	return PKCS12{Bundle: bundle, Passphrase: passphrase}, nil
}
