package schema

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func envKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return strings.ToUpper(strings.ReplaceAll(prefix, "-", "_")) + "_" + name
}

func stringEnvOverride(orig string, def string, keys ...string) string {
	for _, k := range keys {
		if os.Getenv(k) != "" {
			return os.Getenv(k)
		}
	}
	if def != "" && orig == "" {
		return def
	}
	return orig
}

func intEnvOverride(orig int, def int, keys ...string) (int, error) {
	for _, k := range keys {
		if os.Getenv(k) != "" {
			v, err := strconv.Atoi(os.Getenv(k))
			if err != nil {
				return orig, fmt.Errorf("%s is not a valid number: %w", k, err)
			}
			return v, nil
		}
	}
	if def != 0 && orig == 0 {
		return def, nil
	}
	return orig, nil
}

// ApplyEnv overrides host and port from HOST and PORT, namespaced by the
// prefix (APP_HOST for prefix "app").
func (h *HTTPFlg) ApplyEnv() error {
	h.Host = stringEnvOverride(h.Host, "", envKey(h.Prefix, "HOST"))
	port, err := intEnvOverride(h.Port, 0, envKey(h.Prefix, "PORT"))
	if err != nil {
		return err
	}
	h.Port = port
	return nil
}

// ApplyEnv overrides the listener and credential settings from the TLS_*
// variables, namespaced by the prefix.
func (t *TLSFlg) ApplyEnv() error {
	p := t.Prefix
	t.Host = stringEnvOverride(t.Host, "", envKey(p, "TLS_HOST"))
	port, err := intEnvOverride(t.Port, 0, envKey(p, "TLS_PORT"))
	if err != nil {
		return err
	}
	t.Port = port
	t.CertFile = stringEnvOverride(t.CertFile, "", envKey(p, "TLS_CERTIFICATE"))
	t.KeyFile = stringEnvOverride(t.KeyFile, "", envKey(p, "TLS_PRIVATE_KEY"))
	t.PFXFile = stringEnvOverride(t.PFXFile, "", envKey(p, "TLS_PFX"))
	t.Passphrase = stringEnvOverride(t.Passphrase, "", envKey(p, "TLS_PASSPHRASE"))
	t.CAFile = stringEnvOverride(t.CAFile, "", envKey(p, "TLS_CA_CERTIFICATE"))
	return nil
}
