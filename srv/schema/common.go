package schema

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// Family is the IP version of a bound socket address.
type Family string

const (
	IPv4 Family = "IPv4"
	IPv6 Family = "IPv6"
)

// AddressInfo describes the address a listener is bound to, as reported by the OS.
type AddressInfo struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
	Family  Family `json:"family"`
}

// NewAddressInfo extracts the bound IP, port and family from a listener address.
// The family follows the socket: an IPv4-mapped address on an IPv6 socket is IPv6.
func NewAddressInfo(addr net.Addr) (AddressInfo, error) {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		ip, ok := netip.AddrFromSlice(tcp.IP)
		if !ok {
			return AddressInfo{}, fmt.Errorf("not an IP address: %s", addr.String())
		}
		return addressInfo(ip.WithZone(tcp.Zone), tcp.Port), nil
	}

	host, port, err := SplitHostPort(addr.String())
	if err != nil {
		return AddressInfo{}, err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return AddressInfo{}, fmt.Errorf("not an IP address: %s", addr.String())
	}
	return addressInfo(ip, port), nil
}

func addressInfo(ip netip.Addr, port int) AddressInfo {
	info := AddressInfo{Address: ip.String(), Port: port, Family: IPv6}
	if ip.Is4() {
		info.Family = IPv4
	}
	return info
}

// listenNetwork pins IP literals to their family, so that a wildcard IPv4
// host is not bound as a dual-stack socket. Unset hosts and names use "tcp".
func listenNetwork(host string) string {
	ip, err := netip.ParseAddr(host)
	switch {
	case err != nil, ip.Is4In6():
		return "tcp"
	case ip.Is4():
		return "tcp4"
	default:
		return "tcp6"
	}
}

// URLHost returns the host to put in a URL authority for the given host.
// Unset and wildcard hosts map to the loopback literal of the same family.
func URLHost(host string) string {
	switch host {
	case "", "0.0.0.0":
		return "127.0.0.1"
	case "::":
		return "::1"
	}
	return host
}

func prefixer(prefix, flagName string) string {
	if prefix == "" {
		return flagName
	}
	return prefix + "-" + flagName
}

func SplitHostPort(addr string) (host string, port int, err error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", -1, err
	}

	if portStr == "" {
		return "", -1, fmt.Errorf("missing port in address: %s", addr)
	}

	port, err = strconv.Atoi(portStr)
	if err != nil {
		return "", -1, err
	}

	return host, port, nil
}
