// Package netguard keeps outbound fetches of user-supplied URLs away from
// loopback, private and link-local networks.
//
// The check runs in the dialer's Control hook, after DNS resolution, so it
// also covers redirects and hostnames that resolve to internal addresses.
package netguard

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

// ErrBlockedAddress is returned when a connection targets a disallowed address
var ErrBlockedAddress = errors.New("destination address is not allowed")

var extraBlocked = mustParseCIDRs(
	"100.64.0.0/10", // carrier-grade NAT
	"192.0.0.0/24",
	"198.18.0.0/15",
	"64:ff9b::/96",
)

// IsBlocked reports whether ip is loopback, private, link-local, unspecified,
// multicast or in a reserved shared range.
func IsBlocked(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
		return true
	}
	for _, n := range extraBlocked {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Control can be installed as net.Dialer.Control
func Control(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip := net.ParseIP(host)
	if ip == nil || IsBlocked(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

// NewDialer returns a dialer that refuses blocked addresses
func NewDialer(timeout time.Duration) *net.Dialer {
	return &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
		Control:   Control,
	}
}

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}
