// Package netaddr discovers the address other LAN devices should use to reach this host.
package netaddr

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	psnet "github.com/shirou/gopsutil/v4/net"
)

// Loopback is returned when no LAN address can be determined.
const Loopback = "127.0.0.1"

// probeTarget is any off-host address; UDP "connect" only selects a route, nothing is sent.
const probeTarget = "10.255.255.255:1"

// LocalIP returns the host's LAN-reachable IPv4 address.
// It asks the kernel which source address it would use for an outbound
// datagram, then falls back to interface enumeration and finally to loopback.
func LocalIP() string {
	if ip := routedIP(); ip != "" {
		return ip
	}
	if ip := interfaceIP(); ip != "" {
		return ip
	}
	return Loopback
}

func routedIP() string {
	conn, err := net.DialTimeout("udp4", probeTarget, time.Second)
	if err != nil {
		return ""
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil || addr.IP.IsUnspecified() {
		return ""
	}
	return addr.IP.String()
}

// interfaceIP picks the first up, non-loopback interface carrying an IPv4 address.
func interfaceIP() string {
	ifaces, err := psnet.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") {
			continue
		}
		for _, a := range iface.Addrs {
			prefix, err := netip.ParsePrefix(a.Addr)
			if err != nil {
				continue
			}
			ip := prefix.Addr()
			if ip.Is4() && !ip.IsLoopback() && !ip.IsLinkLocalUnicast() {
				return ip.String()
			}
		}
	}
	return ""
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}

// Advertise maps a bind address to the host other devices should dial:
// wildcard addresses become the LAN address, anything else is kept.
func Advertise(bind string) string {
	switch bind {
	case "", "0.0.0.0", "::":
		return LocalIP()
	default:
		return bind
	}
}

// BaseURL formats the root URL for host and port.
func BaseURL(host string, port int) string {
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, fmt.Sprint(port)))
}
