package discovery

import (
	"log/slog"
	"net"
)

// OutgoingIP finds the address other devices on the network should use to
// reach this host.
func OutgoingIP() string {
	// UDP dial sends nothing; it only selects a route.
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return localIPFallback()
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return localIPFallback()
}

func localIPFallback() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		slog.Warn("Unable to list network interfaces", "err", err)
		return "127.0.0.1"
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.To4().String()
			}
		}
	}
	slog.Warn("No suitable local IP found, falling back to loopback")
	return "127.0.0.1"
}
