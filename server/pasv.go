package server

import "net"

// listenPassive opens the listening socket PASV advertises. If the
// session's FileSystem (or the server) declares a passive port range, ports
// are tried in a cycling fashion across that range. Otherwise the OS
// assigns an ephemeral port, which is this server's default.
func listenPassive(s *session) (*net.TCPListener, error) {
	settings := s.fs.GetSettings()
	if settings == nil {
		settings = &Settings{}
	}
	minPort, maxPort := settings.PasvMinPort, settings.PasvMaxPort
	if minPort == 0 && maxPort == 0 {
		minPort, maxPort = s.server.pasvMinPort, s.server.pasvMaxPort
	}

	if minPort == 0 && maxPort == 0 {
		return net.ListenTCP("tcp4", &net.TCPAddr{Port: 0})
	}

	start := minPort
	if s.server.nextPasvPort >= minPort && s.server.nextPasvPort <= maxPort {
		start = s.server.nextPasvPort
	}
	span := maxPort - minPort + 1
	for i := 0; i < span; i++ {
		port := minPort + (start-minPort+i)%span
		l, err := net.ListenTCP("tcp4", &net.TCPAddr{Port: port})
		if err == nil {
			s.server.nextPasvPort = port + 1
			if s.server.nextPasvPort > maxPort {
				s.server.nextPasvPort = minPort
			}
			return l, nil
		}
	}
	return nil, errNoPassivePort
}

var errNoPassivePort = &pasvError{"no passive port available in configured range"}

type pasvError struct{ msg string }

func (e *pasvError) Error() string { return e.msg }

// pasvAdvertised returns the IPv4 address and port to embed in the PASV
// 227 reply: the configured PublicHost if set, else the control
// connection's local address.
func pasvAdvertised(s *session, listener *net.TCPListener) (net.IP, int) {
	addr := listener.Addr().(*net.TCPAddr)
	settings := s.fs.GetSettings()
	if settings != nil && settings.PublicHost != "" {
		if ip := net.ParseIP(settings.PublicHost); ip != nil {
			return ip, addr.Port
		}
		if ips, err := net.LookupIP(settings.PublicHost); err == nil {
			for _, ip := range ips {
				if v4 := ip.To4(); v4 != nil {
					return v4, addr.Port
				}
			}
		}
	}
	if local, ok := s.conn.LocalAddr().(*net.TCPAddr); ok {
		return local.IP, addr.Port
	}
	return net.IPv4(127, 0, 0, 1), addr.Port
}
