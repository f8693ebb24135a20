//go:build linux

package tcpserver

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// listenTCP builds the listening socket directly on raw syscalls rather
// than net.Listen, because net.Listen doesn't expose a backlog
// parameter and this server wants one set explicitly. It mirrors a
// getaddrinfo(AF_UNSPEC) dual-stack iteration by trying AF_INET6 first
// (which accepts IPv4-mapped connections on Linux unless IPV6_V6ONLY is
// set) and falling back to AF_INET - first successful bind wins.
func listenTCP(port int, backlog int) (*net.TCPListener, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_STREAM, 0)
	if err == nil {
		if reuseErr := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); reuseErr == nil {
			if bindErr := unix.Bind(fd, &unix.SockaddrInet6{Port: port}); bindErr == nil {
				return finishListen(fd, backlog)
			}
		}
		unix.Close(fd)
	}

	fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return finishListen(fd, backlog)
}

// finishListen assumes SO_REUSEADDR is already set and the socket is
// already bound - it only starts listening and wraps the fd.
func finishListen(fd int, backlog int) (*net.TCPListener, error) {
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, err
	}
	file := os.NewFile(uintptr(fd), "hapcanbridge-tcpserver")
	defer file.Close() // net.FileListener dups fd; the original is closed here
	ln, err := net.FileListener(file)
	if err != nil {
		return nil, err
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, fmt.Errorf("tcpserver: unexpected listener type %T", ln)
	}
	return tcpLn, nil
}
