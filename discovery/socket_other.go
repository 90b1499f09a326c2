//go:build !unix

package discovery

import (
	"fmt"
	"net"
)

func listenBroadcast() (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("discovery: listen: %w", err)
	}

	return conn, nil
}
