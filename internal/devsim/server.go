package devsim

import (
	"net"
)

// Serve accepts clients on ln and bridges each one to a new session, the way
// a network adapter in front of the box would. It returns the Accept error
// that stopped it, typically after ln is closed.
func (d *Device) Serve(ln net.Listener) error {
	for {
		nc, err := ln.Accept()
		if err != nil {
			return err
		}
		go d.bridge(nc)
	}
}

// bridge pumps bytes between nc and a session until either side closes.
// Every read from nc is handed to the session as one request.
func (d *Device) bridge(nc net.Conn) {
	c := d.Open()
	defer nc.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			data, err := c.Receive(64)
			if err != nil {
				return
			}
			if len(data) == 0 {
				continue
			}
			if _, err := nc.Write(data); err != nil {
				return
			}
		}
	}()

	buf := make([]byte, 64)
	for {
		n, err := nc.Read(buf)
		if err != nil {
			break
		}
		if err := c.Send(buf[:n]); err != nil {
			break
		}
	}

	_ = c.Close()
	<-done
}
