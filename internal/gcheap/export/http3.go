package export

import (
	"crypto/tls"
	"net"
	"time"

	http3 "github.com/quic-go/quic-go/http3"
)

// HTTP3Server wraps the HTTP/3 exposition listener lifecycle, for
// deployments that scrape metrics over QUIC.
type HTTP3Server struct {
	srv   *http3.Server
	pc    net.PacketConn
	addr  string
	close func() error
}

// NewHTTP3Server binds the exposition handler to addr with the given TLS
// configuration.
func NewHTTP3Server(addr string, tlsCfg *tls.Config, c *Collector) *HTTP3Server {
	s := &http3.Server{Addr: addr, TLSConfig: tlsCfg, Handler: Handler(c)}
	return &HTTP3Server{srv: s, addr: addr}
}

// Start begins serving HTTP/3, on an ephemeral UDP port if addr ends with
// ":0". Use the returned address to reach the server.
func (s *HTTP3Server) Start() (string, error) {
	var err error
	s.pc, err = net.ListenPacket("udp", s.addr)
	if err != nil {
		return "", err
	}
	realAddr := s.pc.LocalAddr().String()
	done := make(chan struct{})
	go func() {
		_ = s.srv.Serve(s.pc)
		close(done)
	}()
	s.close = func() error {
		_ = s.pc.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return nil
	}
	return realAddr, nil
}

// Stop stops the server.
func (s *HTTP3Server) Stop() error {
	if s.close != nil {
		return s.close()
	}
	return nil
}
