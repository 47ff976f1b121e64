package export

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

// Handler serves the text exposition under /metrics.
func Handler(c *Collector) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		var sb strings.Builder
		c.Render(&sb)
		_, _ = w.Write([]byte(sb.String()))
	})
	return mux
}

// StartServer serves the exposition on addr (host:port) over HTTP/1. It
// returns the bound address, which may differ when port 0 was requested,
// and a shutdown function.
func StartServer(addr string, c *Collector) (string, func(ctx context.Context) error, error) {
	srv := &http.Server{Addr: addr, Handler: Handler(c), ReadHeaderTimeout: 3 * time.Second}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}
	bound := ln.Addr().String()
	go func() {
		_ = srv.Serve(ln)
	}()
	stop := func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	}
	return bound, stop, nil
}
