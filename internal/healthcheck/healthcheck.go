// Package healthcheck provides the liveness endpoint and listen-address
// normalization shared by the transport commands.
package healthcheck

import (
	"net/http"
	"strings"
	"time"
)

// NormalizeListen turns a bare port ("8080") into a listen address and
// falls back to :8080 when empty.
func NormalizeListen(listen string) string {
	listen = strings.TrimSpace(listen)
	if listen == "" {
		return ":8080"
	}
	if !strings.Contains(listen, ":") {
		return ":" + listen
	}
	return listen
}

// Handler answers liveness probes.
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// StartServer runs a standalone health endpoint for transports that do not
// serve HTTP themselves (Socket Mode). An empty listen disables it.
func StartServer(listen string) *http.Server {
	listen = strings.TrimSpace(listen)
	if listen == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", Handler)
	server := &http.Server{
		Addr:              NormalizeListen(listen),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}
