package infra

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestNewHTTPServerUsesConfig(t *testing.T) {
	cfg := &Config{
		Port:             "9091",
		HTTPReadTimeout:  3 * time.Second,
		HTTPWriteTimeout: 4 * time.Second,
		HTTPIdleTimeout:  5 * time.Second,
	}
	srv := NewHTTPServer(cfg, http.NewServeMux())
	if srv.Addr() != ":9091" {
		t.Fatalf("addr = %q, want :9091", srv.Addr())
	}
	if srv.server.ReadTimeout != 3*time.Second || srv.server.WriteTimeout != 4*time.Second {
		t.Fatalf("timeouts not applied: %+v", srv.server)
	}
}

func TestHTTPServerNilSafe(t *testing.T) {
	var srv HTTPServer
	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
