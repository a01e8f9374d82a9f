package httpserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestServerServeAndShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := New(0, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}), Options{})

	done := make(chan error, 1)
	go func() { done <- srv.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("unexpected body %q", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("serve should return nil after shutdown, got %v", err)
	}
}

func TestServerDefaults(t *testing.T) {
	srv := New(8080, http.NotFoundHandler(), Options{WriteTimeout: time.Minute})
	if srv.Addr() != ":8080" {
		t.Fatalf("unexpected addr %s", srv.Addr())
	}
	if srv.inner.WriteTimeout != time.Minute || srv.inner.ReadHeaderTimeout != 5*time.Second {
		t.Fatalf("unexpected timeouts %+v", srv.inner)
	}
}
