package peer

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientGet(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/health":
			w.Write([]byte("Healthy"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(ClientConfig{})
	host := strings.TrimPrefix(server.URL, "http://")

	resp := client.Get(context.Background(), host+"/health")
	if !resp.Success {
		t.Fatalf("Get(/health) failed: %s", resp.Reason)
	}
	if string(resp.Body) != "Healthy" {
		t.Errorf("Body = %q, want %q", resp.Body, "Healthy")
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, DefaultUserAgent)
	}

	resp = client.Get(context.Background(), server.URL+"/missing")
	if resp.Success {
		t.Error("Get(/missing) succeeded, want failure")
	}
	if resp.StatusCode != http.StatusNotFound || resp.Reason != "HTTP 404" {
		t.Errorf("StatusCode, Reason = %d, %q, want 404, %q", resp.StatusCode, resp.Reason, "HTTP 404")
	}
}

func TestClientGetTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(ClientConfig{Timeout: 100 * time.Millisecond})
	start := time.Now()
	resp := client.Get(context.Background(), server.URL)
	if resp.Success {
		t.Fatal("Get() succeeded against a stalled server")
	}
	if resp.Reason != "Timed out" {
		t.Errorf("Reason = %q, want %q", resp.Reason, "Timed out")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Get() took %v, want about 100ms", elapsed)
	}
}

func TestClientGetRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	resp := NewClient(ClientConfig{}).Get(context.Background(), addr+"/api/local")
	if resp.Success {
		t.Fatal("Get() succeeded against a closed port")
	}
	if resp.Reason == "" {
		t.Error("Reason is empty")
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"10.0.0.2:8080/api/local", "http://10.0.0.2:8080/api/local"},
		{"http://a/b", "http://a/b"},
		{"https://a/b", "https://a/b"},
	}
	for _, tt := range tests {
		if got := normalizeURL(tt.in); got != tt.want {
			t.Errorf("normalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
