package toolbuiltin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebFetchToolExtractsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Release Notes</title>
<script>var hidden = "nope";</script></head>
<body><h1>Changes</h1><p>Fixed the flux capacitor.</p></body></html>`))
	}))
	defer srv.Close()

	wf := NewWebFetchTool(srv.Client())
	wf.AllowPrivateHosts(true)

	out := mustExecute(t, map[string]any{"url": srv.URL}, wf)
	if !strings.Contains(out, "Title: Release Notes") {
		t.Fatalf("title missing: %q", out)
	}
	if !strings.Contains(out, "Fixed the flux capacitor.") {
		t.Fatalf("body text missing: %q", out)
	}
	if strings.Contains(out, "hidden") || strings.Contains(out, "<h1>") {
		t.Fatalf("markup or script leaked: %q", out)
	}
}

func TestWebFetchToolRawContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	wf := NewWebFetchTool(srv.Client())
	wf.AllowPrivateHosts(true)

	out := mustExecute(t, map[string]any{"url": srv.URL}, wf)
	if out != `{"status":"ok"}` {
		t.Fatalf("json body altered: %q", out)
	}
}

func TestWebFetchToolHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	wf := NewWebFetchTool(srv.Client())
	wf.AllowPrivateHosts(true)

	out := mustExecute(t, map[string]any{"url": srv.URL}, wf)
	if out != "Error: HTTP 500" {
		t.Fatalf("got %q", out)
	}
}

func TestWebFetchToolBlocksUnsafeURLs(t *testing.T) {
	wf := NewWebFetchTool(nil)

	tests := []struct {
		name string
		url  string
		want string
	}{
		{"scheme", "ftp://example.com/file", "Invalid URL scheme"},
		{"localhost", "http://localhost:8080/admin", "localhost is not allowed"},
		{"loopback", "http://127.0.0.1/metrics", "localhost is not allowed"},
		{"private", "http://192.168.1.10/router", "private IP addresses"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := mustExecute(t, map[string]any{"url": tt.url}, wf)
			if !strings.Contains(out, tt.want) {
				t.Fatalf("got %q, want %s", out, tt.want)
			}
		})
	}
}
