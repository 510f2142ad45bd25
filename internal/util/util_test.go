package util

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
)

func TestRobotsChecker_Allowed(t *testing.T) {
	var robotsFetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsFetches.Add(1)
			_, _ = fmt.Fprint(w, "User-agent: imgpull\nDisallow: /private/\n\nUser-agent: *\nDisallow: /\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewRobotsChecker("imgpull/0.1 (+https://github.com/ppiankov/imgpull)", server.Client())
	ctx := context.Background()

	allowed, err := checker.Allowed(ctx, server.URL+"/public/cat.png")
	if err != nil || !allowed {
		t.Errorf("expected public image allowed, got %v %v", allowed, err)
	}
	allowed, err = checker.Allowed(ctx, server.URL+"/private/cat.png")
	if err != nil || allowed {
		t.Errorf("expected private image disallowed, got %v %v", allowed, err)
	}

	if robotsFetches.Load() != 1 {
		t.Errorf("expected robots.txt fetched once, got %d", robotsFetches.Load())
	}
}

func TestRobotsChecker_MissingRobotsAllowsAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	checker := NewRobotsChecker("imgpull/0.1", server.Client())
	allowed, err := checker.Allowed(context.Background(), server.URL+"/any.png")
	if err != nil || !allowed {
		t.Errorf("expected allowed when robots.txt is missing, got %v %v", allowed, err)
	}
}

func TestRobotsChecker_UnreachableAllows(t *testing.T) {
	checker := NewRobotsChecker("imgpull/0.1", nil)
	allowed, err := checker.Allowed(context.Background(), "http://127.0.0.1:1/a.png")
	if err != nil || !allowed {
		t.Errorf("expected allowed when robots.txt is unreachable, got %v %v", allowed, err)
	}
}

func TestNormalizeUserAgent(t *testing.T) {
	tests := map[string]string{
		"imgpull/0.1 (+https://github.com/ppiankov/imgpull)": "imgpull",
		"curl/8.0": "curl",
		"plain":    "plain",
		"":         "",
	}
	for in, want := range tests {
		if got := NormalizeUserAgent(in); got != want {
			t.Errorf("NormalizeUserAgent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.internal:3128", "http://secure.internal:3129", "skip.example.com")

	tests := []struct {
		target string
		want   string
	}{
		{"http://example.com/a.png", "http://proxy.internal:3128"},
		{"https://example.com/a.png", "http://secure.internal:3129"},
		{"https://skip.example.com/a.png", ""},
	}
	for _, tt := range tests {
		u, _ := url.Parse(tt.target)
		got, err := proxy(&http.Request{URL: u})
		if err != nil {
			t.Fatalf("proxy(%s) failed: %v", tt.target, err)
		}
		if tt.want == "" {
			if got != nil {
				t.Errorf("proxy(%s) = %v, want direct", tt.target, got)
			}
			continue
		}
		if got == nil || got.String() != tt.want {
			t.Errorf("proxy(%s) = %v, want %s", tt.target, got, tt.want)
		}
	}
}
