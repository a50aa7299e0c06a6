package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func captureServer(t *testing.T) (*httptest.Server, *http.Header) {
	t.Helper()
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestBearer(t *testing.T) {
	srv, got := captureServer(t)
	tokens := func(ctx context.Context) (string, error) { return "abc", nil }
	client := &http.Client{Transport: Chain(nil, Bearer(tokens))}

	t.Run("adds header", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/groups", nil)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if h := got.Get("Authorization"); h != "Bearer abc" {
			t.Errorf("Authorization = %q, want %q", h, "Bearer abc")
		}
		if req.Header.Get("Authorization") != "" {
			t.Error("middleware mutated the caller's request")
		}
	})

	t.Run("anonymous requests skip header", func(t *testing.T) {
		req, _ := http.NewRequestWithContext(WithAnonymous(context.Background()), http.MethodPost, srv.URL+"/api/auth/login", nil)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if h := got.Get("Authorization"); h != "" {
			t.Errorf("Authorization = %q, want none", h)
		}
	})
}

func TestBearer_TokenErrorAbortsRequest(t *testing.T) {
	errNoToken := errors.New("no token")
	sent := false
	base := RoundTripperFunc(func(*http.Request) (*http.Response, error) {
		sent = true
		return nil, nil
	})
	client := &http.Client{Transport: Chain(base, Bearer(func(context.Context) (string, error) { return "", errNoToken }))}

	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/api/groups", nil)
	_, err := client.Do(req)
	if !errors.Is(err, errNoToken) {
		t.Errorf("error = %v, want wrapped errNoToken", err)
	}
	if sent {
		t.Error("request was sent without a token")
	}
}

func TestRequestIDAndLogging(t *testing.T) {
	srv, got := captureServer(t)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := &http.Client{Transport: Chain(nil, RequestID(), Logging(logger))}

	ctx := WithOperation(context.Background(), "get_group")
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/fail", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	id := got.Get(RequestIDHeader)
	if id == "" {
		t.Fatal("expected X-Request-ID header")
	}
	out := logs.String()
	for _, want := range []string{"API request error", "operation=get_group", "status=418", "request_id=" + id} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
