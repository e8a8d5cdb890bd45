package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/http/httptrace"
	"strings"
	"testing"
	"time"
)

// TestClient_ConnectionReuse verifies that sequential fetches from one
// modeler reuse the pooled connection.
func TestClient_ConnectionReuse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient()

	var reused int
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				reused++
			}
		},
	}

	const numRequests = 5
	for i := 0; i < numRequests; i++ {
		ctx := httptrace.WithClientTrace(context.Background(), trace)
		if resp := client.Fetch(ctx, server.URL, nil, 5*time.Second); resp.Err != nil {
			t.Fatalf("request %d failed: %v", i, resp.Err)
		}
	}

	if reused < numRequests-2 {
		t.Errorf("expected at least %d reused connections, got %d", numRequests-2, reused)
	}
}

func TestClient_FetchSendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"devices":{}}`))
	}))
	defer server.Close()

	resp := NewClient().Fetch(context.Background(), server.URL, map[string]string{"Authorization": "Bearer secret"}, time.Second)
	if resp.Err != nil {
		t.Fatalf("Fetch() error = %v", resp.Err)
	}
	if string(resp.Body) != `{"devices":{}}` {
		t.Errorf("Body = %q", resp.Body)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
}

func TestClient_FetchNon2xxIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	resp := NewClient().Fetch(context.Background(), server.URL, nil, time.Second)
	if resp.Err == nil || !strings.Contains(resp.Err.Error(), "503") {
		t.Errorf("Err = %v, want a 503 error", resp.Err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
}

func TestClient_FetchTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	resp := NewClient().Fetch(context.Background(), server.URL, nil, 20*time.Millisecond)
	if resp.Err == nil {
		t.Fatal("expected a timeout error")
	}
	if resp.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", resp.StatusCode)
	}
}

func TestClient_Close(t *testing.T) {
	var nilClient *Client
	nilClient.Close()

	client := NewClient()
	client.Close()
	client.Close()
}
