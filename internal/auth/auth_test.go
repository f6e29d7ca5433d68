package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStaticTokenProvider(t *testing.T) {
	p := NewStaticTokenProvider("relay-debug")
	token, err := p.Token(context.Background())
	if err != nil || token != "relay-debug" {
		t.Fatalf("Token() = %q, %v", token, err)
	}
	h := http.Header{}
	if err := p.InjectHeader(context.Background(), h); err != nil {
		t.Fatalf("InjectHeader() error = %v", err)
	}
	if got := h.Get("Authorization"); got != "Bearer relay-debug" {
		t.Errorf("Authorization = %q", got)
	}
}

type tokenServer struct {
	*httptest.Server
	requests atomic.Int32
}

func newTokenServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, n int32)) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ts.requests.Add(1)
		handler(w, r, n)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestClientCredentialsFetchesAndCaches(t *testing.T) {
	var gotUser, gotPass, gotBody string
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request, n int32) {
		gotUser, gotPass, _ = r.BasicAuth()
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":3600}`, n)
	})

	p, err := NewClientCredentialsProvider(ClientCredentials{
		TokenURL:     srv.URL,
		ClientID:     "vitalscope",
		ClientSecret: "s3cret",
		Scopes:       []string{"timeline:read"},
	})
	if err != nil {
		t.Fatalf("NewClientCredentialsProvider() error = %v", err)
	}
	defer p.Close()

	for i := 0; i < 3; i++ {
		token, err := p.Token(context.Background())
		if err != nil {
			t.Fatalf("Token() error = %v", err)
		}
		if token != "tok-1" {
			t.Errorf("Token() = %q, want cached tok-1", token)
		}
	}
	if n := srv.requests.Load(); n != 1 {
		t.Errorf("token requests = %d, want 1", n)
	}
	if gotUser != "vitalscope" || gotPass != "s3cret" {
		t.Errorf("basic auth = %q/%q", gotUser, gotPass)
	}
	if !strings.Contains(gotBody, "grant_type=client_credentials") || !strings.Contains(gotBody, "scope=timeline%3Aread") {
		t.Errorf("form body = %q", gotBody)
	}
	if strings.Contains(gotBody, "s3cret") {
		t.Error("client secret leaked into the form body")
	}
}

func TestClientCredentialsRefreshesAfterExpiry(t *testing.T) {
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request, n int32) {
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":60}`, n)
	})
	p, err := NewClientCredentialsProvider(ClientCredentials{TokenURL: srv.URL, ClientID: "c", RefreshBeforeExpiry: 10 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	now := time.Unix(1_700_000_000, 0)
	p.now = func() time.Time { return now }

	if tok, _ := p.Token(context.Background()); tok != "tok-1" {
		t.Fatalf("first token = %q", tok)
	}
	now = now.Add(49 * time.Second)
	if tok, _ := p.Token(context.Background()); tok != "tok-1" {
		t.Errorf("token before refresh window = %q, want tok-1", tok)
	}
	now = now.Add(2 * time.Second)
	if tok, _ := p.Token(context.Background()); tok != "tok-2" {
		t.Errorf("token inside refresh window = %q, want tok-2", tok)
	}
}

func TestClientCredentialsConcurrentCallersShareFetch(t *testing.T) {
	release := make(chan struct{})
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request, n int32) {
		<-release
		fmt.Fprint(w, `{"access_token":"shared","expires_in":3600}`)
	})
	p, err := NewClientCredentialsProvider(ClientCredentials{TokenURL: srv.URL, ClientID: "c"})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], _ = p.Token(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, tok := range tokens {
		if tok != "shared" {
			t.Errorf("tokens[%d] = %q", i, tok)
		}
	}
	if n := srv.requests.Load(); n != 1 {
		t.Errorf("token requests = %d, want 1", n)
	}
}

func TestClientCredentialsErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"status", http.StatusUnauthorized, `{"error":"invalid_client"}`, "status 401: invalid_client"},
		{"oauth error", http.StatusOK, `{"error":"invalid_scope","error_description":"nope"}`, "invalid_scope - nope"},
		{"no token", http.StatusOK, `{"token_type":"Bearer"}`, "no access token"},
		{"not json", http.StatusOK, `<html>`, "not JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request, n int32) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			p, err := NewClientCredentialsProvider(ClientCredentials{TokenURL: srv.URL, ClientID: "c"})
			if err != nil {
				t.Fatal(err)
			}
			h := http.Header{}
			err = p.InjectHeader(context.Background(), h)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("InjectHeader() error = %v, want %q", err, tt.wantErr)
			}
			if h.Get("Authorization") != "" {
				t.Error("Authorization set despite failure")
			}
		})
	}
}

func TestNewClientCredentialsProviderValidates(t *testing.T) {
	if _, err := NewClientCredentialsProvider(ClientCredentials{TokenURL: "not a url", ClientID: "c"}); err == nil {
		t.Error("expected error for invalid token url")
	}
	if _, err := NewClientCredentialsProvider(ClientCredentials{TokenURL: "https://idp.example/token"}); err == nil {
		t.Error("expected error without client id")
	}
}
