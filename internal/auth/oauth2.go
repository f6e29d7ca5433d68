package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// ClientCredentials configures the OAuth2 client credentials grant.
type ClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// RefreshBeforeExpiry renews the token this long before it expires.
	RefreshBeforeExpiry time.Duration
}

// ClientCredentialsProvider fetches and caches tokens from an OAuth2 token
// endpoint. Concurrent callers share a single in-flight fetch.
type ClientCredentialsProvider struct {
	cfg        ClientCredentials
	httpClient *http.Client
	now        func() time.Time

	mu       sync.Mutex
	cond     *sync.Cond
	fetching bool
	token    string
	expiry   time.Time
}

// NewClientCredentialsProvider validates cfg and returns a provider.
func NewClientCredentialsProvider(cfg ClientCredentials) (*ClientCredentialsProvider, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.TokenURL))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid token url %q", cfg.TokenURL)
	}
	if cfg.ClientID == "" {
		return nil, errors.New("client id is required")
	}
	p := &ClientCredentialsProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
	p.cond = sync.NewCond(&p.mu)
	return p, nil
}

func (p *ClientCredentialsProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.token != "" && p.now().Before(p.expiry) {
			return p.token, nil
		}
		if !p.fetching {
			break
		}
		p.cond.Wait()
	}

	p.fetching = true
	p.mu.Unlock()
	token, ttl, err := p.fetch(ctx)
	p.mu.Lock()
	p.fetching = false
	p.cond.Broadcast()

	if err != nil {
		return "", err
	}
	p.token = token
	p.expiry = p.now().Add(ttl - p.cfg.RefreshBeforeExpiry)
	return token, nil
}

func (p *ClientCredentialsProvider) fetch(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	if len(p.cfg.Scopes) > 0 {
		form.Set("scope", strings.Join(p.cfg.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(url.QueryEscape(p.cfg.ClientID), url.QueryEscape(p.cfg.ClientSecret))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("fetch token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", 0, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if e := gjson.GetBytes(body, "error"); e.Exists() {
			return "", 0, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, e.String())
		}
		return "", 0, fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return "", 0, errors.New("token response is not JSON")
	}

	res := gjson.ParseBytes(body)
	if e := res.Get("error"); e.Exists() {
		return "", 0, fmt.Errorf("oauth2 error: %s - %s", e.String(), res.Get("error_description").String())
	}
	token := res.Get("access_token").String()
	if token == "" {
		return "", 0, errors.New("no access token in response")
	}
	ttl := time.Hour
	if exp := res.Get("expires_in"); exp.Exists() {
		ttl = time.Duration(exp.Int()) * time.Second
	}
	return token, ttl, nil
}

func (p *ClientCredentialsProvider) InjectHeader(ctx context.Context, h http.Header) error {
	token, err := p.Token(ctx)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}
	setBearer(h, token)
	return nil
}

func (p *ClientCredentialsProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
