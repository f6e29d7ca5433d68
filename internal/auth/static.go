package auth

import (
	"context"
	"net/http"
)

// StaticTokenProvider returns a pre-issued token, such as one minted by the
// relay's operator for a debugging session.
type StaticTokenProvider struct {
	token string
}

func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{token: token}
}

func (p *StaticTokenProvider) Token(context.Context) (string, error) {
	return p.token, nil
}

func (p *StaticTokenProvider) InjectHeader(_ context.Context, h http.Header) error {
	setBearer(h, p.token)
	return nil
}

func (p *StaticTokenProvider) Close() error { return nil }
