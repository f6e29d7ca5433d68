// Package auth supplies credentials for relay and probe connections.
package auth

import (
	"context"
	"net/http"
)

// Provider obtains a bearer token and places it on outgoing handshakes.
type Provider interface {
	// Token returns a valid token, served from cache while it has not expired.
	Token(ctx context.Context) (string, error)

	// InjectHeader sets the Authorization header in h.
	InjectHeader(ctx context.Context, h http.Header) error

	Close() error
}

func setBearer(h http.Header, token string) {
	h.Set("Authorization", "Bearer "+token)
}
