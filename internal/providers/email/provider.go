package email

import (
	"context"
	"errors"
)

// ErrNotConfigured signals that no email provider is wired up. Callers must
// not treat the send as delivered.
var ErrNotConfigured = errors.New("email provider not configured")

// Provider sends one transactional email and returns the provider-assigned
// message id.
type Provider interface {
	Send(ctx context.Context, from, to, subject, htmlBody string) (string, error)
}

// NoOpProvider stands in when no API key is configured. It refuses every
// send with ErrNotConfigured so that no delivery record is written and the
// email can still go out once a real provider is configured.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, from, to, subject, htmlBody string) (string, error) {
	return "", ErrNotConfigured
}
