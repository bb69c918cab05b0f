package mocks

import (
	"context"

	"github.com/phrazzld/runq/internal/auth"
)

// MockTokenValidator implements middleware.TokenValidator for testing.
type MockTokenValidator struct {
	ValidateTokenFn func(ctx context.Context, token string) (*auth.Claims, error)

	// Claims and Err are returned when ValidateTokenFn is nil
	Claims *auth.Claims
	Err    error
}

// ValidateToken implements middleware.TokenValidator.
func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	if m.ValidateTokenFn != nil {
		return m.ValidateTokenFn(ctx, token)
	}
	return m.Claims, m.Err
}
