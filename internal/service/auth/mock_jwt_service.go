package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MockJWTService is a configurable JWTService for handler tests.
type MockJWTService struct {
	GenerateTokenFunc        func(ctx context.Context, sessionID uuid.UUID) (string, error)
	ValidateTokenFunc        func(ctx context.Context, tokenString string) (*Claims, error)
	GenerateRefreshTokenFunc func(ctx context.Context, sessionID uuid.UUID) (string, error)
	ValidateRefreshTokenFunc func(ctx context.Context, tokenString string) (*Claims, error)

	// Fixed results used when the matching func is nil.
	Token           string
	RefreshToken    string
	TokenError      error
	ValidationError error
	Claims          *Claims
	TokenLifetime   time.Duration
}

var _ JWTService = (*MockJWTService)(nil)

// NewMockJWTService returns a mock whose tokens validate to claims for a
// fresh session.
func NewMockJWTService() *MockJWTService {
	now := time.Now()
	sessionID := uuid.New()

	return &MockJWTService{
		Token:         "mock-jwt-token",
		RefreshToken:  "mock-refresh-token",
		TokenLifetime: time.Hour,
		Claims: &Claims{
			SessionID: sessionID,
			TokenType: TokenTypeAccess,
			Subject:   sessionID.String(),
			IssuedAt:  now,
			ExpiresAt: now.Add(time.Hour),
			ID:        uuid.New().String(),
		},
	}
}

// GenerateToken implements JWTService.
func (m *MockJWTService) GenerateToken(ctx context.Context, sessionID uuid.UUID) (string, error) {
	if m.GenerateTokenFunc != nil {
		return m.GenerateTokenFunc(ctx, sessionID)
	}
	return m.Token, m.TokenError
}

// ValidateToken implements JWTService.
func (m *MockJWTService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(ctx, tokenString)
	}
	if m.ValidationError != nil {
		return nil, m.ValidationError
	}
	return m.Claims, nil
}

// GenerateRefreshToken implements JWTService.
func (m *MockJWTService) GenerateRefreshToken(ctx context.Context, sessionID uuid.UUID) (string, error) {
	if m.GenerateRefreshTokenFunc != nil {
		return m.GenerateRefreshTokenFunc(ctx, sessionID)
	}
	return m.RefreshToken, m.TokenError
}

// ValidateRefreshToken implements JWTService. With no func set it returns a
// refresh-typed copy of Claims.
func (m *MockJWTService) ValidateRefreshToken(ctx context.Context, tokenString string) (*Claims, error) {
	if m.ValidateRefreshTokenFunc != nil {
		return m.ValidateRefreshTokenFunc(ctx, tokenString)
	}
	if m.ValidationError != nil {
		return nil, m.ValidationError
	}
	if m.Claims == nil {
		return nil, nil
	}
	refresh := *m.Claims
	refresh.TokenType = TokenTypeRefresh
	return &refresh, nil
}

// AccessTokenLifetime implements JWTService.
func (m *MockJWTService) AccessTokenLifetime() time.Duration {
	return m.TokenLifetime
}
