package auth

import (
	"testing"
	"time"

	"github.com/phrazzld/ereuna/internal/config"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret-that-is-32-chars-long"

// testAuthConfig returns a configuration that passes NewJWTService checks.
func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:                   testSecret,
		OperatorUsername:            "operator",
		TokenLifetimeMinutes:        60,
		RefreshTokenLifetimeMinutes: 1440,
	}
}

// newClockedJWTService creates a service whose clock is fixed at now.
func newClockedJWTService(t *testing.T, secret string, now time.Time) *hmacJWTService {
	t.Helper()
	cfg := testAuthConfig()
	cfg.JWTSecret = secret
	svc, err := newHMACJWTService(cfg, func() time.Time { return now })
	require.NoError(t, err, "failed to create test JWT service")
	return svc
}
