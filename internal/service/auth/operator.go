package auth

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/phrazzld/ereuna/internal/config"
	"github.com/phrazzld/ereuna/internal/platform/logger"
)

// OperatorAuthenticator checks login credentials against the single operator
// account in the configuration.
type OperatorAuthenticator struct {
	username     string
	passwordHash string
	verifier     PasswordVerifier
}

// NewOperatorAuthenticator creates an OperatorAuthenticator. A nil verifier
// selects bcrypt.
func NewOperatorAuthenticator(cfg config.AuthConfig, verifier PasswordVerifier) (*OperatorAuthenticator, error) {
	if cfg.OperatorUsername == "" {
		return nil, errors.New("operator username cannot be empty")
	}
	if cfg.OperatorPasswordHash == "" {
		return nil, errors.New("operator password hash cannot be empty")
	}
	if verifier == nil {
		verifier = NewBcryptVerifier()
	}

	return &OperatorAuthenticator{
		username:     cfg.OperatorUsername,
		passwordHash: cfg.OperatorPasswordHash,
		verifier:     verifier,
	}, nil
}

// Authenticate returns nil when username and password match the operator
// account and ErrInvalidCredentials otherwise. The password is verified even
// for an unknown username so both failures take the same time.
func (a *OperatorAuthenticator) Authenticate(ctx context.Context, username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passErr := a.verifier.Compare(a.passwordHash, password)

	if !userOK || passErr != nil {
		logger.FromContext(ctx).Warn("operator login failed", "username_match", userOK)
		return ErrInvalidCredentials
	}
	return nil
}
