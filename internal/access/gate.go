// Package access implements the optional operator passphrase. When no
// passphrase is configured every route stays open.
package access

import (
	"crypto/rand"
	"fmt"

	"go.uber.org/zap"

	"github.com/movienight/backend/pkg/utils"
)

// Config holds operator access settings.
type Config struct {
	Passphrase  string // plain text or a bcrypt hash
	TokenSecret string
	TokenHours  int
}

// Gate checks the passphrase and issues operator tokens.
type Gate struct {
	hash   string
	tokens *TokenService
}

// NewGate builds a gate. It returns a disabled gate when no passphrase is set.
func NewGate(cfg Config, logger *zap.Logger) (*Gate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Passphrase == "" {
		logger.Warn("operator access is open: ACCESS_PASSPHRASE not set")
		return &Gate{}, nil
	}

	hash := cfg.Passphrase
	if !utils.IsBcryptHash(hash) {
		var err error
		if hash, err = utils.HashPassphrase(cfg.Passphrase); err != nil {
			return nil, fmt.Errorf("hash passphrase: %w", err)
		}
	}

	secret := []byte(cfg.TokenSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
		logger.Warn("ACCESS_TOKEN_SECRET not set; operator tokens will not survive a restart or work across instances")
	}
	return &Gate{hash: hash, tokens: NewTokenService(secret, cfg.TokenHours)}, nil
}

// Enabled reports whether a passphrase is required.
func (g *Gate) Enabled() bool {
	return g != nil && g.hash != ""
}

// Check compares a submitted passphrase.
func (g *Gate) Check(passphrase string) bool {
	if !g.Enabled() {
		return true
	}
	return utils.CheckPassphrase(passphrase, g.hash)
}

// Tokens returns the token service, nil when the gate is disabled.
func (g *Gate) Tokens() *TokenService {
	if g == nil {
		return nil
	}
	return g.tokens
}

// ValidateToken accepts any token when the gate is disabled.
func (g *Gate) ValidateToken(token string) error {
	if !g.Enabled() {
		return nil
	}
	_, err := g.tokens.Validate(token)
	return err
}
