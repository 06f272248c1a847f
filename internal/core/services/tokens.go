package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ewilliams-labs/seedset/internal/core/domain"
	"github.com/ewilliams-labs/seedset/internal/core/ports"
)

// TokenStatus is the outcome of a token validation.
type TokenStatus int

const (
	// TokenValid means the probe succeeded with the given token.
	TokenValid TokenStatus = iota
	// TokenRefreshed means the token was rejected and a new one was issued.
	TokenRefreshed
	// TokenFailed means the probe or the exchange could not be completed.
	TokenFailed
)

func (s TokenStatus) String() string {
	switch s {
	case TokenValid:
		return "valid"
	case TokenRefreshed:
		return "refreshed"
	default:
		return "failed"
	}
}

// ValidationResult is returned by TokenManager.Validate. Token is set only
// for TokenRefreshed, Err only for TokenFailed. Raw holds the probe body
// when one was received.
type ValidationResult struct {
	Status TokenStatus
	Token  *domain.Credential
	Raw    []byte
	Err    error
}

// OK reports whether work may continue.
func (r ValidationResult) OK() bool {
	return r.Status != TokenFailed
}

// TokenManager validates tokens by probing the catalog and replaces
// rejected ones through a client-credentials exchange.
type TokenManager struct {
	catalog   ports.CatalogProvider
	exchanger ports.TokenExchanger
	logger    *zap.Logger
	group     singleflight.Group
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(catalog ports.CatalogProvider, exchanger ports.TokenExchanger, logger *zap.Logger) *TokenManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenManager{
		catalog:   catalog,
		exchanger: exchanger,
		logger:    logger.Named("tokens"),
	}
}

// Validate probes the catalog with token. A rejected token is replaced
// with a fresh one; transport failures are reported in the result and
// never returned as an error.
func (m *TokenManager) Validate(ctx context.Context, token string) ValidationResult {
	raw, err := m.catalog.ProbeToken(ctx, token)
	if err == nil {
		return ValidationResult{Status: TokenValid, Raw: raw}
	}

	var remote *domain.RemoteError
	if !errors.As(err, &remote) {
		return ValidationResult{Status: TokenFailed, Raw: raw, Err: err}
	}

	m.logger.Warn("probe rejected token", zap.Int("status", remote.Status), zap.String("message", remote.Message))
	cred, err := m.Refresh(ctx)
	if err != nil {
		return ValidationResult{Status: TokenFailed, Raw: raw, Err: err}
	}
	return ValidationResult{Status: TokenRefreshed, Token: &cred, Raw: raw}
}

// Refresh runs a client-credentials exchange. Concurrent callers share a
// single exchange.
func (m *TokenManager) Refresh(ctx context.Context) (domain.Credential, error) {
	v, err, shared := m.group.Do("client_credentials", func() (any, error) {
		return m.exchanger.Exchange(ctx)
	})
	if err != nil {
		return domain.Credential{}, fmt.Errorf("service: token exchange: %w", err)
	}
	m.logger.Info("issued new access token", zap.Bool("shared", shared))
	return v.(domain.Credential), nil
}
