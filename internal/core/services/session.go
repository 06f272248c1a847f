package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/seedset/internal/core/domain"
)

// Session holds the credential every catalog call uses and the last run
// started with it. It is passed explicitly to the operations that need it;
// only the TokenManager produces the credentials it stores.
type Session struct {
	tokens *TokenManager
	logger *zap.Logger

	mu      sync.RWMutex
	cred    domain.Credential
	lastRun string
}

// NewSession returns a session without a credential. The first catalog
// call obtains one.
func NewSession(tokens *TokenManager, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{tokens: tokens, logger: logger.Named("session")}
}

// Credential returns the current credential.
func (s *Session) Credential() domain.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// LastRun returns the id of the most recently started run.
func (s *Session) LastRun() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

func (s *Session) setLastRun(id string) {
	s.mu.Lock()
	s.lastRun = id
	s.mu.Unlock()
}

func (s *Session) store(c domain.Credential) {
	s.mu.Lock()
	s.cred = c
	s.mu.Unlock()
}

// Use validates token and adopts it, or its replacement, as the session
// credential. Callers must stop on a failed result and should warn the
// operator when the token was refreshed.
func (s *Session) Use(ctx context.Context, token string) ValidationResult {
	res := s.tokens.Validate(ctx, token)
	switch res.Status {
	case TokenValid:
		s.store(domain.Credential{AccessToken: token, TokenType: "Bearer"})
	case TokenRefreshed:
		s.logger.Warn("access token expired, continuing with a refreshed token")
		s.store(*res.Token)
	}
	return res
}

// Validate re-checks the session credential.
func (s *Session) Validate(ctx context.Context) ValidationResult {
	return s.Use(ctx, s.Credential().AccessToken)
}

// Do runs fn with the current access token. When the catalog rejects the
// token fn is retried once with a refreshed one.
func (s *Session) Do(ctx context.Context, fn func(token string) error) error {
	token, err := s.token(ctx)
	if err != nil {
		return err
	}

	err = fn(token)
	var remote *domain.RemoteError
	if err == nil || !errors.As(err, &remote) || !remote.Unauthorized() {
		return err
	}

	s.logger.Warn("catalog rejected token, refreshing once")
	cred, rerr := s.tokens.Refresh(ctx)
	if rerr != nil {
		return fmt.Errorf("service: refresh after rejected token: %w", rerr)
	}
	s.store(cred)
	return fn(cred.AccessToken)
}

func (s *Session) token(ctx context.Context) (string, error) {
	if c := s.Credential(); !c.Empty() {
		return c.AccessToken, nil
	}
	cred, err := s.tokens.Refresh(ctx)
	if err != nil {
		return "", err
	}
	s.store(cred)
	return cred.AccessToken, nil
}
