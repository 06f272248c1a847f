package spotify

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ewilliams-labs/seedset/internal/core/domain"
	"github.com/ewilliams-labs/seedset/internal/core/ports"
)

// DefaultTokenURL is the accounts service token endpoint.
const DefaultTokenURL = "https://accounts.spotify.com/api/token"

// AuthConfig holds the app credentials for the client-credentials grant.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Timeout      time.Duration
}

// Authenticator exchanges app credentials for a bearer token.
type Authenticator struct {
	cfg    clientcredentials.Config
	http   *http.Client
	logger *zap.Logger
	now    func() time.Time
}

var _ ports.TokenExchanger = (*Authenticator)(nil)

// NewAuthenticator builds an Authenticator. An empty TokenURL uses the
// Spotify accounts service.
func NewAuthenticator(cfg AuthConfig, logger *zap.Logger) *Authenticator {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		cfg: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.Named("spotify.auth"),
		now:    time.Now,
	}
}

// Exchange performs one client-credentials grant.
func (a *Authenticator) Exchange(ctx context.Context) (domain.Credential, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.http)
	tok, err := a.cfg.Token(ctx)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			msg := re.ErrorDescription
			if msg == "" {
				msg = re.ErrorCode
			}
			return domain.Credential{}, &domain.RemoteError{Status: status, Message: msg}
		}
		return domain.Credential{}, &domain.TransportError{Op: "token exchange", Err: err}
	}
	if tok.AccessToken == "" {
		return domain.Credential{}, &domain.ContractViolation{Field: "access_token"}
	}

	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	a.logger.Info("obtained access token", zap.Time("expiry", tok.Expiry))
	return domain.Credential{
		AccessToken: tok.AccessToken,
		TokenType:   tokenType,
		ObtainedAt:  a.now(),
	}, nil
}
