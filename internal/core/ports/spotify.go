package ports

import (
	"context"

	"github.com/ewilliams-labs/seedset/internal/core/domain"
)

// CatalogProvider is the remote music catalog. Every call takes the bearer
// token explicitly; implementations never hold session state.
type CatalogProvider interface {
	// ProbeToken issues a lightweight authenticated request and returns the
	// raw body. A rejected token is reported as *domain.RemoteError.
	ProbeToken(ctx context.Context, token string) ([]byte, error)

	// FetchPlaylist returns the playlist metadata and every item across all
	// pages, in page order.
	FetchPlaylist(ctx context.Context, token, playlistID string) (domain.PlaylistInfo, []domain.RawItem, error)

	// ExtractTracks maps raw playlist items to tracks without network I/O.
	ExtractTracks(items []domain.RawItem) ([]domain.TrackRecord, error)

	// GetAudioFeatures returns one entry per id, in input order; nil marks
	// an id the catalog could not resolve.
	GetAudioFeatures(ctx context.Context, token string, ids []string) ([]*domain.AudioFeatureRecord, error)

	// GetRecommendations returns up to count tracks similar to the seeds
	// and inside the attribute bounds.
	GetRecommendations(ctx context.Context, token string, seedIDs []string, attrs domain.RecommendationAttributes, count int) ([]domain.TrackRecord, error)
}

// TokenExchanger obtains a fresh app-level credential.
type TokenExchanger interface {
	Exchange(ctx context.Context) (domain.Credential, error)
}
