package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/seedset/internal/core/domain"
)

// GetRecommendations asks for count tracks similar to the seeds and
// bounded by attrs on danceability, energy and valence.
func (c *Client) GetRecommendations(ctx context.Context, token string, seedIDs []string, attrs domain.RecommendationAttributes, count int) ([]domain.TrackRecord, error) {
	if len(seedIDs) == 0 || len(seedIDs) > domain.MaxSeeds {
		return nil, &domain.PolicyViolation{Rule: domain.ErrSeedCount.Rule, Detail: fmt.Sprintf("%d seeds, want 1 to %d", len(seedIDs), domain.MaxSeeds)}
	}
	if err := domain.ValidateRecommendationCount(count); err != nil {
		return nil, err
	}

	query := map[string]string{
		"limit":       strconv.Itoa(count),
		"seed_tracks": strings.Join(seedIDs, ","),
	}
	putBounds(query, "danceability", attrs.Danceability)
	putBounds(query, "energy", attrs.Energy)
	putBounds(query, "valence", attrs.Valence)

	body, err := c.get(ctx, "recommendations", token, "/recommendations", query)
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: recommendations: %w", err)
	}

	var resp recommendationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("spotify adapter: decode recommendations: %w", &domain.ContractViolation{Field: "tracks", Detail: err.Error()})
	}
	if resp.Tracks == nil {
		return nil, fmt.Errorf("spotify adapter: recommendations: %w", &domain.ContractViolation{Field: "tracks"})
	}

	tracks := make([]domain.TrackRecord, 0, len(*resp.Tracks))
	for i, raw := range *resp.Tracks {
		var st spotifyTrack
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, fmt.Errorf("spotify adapter: recommendations: %w", &domain.ContractViolation{Field: fmt.Sprintf("tracks[%d]", i), Detail: err.Error()})
		}
		t, err := mapTrack(st, fmt.Sprintf("tracks[%d]", i))
		if err != nil {
			return nil, fmt.Errorf("spotify adapter: recommendations: %w", err)
		}
		tracks = append(tracks, t)
	}

	c.logger.Debug("fetched recommendations",
		zap.Strings("seeds", seedIDs),
		zap.Int("requested", count),
		zap.Int("received", len(tracks)))
	return tracks, nil
}

func putBounds(query map[string]string, attr string, b domain.Bounds) {
	query["min_"+attr] = strconv.FormatFloat(b.Min, 'f', -1, 64)
	query["max_"+attr] = strconv.FormatFloat(b.Max, 'f', -1, 64)
}
