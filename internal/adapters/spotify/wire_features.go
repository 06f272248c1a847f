package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ewilliams-labs/seedset/internal/core/domain"
)

// GetAudioFeatures fetches features in chunks of at most batchSize ids and
// realigns the answer to the input order. Ids the catalog could not
// resolve come back as nil entries.
func (c *Client) GetAudioFeatures(ctx context.Context, token string, ids []string) ([]*domain.AudioFeatureRecord, error) {
	out := make([]*domain.AudioFeatureRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for start := 0; start < len(ids); start += c.batchSize {
		end := min(start+c.batchSize, len(ids))
		chunk := ids[start:end]
		// Each goroutine owns out[start:end].
		dst := out[start:end]
		g.Go(func() error {
			found, err := c.fetchFeatureChunk(gctx, token, chunk)
			if err != nil {
				return fmt.Errorf("spotify adapter: audio features [%d:%d]: %w", start, end, err)
			}
			for i, id := range chunk {
				if f, ok := found[id]; ok {
					rec := f
					dst[i] = &rec
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("fetched audio features",
		zap.Int("ids", len(ids)),
		zap.Int("chunks", (len(ids)+c.batchSize-1)/c.batchSize))
	return out, nil
}

func (c *Client) fetchFeatureChunk(ctx context.Context, token string, ids []string) (map[string]domain.AudioFeatureRecord, error) {
	body, err := c.get(ctx, "audio features", token, "/audio-features", map[string]string{
		"ids": strings.Join(ids, ","),
	})
	if err != nil {
		return nil, err
	}

	var resp audioFeaturesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &domain.ContractViolation{Field: "audio_features", Detail: err.Error()}
	}
	if resp.AudioFeatures == nil {
		return nil, &domain.ContractViolation{Field: "audio_features"}
	}

	found := make(map[string]domain.AudioFeatureRecord, len(*resp.AudioFeatures))
	for _, f := range *resp.AudioFeatures {
		if f == nil || f.ID == "" {
			continue
		}
		found[f.ID] = mapAudioFeatures(*f)
	}
	return found, nil
}
