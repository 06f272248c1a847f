package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/seedset/internal/core/domain"
)

// ProbeToken fetches a single field of a known public playlist.
func (c *Client) ProbeToken(ctx context.Context, token string) ([]byte, error) {
	path := "/playlists/" + url.PathEscape(c.probeID)
	return c.get(ctx, "probe token", token, path, map[string]string{"fields": "id"})
}

// FetchPlaylist returns the playlist metadata and all of its items,
// following the next cursor until it is null.
func (c *Client) FetchPlaylist(ctx context.Context, token, playlistID string) (domain.PlaylistInfo, []domain.RawItem, error) {
	body, err := c.get(ctx, "fetch playlist", token, "/playlists/"+url.PathEscape(playlistID), nil)
	if err != nil {
		return domain.PlaylistInfo{}, nil, fmt.Errorf("spotify adapter: playlist %s: %w", playlistID, err)
	}

	var sp spotifyPlaylist
	if err := json.Unmarshal(body, &sp); err != nil {
		return domain.PlaylistInfo{}, nil, fmt.Errorf("spotify adapter: decode playlist: %w", &domain.ContractViolation{Field: "playlist", Detail: err.Error()})
	}
	info, err := mapPlaylistInfo(sp)
	if err != nil {
		return domain.PlaylistInfo{}, nil, fmt.Errorf("spotify adapter: playlist %s: %w", playlistID, err)
	}
	if sp.Tracks == nil {
		return domain.PlaylistInfo{}, nil, fmt.Errorf("spotify adapter: playlist %s: %w", playlistID, &domain.ContractViolation{Field: "playlist.tracks"})
	}

	items := []domain.RawItem{}
	page := *sp.Tracks
	for n := 1; ; n++ {
		if page.Items == nil {
			return domain.PlaylistInfo{}, nil, fmt.Errorf("spotify adapter: playlist %s page %d: %w", playlistID, n, &domain.ContractViolation{Field: "tracks.items"})
		}
		for _, raw := range *page.Items {
			items = append(items, domain.RawItem(raw))
		}
		if page.Next == nil || *page.Next == "" {
			break
		}

		body, err := c.get(ctx, "fetch playlist page", token, *page.Next, nil)
		if err != nil {
			return domain.PlaylistInfo{}, nil, fmt.Errorf("spotify adapter: playlist %s page %d: %w", playlistID, n+1, err)
		}
		page = spotifyPage{}
		if err := json.Unmarshal(body, &page); err != nil {
			return domain.PlaylistInfo{}, nil, fmt.Errorf("spotify adapter: decode page %d: %w", n+1, &domain.ContractViolation{Field: "tracks", Detail: err.Error()})
		}
	}

	c.logger.Debug("fetched playlist", zap.String("playlist", playlistID), zap.Int("items", len(items)))
	return info, items, nil
}
