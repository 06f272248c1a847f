package spotify

import (
	"encoding/json"
	"fmt"

	"github.com/ewilliams-labs/seedset/internal/core/domain"
)

// ExtractTracks maps raw playlist items to tracks. A missing field in any
// item fails the whole extraction.
func (c *Client) ExtractTracks(items []domain.RawItem) ([]domain.TrackRecord, error) {
	return ExtractTracks(items)
}

// ExtractTracks is the pure form of Client.ExtractTracks.
func ExtractTracks(items []domain.RawItem) ([]domain.TrackRecord, error) {
	tracks := make([]domain.TrackRecord, 0, len(items))
	for i, raw := range items {
		var item spotifyItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, &domain.ContractViolation{Field: fmt.Sprintf("items[%d]", i), Detail: err.Error()}
		}
		if item.Track == nil {
			return nil, &domain.ContractViolation{Field: fmt.Sprintf("items[%d].track", i)}
		}
		t, err := mapTrack(*item.Track, fmt.Sprintf("items[%d].track", i))
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

func mapTrack(st spotifyTrack, at string) (domain.TrackRecord, error) {
	absent := func(field string) error {
		return &domain.ContractViolation{Field: at + "." + field}
	}
	switch {
	case st.ID == nil:
		return domain.TrackRecord{}, absent("id")
	case st.Name == nil:
		return domain.TrackRecord{}, absent("name")
	case st.Album == nil || st.Album.Name == nil:
		return domain.TrackRecord{}, absent("album.name")
	case st.Artists == nil:
		return domain.TrackRecord{}, absent("artists")
	case st.DiscNumber == nil:
		return domain.TrackRecord{}, absent("disc_number")
	case st.TrackNumber == nil:
		return domain.TrackRecord{}, absent("track_number")
	case st.DurationMs == nil:
		return domain.TrackRecord{}, absent("duration_ms")
	case st.Popularity == nil:
		return domain.TrackRecord{}, absent("popularity")
	case st.URI == nil:
		return domain.TrackRecord{}, absent("uri")
	case st.Href == nil:
		return domain.TrackRecord{}, absent("href")
	}

	artists := make([]string, 0, len(*st.Artists))
	for j, a := range *st.Artists {
		if a.Name == nil {
			return domain.TrackRecord{}, absent(fmt.Sprintf("artists[%d].name", j))
		}
		artists = append(artists, *a.Name)
	}

	return domain.TrackRecord{
		ID:          *st.ID,
		Name:        *st.Name,
		Album:       *st.Album.Name,
		Artists:     artists,
		DiscNumber:  *st.DiscNumber,
		TrackNumber: *st.TrackNumber,
		DurationMs:  *st.DurationMs,
		Popularity:  *st.Popularity,
		URI:         *st.URI,
		Href:        *st.Href,
	}, nil
}

func mapPlaylistInfo(sp spotifyPlaylist) (domain.PlaylistInfo, error) {
	switch {
	case sp.ID == nil:
		return domain.PlaylistInfo{}, &domain.ContractViolation{Field: "playlist.id"}
	case sp.Name == nil:
		return domain.PlaylistInfo{}, &domain.ContractViolation{Field: "playlist.name"}
	case sp.URI == nil:
		return domain.PlaylistInfo{}, &domain.ContractViolation{Field: "playlist.uri"}
	case sp.Owner == nil || sp.Owner.DisplayName == nil:
		return domain.PlaylistInfo{}, &domain.ContractViolation{Field: "playlist.owner.display_name"}
	case sp.Followers == nil || sp.Followers.Total == nil:
		return domain.PlaylistInfo{}, &domain.ContractViolation{Field: "playlist.followers.total"}
	}
	info := domain.PlaylistInfo{
		ID:        *sp.ID,
		Name:      *sp.Name,
		URI:       *sp.URI,
		Owner:     *sp.Owner.DisplayName,
		Followers: *sp.Followers.Total,
	}
	// Spotify sends null for playlists without a description.
	if sp.Description != nil {
		info.Description = *sp.Description
	}
	return info, nil
}

func mapAudioFeatures(f spotifyAudioFeatures) domain.AudioFeatureRecord {
	return domain.AudioFeatureRecord{
		ID:               f.ID,
		Danceability:     f.Danceability,
		Energy:           f.Energy,
		Valence:          f.Valence,
		Key:              f.Key,
		Loudness:         f.Loudness,
		Mode:             f.Mode,
		Speechiness:      f.Speechiness,
		Acousticness:     f.Acousticness,
		Instrumentalness: f.Instrumentalness,
		Liveness:         f.Liveness,
		Tempo:            f.Tempo,
		Type:             f.Type,
		URI:              f.URI,
		TrackHref:        f.TrackHref,
		AnalysisURL:      f.AnalysisURL,
		DurationMs:       f.DurationMs,
		TimeSignature:    f.TimeSignature,
	}
}
