package domain

import (
	"strconv"
	"strings"
)

// TrackRecord is one track extracted from a playlist item or a
// recommendation response.
type TrackRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Album       string   `json:"album"`
	Artists     []string `json:"artists"`
	DiscNumber  int      `json:"disc_number"`
	TrackNumber int      `json:"track_number"`
	DurationMs  int      `json:"duration_ms"`
	Popularity  int      `json:"popularity"`
	URI         string   `json:"uri"`
	Href        string   `json:"href"`
}

// AudioFeatureRecord is the feature vector the catalog returns for a track.
type AudioFeatureRecord struct {
	ID               string  `json:"id"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Valence          float64 `json:"valence"`
	Key              int     `json:"key"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Tempo            float64 `json:"tempo"`
	Type             string  `json:"type"`
	URI              string  `json:"uri"`
	TrackHref        string  `json:"track_href"`
	AnalysisURL      string  `json:"analysis_url"`
	DurationMs       int     `json:"duration_ms"`
	TimeSignature    int     `json:"time_signature"`
}

// ArtistSeparator joins artist names inside a single table cell.
const ArtistSeparator = ";"

// TrackColumns is the column order of a track table.
var TrackColumns = []string{
	"id", "name", "Album", "Artists", "disc_number", "track_number",
	"duration_ms", "popularity", "uri", "href",
}

// FeatureColumns is the column order of an audio feature table.
var FeatureColumns = []string{
	"danceability", "energy", "key", "loudness", "mode", "speechiness",
	"acousticness", "instrumentalness", "liveness", "valence", "tempo",
	"type", "id", "uri", "track_href", "analysis_url", "duration_ms",
	"time_signature",
}

// Values returns the cells of t in TrackColumns order.
func (t TrackRecord) Values() []string {
	return []string{
		t.ID,
		t.Name,
		t.Album,
		strings.Join(t.Artists, ArtistSeparator),
		strconv.Itoa(t.DiscNumber),
		strconv.Itoa(t.TrackNumber),
		strconv.Itoa(t.DurationMs),
		strconv.Itoa(t.Popularity),
		t.URI,
		t.Href,
	}
}

// Values returns the cells of f in FeatureColumns order.
func (f AudioFeatureRecord) Values() []string {
	return []string{
		formatFloat(f.Danceability),
		formatFloat(f.Energy),
		strconv.Itoa(f.Key),
		formatFloat(f.Loudness),
		strconv.Itoa(f.Mode),
		formatFloat(f.Speechiness),
		formatFloat(f.Acousticness),
		formatFloat(f.Instrumentalness),
		formatFloat(f.Liveness),
		formatFloat(f.Valence),
		formatFloat(f.Tempo),
		f.Type,
		f.ID,
		f.URI,
		f.TrackHref,
		f.AnalysisURL,
		strconv.Itoa(f.DurationMs),
		strconv.Itoa(f.TimeSignature),
	}
}

// TrackIDs returns the ids of tracks in order.
func TrackIDs(tracks []TrackRecord) []string {
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ID)
	}
	return ids
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
