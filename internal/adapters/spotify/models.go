package spotify

import (
	"encoding/json"
	"net/http"

	"github.com/ewilliams-labs/seedset/internal/core/domain"
)

// spotifyError is the body of the top-level error key. The Web API sends
// an object; the accounts service sends a bare string.
type spotifyError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type envelope struct {
	Error json.RawMessage `json:"error"`
}

// checkEnvelope reports an error key or a non-2xx status as a RemoteError.
func checkEnvelope(status int, body []byte) error {
	var env envelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil && len(env.Error) > 0 && string(env.Error) != "null" {
		var obj spotifyError
		if json.Unmarshal(env.Error, &obj) == nil {
			if obj.Status == 0 {
				obj.Status = status
			}
			return &domain.RemoteError{Status: obj.Status, Message: obj.Message}
		}
		var msg string
		_ = json.Unmarshal(env.Error, &msg)
		return &domain.RemoteError{Status: status, Message: msg}
	}
	if status < 200 || status > 299 {
		return &domain.RemoteError{Status: status, Message: http.StatusText(status)}
	}
	return nil
}

// spotifyPlaylist is the playlist object with its first page of items.
type spotifyPlaylist struct {
	ID          *string `json:"id"`
	Name        *string `json:"name"`
	URI         *string `json:"uri"`
	Description *string `json:"description"`
	Owner       *struct {
		DisplayName *string `json:"display_name"`
	} `json:"owner"`
	Followers *struct {
		Total *int `json:"total"`
	} `json:"followers"`
	Tracks *spotifyPage `json:"tracks"`
}

// spotifyPage is one page of playlist items.
type spotifyPage struct {
	Items *[]json.RawMessage `json:"items"`
	Next  *string            `json:"next"`
}

// spotifyItem is a playlist item; only the track is read.
type spotifyItem struct {
	Track *spotifyTrack `json:"track"`
}

// spotifyTrack uses pointers so absent fields can be told apart from
// zero values.
type spotifyTrack struct {
	ID    *string `json:"id"`
	Name  *string `json:"name"`
	Album *struct {
		Name *string `json:"name"`
	} `json:"album"`
	Artists *[]struct {
		Name *string `json:"name"`
	} `json:"artists"`
	DiscNumber  *int    `json:"disc_number"`
	TrackNumber *int    `json:"track_number"`
	DurationMs  *int    `json:"duration_ms"`
	Popularity  *int    `json:"popularity"`
	URI         *string `json:"uri"`
	Href        *string `json:"href"`
}

type spotifyAudioFeatures struct {
	ID               string  `json:"id"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Key              int     `json:"key"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Valence          float64 `json:"valence"`
	Tempo            float64 `json:"tempo"`
	Type             string  `json:"type"`
	URI              string  `json:"uri"`
	TrackHref        string  `json:"track_href"`
	AnalysisURL      string  `json:"analysis_url"`
	DurationMs       int     `json:"duration_ms"`
	TimeSignature    int     `json:"time_signature"`
}

type audioFeaturesResponse struct {
	AudioFeatures *[]*spotifyAudioFeatures `json:"audio_features"`
}

type recommendationsResponse struct {
	Tracks *[]json.RawMessage `json:"tracks"`
}
