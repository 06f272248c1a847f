package domain

import (
	"encoding/json"
	"time"
)

// Credential is a bearer token. Expiry is enforced by the remote only, so
// validity is never derived locally.
type Credential struct {
	AccessToken string
	TokenType   string
	ObtainedAt  time.Time
}

// Empty reports whether no token is held.
func (c Credential) Empty() bool {
	return c.AccessToken == ""
}

// PlaylistInfo is the metadata snapshot fetched once per session.
type PlaylistInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URI         string `json:"uri"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
	Followers   int    `json:"followers"`
}

// RawItem is one playlist item exactly as the catalog returned it.
type RawItem = json.RawMessage

// PlaylistDump keeps the metadata and raw items together for export.
type PlaylistDump struct {
	Info  PlaylistInfo `json:"info"`
	Items []RawItem    `json:"items"`
}
