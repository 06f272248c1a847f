package rest

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewilliams-labs/seedset/internal/adapters/sqlite"
	"github.com/ewilliams-labs/seedset/internal/core/domain"
	"github.com/ewilliams-labs/seedset/internal/core/services"
)

// --- Fakes ---

// fakeCatalog serves a fixed playlist and numbered recommendations. Only
// the token "good" is accepted.
type fakeCatalog struct {
	tracks   []domain.TrackRecord
	fetchErr error
	recs     int
}

func newFakeCatalog(n int) *fakeCatalog {
	tracks := make([]domain.TrackRecord, n)
	for i := range tracks {
		tracks[i] = domain.TrackRecord{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("Playlist %d", i), Artists: []string{"A"}, URI: "u", Href: "h"}
	}
	return &fakeCatalog{tracks: tracks}
}

func (f *fakeCatalog) authorize(token string) error {
	if token != "good" {
		return &domain.RemoteError{Status: 401, Message: "Invalid access token"}
	}
	return nil
}

func (f *fakeCatalog) ProbeToken(ctx context.Context, token string) ([]byte, error) {
	if err := f.authorize(token); err != nil {
		return []byte(`{"error":{"status":401}}`), err
	}
	return []byte(`{"id":"probe"}`), nil
}

func (f *fakeCatalog) FetchPlaylist(ctx context.Context, token, playlistID string) (domain.PlaylistInfo, []domain.RawItem, error) {
	if err := f.authorize(token); err != nil {
		return domain.PlaylistInfo{}, nil, err
	}
	if f.fetchErr != nil {
		return domain.PlaylistInfo{}, nil, f.fetchErr
	}
	items := make([]domain.RawItem, len(f.tracks))
	for i, t := range f.tracks {
		items[i] = domain.RawItem(fmt.Sprintf(`{"track":{"id":%q}}`, t.ID))
	}
	return domain.PlaylistInfo{ID: playlistID, Name: "Mix"}, items, nil
}

func (f *fakeCatalog) ExtractTracks(items []domain.RawItem) ([]domain.TrackRecord, error) {
	return append([]domain.TrackRecord(nil), f.tracks[:len(items)]...), nil
}

func (f *fakeCatalog) GetAudioFeatures(ctx context.Context, token string, ids []string) ([]*domain.AudioFeatureRecord, error) {
	if err := f.authorize(token); err != nil {
		return nil, err
	}
	out := make([]*domain.AudioFeatureRecord, len(ids))
	for i, id := range ids {
		out[i] = &domain.AudioFeatureRecord{ID: id, Danceability: 0.5, Energy: 0.5, Valence: 0.5, Tempo: 100}
	}
	return out, nil
}

func (f *fakeCatalog) GetRecommendations(ctx context.Context, token string, seedIDs []string, attrs domain.RecommendationAttributes, count int) ([]domain.TrackRecord, error) {
	if err := f.authorize(token); err != nil {
		return nil, err
	}
	out := make([]domain.TrackRecord, count)
	for i := range out {
		f.recs++
		out[i] = domain.TrackRecord{ID: fmt.Sprintf("r%d", f.recs), Name: "Rec", Artists: []string{"B"}, URI: "u", Href: "h"}
	}
	return out, nil
}

type fakeExchanger struct{}

func (fakeExchanger) Exchange(ctx context.Context) (domain.Credential, error) {
	return domain.Credential{AccessToken: "good", TokenType: "Bearer"}, nil
}

// --- Helpers ---

func newTestHandler(t *testing.T, catalog *fakeCatalog) *Handler {
	t.Helper()
	repo, err := sqlite.NewAdapter(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	svc := services.NewOrchestrator(catalog, repo, services.Options{
		TargetSize: 4,
		Policy:     domain.SeedPolicy{Main: 1},
	}, nil)
	sess := services.NewSession(services.NewTokenManager(catalog, fakeExchanger{}, nil), nil)
	return NewHandler(svc, sess, nil)
}

func do(t *testing.T, h http.Handler, method, path, contentType string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func createRun(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/runs", "application/json", `{"playlist_id":"pl1"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[runResponse](t, rr).ID
}

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	h := newTestHandler(t, newFakeCatalog(1))
	rr := do(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestValidateToken(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantCode   int
		wantStatus string
		wantToken  bool
	}{
		{name: "valid token", body: `{"token":"good"}`, wantCode: http.StatusOK, wantStatus: "valid"},
		{name: "expired token is refreshed", body: `{"token":"stale"}`, wantCode: http.StatusOK, wantStatus: "refreshed", wantToken: true},
		{name: "empty token is refreshed", body: `{"token":""}`, wantCode: http.StatusOK, wantStatus: "refreshed", wantToken: true},
		{name: "blank token is refreshed", body: `{"token":"   "}`, wantCode: http.StatusOK, wantStatus: "refreshed", wantToken: true},
		{name: "malformed body", body: `{"token":`, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, newFakeCatalog(1))
			rr := do(t, h, http.MethodPost, "/token/validate", "application/json", tt.body)
			require.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}
			resp := decode[validateTokenResponse](t, rr)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantToken, resp.AccessToken != "")
		})
	}
}

func TestFullLabelingRound(t *testing.T) {
	h := newTestHandler(t, newFakeCatalog(6))
	id := createRun(t, h)

	rr := do(t, h, http.MethodGet, "/runs/"+id, "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	run := decode[runResponse](t, rr)
	assert.Equal(t, 6, run.Tracks)
	assert.Equal(t, 6, run.DatasetRows)
	assert.Equal(t, domain.StateNeedSeedSelection, run.Accumulator.State)

	rr = do(t, h, http.MethodPost, "/runs/"+id+"/seeds", "application/json", `{"main":[2]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, domain.StateAwaitingRecommendations, decode[accumulatorResponse](t, rr).State)

	rr = do(t, h, http.MethodPost, "/runs/"+id+"/recommendations", "application/json", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	acc := decode[accumulatorResponse](t, rr)
	assert.Equal(t, domain.StateAwaitingLabels, acc.State)
	assert.Equal(t, 4, acc.Pending)

	rr = do(t, h, http.MethodGet, "/runs/"+id+"/batch", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	records, err := csv.NewReader(bytes.NewReader(rr.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	labelCol := len(records[0]) - 1
	assert.Equal(t, domain.LabelColumn, records[0][labelCol])

	// Fill in the LABEL column and upload the batch back.
	for i := 1; i < len(records); i++ {
		records[i][labelCol] = fmt.Sprint(i % 2)
	}
	var upload bytes.Buffer
	cw := csv.NewWriter(&upload)
	require.NoError(t, cw.WriteAll(records))

	rr = do(t, h, http.MethodPost, "/runs/"+id+"/labels", "text/csv", upload.String())
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	acc = decode[accumulatorResponse](t, rr)
	assert.Equal(t, domain.StateAccumulated, acc.State)
	assert.Equal(t, 4, acc.Labeled)
	assert.Equal(t, 2, acc.Positive)
	assert.Equal(t, 0, acc.Remaining)

	rr = do(t, h, http.MethodGet, "/runs/"+id+"/final", "", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	records, err = csv.NewReader(bytes.NewReader(rr.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 5)
	assert.Equal(t, domain.LabeledFeatureColumns(), records[0])

	rr = do(t, h, http.MethodGet, "/runs/"+id+"/labeled?format=xlsx", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, rr.Header().Get("Content-Disposition"), id+"-labeled.xlsx")

	// A completed run refuses another round.
	rr = do(t, h, http.MethodPost, "/runs/"+id+"/seeds", "application/json", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestSubmitLabelsJSON(t *testing.T) {
	h := newTestHandler(t, newFakeCatalog(3))
	id := createRun(t, h)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/runs/"+id+"/seeds", "application/json", `{"main":[0]}`).Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/runs/"+id+"/recommendations", "application/json", `{"count":2}`).Code)

	// r1 only: r2 is still unlabeled.
	rr := do(t, h, http.MethodPost, "/runs/"+id+"/labels", "application/json", `{"labels":{"r1":1}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "policy", decode[errorResponse](t, rr).Kind)

	rr = do(t, h, http.MethodPost, "/runs/"+id+"/labels", "application/json", `{"labels":{"r1":1,"r2":0}}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	acc := decode[accumulatorResponse](t, rr)
	assert.Equal(t, domain.StateNeedSeedSelection, acc.State)
	assert.Equal(t, 2, acc.Remaining)
	assert.Equal(t, 1, acc.Round)
}

func TestImportLabeledAndTrim(t *testing.T) {
	h := newTestHandler(t, newFakeCatalog(2))
	id := createRun(t, h)

	var b strings.Builder
	b.WriteString("id,name,LABEL\n")
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&b, "x%d,Row %d,%d\n", i, i, i%2)
	}
	rr := do(t, h, http.MethodPost, "/runs/"+id+"/labeled", "text/csv", b.String())
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, domain.StateOverflow, decode[accumulatorResponse](t, rr).State)

	rr = do(t, h, http.MethodPost, "/runs/"+id+"/trim", "application/json", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/runs/"+id+"/trim", "application/json", `{"keep":4}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, domain.StateAccumulated, decode[accumulatorResponse](t, rr).State)

	rr = do(t, h, http.MethodPost, "/runs/"+id+"/labeled", "text/csv", "id,name\na,b\n")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "contract", decode[errorResponse](t, rr).Kind)
}

func TestExports(t *testing.T) {
	h := newTestHandler(t, newFakeCatalog(3))
	id := createRun(t, h)

	tests := []struct {
		path       string
		wantCode   int
		wantHeader []string
	}{
		{path: "/runs/" + id + "/tracks", wantCode: http.StatusOK, wantHeader: domain.TrackColumns},
		{path: "/runs/" + id + "/features?format=csv", wantCode: http.StatusOK, wantHeader: domain.FeatureColumns},
		{path: "/runs/" + id + "/dataset", wantCode: http.StatusOK, wantHeader: domain.DatasetColumns()},
		{path: "/runs/" + id + "/tracks?format=pdf", wantCode: http.StatusBadRequest},
		{path: "/runs/missing/tracks", wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := do(t, h, http.MethodGet, tt.path, "", "")
			require.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			if tt.wantHeader == nil {
				return
			}
			records, err := csv.NewReader(bytes.NewReader(rr.Body.Bytes())).ReadAll()
			require.NoError(t, err)
			assert.Equal(t, tt.wantHeader, records[0])
			assert.Len(t, records, 4)
		})
	}

	rr := do(t, h, http.MethodGet, "/runs/"+id+"/playlist", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	dump := decode[domain.PlaylistDump](t, rr)
	assert.Equal(t, "Mix", dump.Info.Name)
	assert.Len(t, dump.Items, 3)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		fetchErr error
		body     string
		wantCode int
	}{
		{name: "missing playlist id", body: `{}`, wantCode: http.StatusBadRequest},
		{name: "remote error", fetchErr: &domain.RemoteError{Status: 404, Message: "not found"}, body: `{"playlist_id":"x"}`, wantCode: http.StatusBadGateway},
		{name: "transport error", fetchErr: &domain.TransportError{Op: "fetch", Err: context.DeadlineExceeded}, body: `{"playlist_id":"x"}`, wantCode: http.StatusGatewayTimeout},
		{name: "contract violation", fetchErr: &domain.ContractViolation{Field: "tracks.items"}, body: `{"playlist_id":"x"}`, wantCode: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newFakeCatalog(1)
			catalog.fetchErr = tt.fetchErr
			h := newTestHandler(t, catalog)
			rr := do(t, h, http.MethodPost, "/runs", "application/json", tt.body)
			assert.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
		})
	}
}

func TestListRuns(t *testing.T) {
	h := newTestHandler(t, newFakeCatalog(1))
	first := createRun(t, h)
	second := createRun(t, h)

	rr := do(t, h, http.MethodGet, "/runs", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[struct {
		Runs []string `json:"runs"`
		Last string   `json:"last"`
	}](t, rr)
	assert.Equal(t, []string{first, second}, resp.Runs)
	assert.Equal(t, second, resp.Last)
}
