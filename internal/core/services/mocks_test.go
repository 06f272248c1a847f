package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ewilliams-labs/seedset/internal/core/domain"
	"github.com/ewilliams-labs/seedset/internal/core/ports"
)

type mockCatalog struct {
	mu sync.Mutex

	validToken string
	probeErr   error

	info     domain.PlaylistInfo
	items    []domain.RawItem
	tracks   []domain.TrackRecord
	features map[string]*domain.AudioFeatureRecord
	recs     []domain.TrackRecord
	recErr   error

	tokensSeen   []string
	featureCalls [][]string
	recCalls     int
	lastAttrs    domain.RecommendationAttributes
	lastSeeds    []string
	lastCount    int
}

func (m *mockCatalog) authorize(token string) error {
	m.mu.Lock()
	m.tokensSeen = append(m.tokensSeen, token)
	m.mu.Unlock()
	if m.validToken != "" && token != m.validToken {
		return &domain.RemoteError{Status: 401, Message: "The access token expired"}
	}
	return nil
}

func (m *mockCatalog) ProbeToken(ctx context.Context, token string) ([]byte, error) {
	if m.probeErr != nil {
		return nil, m.probeErr
	}
	if err := m.authorize(token); err != nil {
		return []byte(`{"error":{"status":401,"message":"The access token expired"}}`), err
	}
	return []byte(`{"id":"probe"}`), nil
}

func (m *mockCatalog) FetchPlaylist(ctx context.Context, token, playlistID string) (domain.PlaylistInfo, []domain.RawItem, error) {
	if err := m.authorize(token); err != nil {
		return domain.PlaylistInfo{}, nil, err
	}
	return m.info, m.items, nil
}

func (m *mockCatalog) ExtractTracks(items []domain.RawItem) ([]domain.TrackRecord, error) {
	return m.tracks, nil
}

func (m *mockCatalog) GetAudioFeatures(ctx context.Context, token string, ids []string) ([]*domain.AudioFeatureRecord, error) {
	if err := m.authorize(token); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.featureCalls = append(m.featureCalls, append([]string(nil), ids...))
	m.mu.Unlock()
	out := make([]*domain.AudioFeatureRecord, len(ids))
	for i, id := range ids {
		out[i] = m.features[id]
	}
	return out, nil
}

func (m *mockCatalog) GetRecommendations(ctx context.Context, token string, seedIDs []string, attrs domain.RecommendationAttributes, count int) ([]domain.TrackRecord, error) {
	if err := m.authorize(token); err != nil {
		return nil, err
	}
	m.recCalls++
	m.lastSeeds = seedIDs
	m.lastAttrs = attrs
	m.lastCount = count
	if m.recErr != nil {
		return nil, m.recErr
	}
	if len(m.recs) > count {
		return m.recs[:count], nil
	}
	return m.recs, nil
}

type mockExchanger struct {
	token string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (m *mockExchanger) Exchange(ctx context.Context) (domain.Credential, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return domain.Credential{}, m.err
	}
	return domain.Credential{AccessToken: m.token, TokenType: "Bearer", ObtainedAt: time.Now()}, nil
}

type mockRepo struct {
	mu      sync.Mutex
	runs    map[string]ports.RunRecord
	saveErr error
	saves   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{runs: map[string]ports.RunRecord{}}
}

func (m *mockRepo) Create(ctx context.Context, rec ports.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[rec.ID] = rec
	return nil
}

func (m *mockRepo) Get(ctx context.Context, id string) (ports.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.runs[id]
	if !ok {
		return ports.RunRecord{}, domain.ErrNotFound
	}
	rec.Accumulator = rec.Accumulator.Clone()
	return rec, nil
}

func (m *mockRepo) SaveAccumulator(ctx context.Context, id string, acc *domain.Accumulator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	rec, ok := m.runs[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Accumulator = acc.Clone()
	m.runs[id] = rec
	m.saves++
	return nil
}

func (m *mockRepo) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	return ids, nil
}

// playlistFixture returns n tracks with features whose danceability grows
// with the index.
func playlistFixture(n int) ([]domain.TrackRecord, map[string]*domain.AudioFeatureRecord) {
	tracks := make([]domain.TrackRecord, n)
	features := make(map[string]*domain.AudioFeatureRecord, n)
	for i := range tracks {
		id := fmt.Sprintf("t%d", i)
		tracks[i] = domain.TrackRecord{ID: id, Name: fmt.Sprintf("Track %d", i)}
		v := float64(i+1) / float64(n+1)
		features[id] = &domain.AudioFeatureRecord{ID: id, Danceability: v, Energy: 1 - v, Valence: 0.5}
	}
	return tracks, features
}

func recommendations(n int, prefix string) []domain.TrackRecord {
	out := make([]domain.TrackRecord, n)
	for i := range out {
		out[i] = domain.TrackRecord{ID: fmt.Sprintf("%s%d", prefix, i), Name: fmt.Sprintf("Rec %d", i)}
	}
	return out
}
