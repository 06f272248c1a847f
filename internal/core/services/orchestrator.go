package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/seedset/internal/core/domain"
	"github.com/ewilliams-labs/seedset/internal/core/ports"
)

// Options tune the labeling loop.
type Options struct {
	TargetSize   int
	Policy       domain.SeedPolicy
	DefaultCount int
}

// DefaultOptions collects 200 rows with 3+2 seeds and full batches.
func DefaultOptions() Options {
	return Options{
		TargetSize:   domain.DefaultTargetSize,
		Policy:       domain.DefaultSeedPolicy,
		DefaultCount: domain.MaxRecommendations,
	}
}

// SeedRequest selects the seeds of a round. Main are dataset indices and
// may be omitted once fixed; Additional are track ids and default to the
// most recent positive rows.
type SeedRequest struct {
	Main       []int
	Additional []string
}

// Orchestrator coordinates catalog calls and run persistence.
type Orchestrator struct {
	catalog ports.CatalogProvider
	repo    ports.RunRepository
	opts    Options
	logger  *zap.Logger

	locks sync.Map
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(catalog ports.CatalogProvider, repo ports.RunRepository, opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TargetSize <= 0 {
		opts.TargetSize = domain.DefaultTargetSize
	}
	if opts.Policy == (domain.SeedPolicy{}) {
		opts.Policy = domain.DefaultSeedPolicy
	}
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = domain.MaxRecommendations
	}
	return &Orchestrator{
		catalog: catalog,
		repo:    repo,
		opts:    opts,
		logger:  logger.Named("orchestrator"),
	}
}

// StartRun pulls a playlist, its audio features and the merged dataset,
// and stores them as a new run.
func (o *Orchestrator) StartRun(ctx context.Context, sess *Session, playlistID string) (ports.RunRecord, error) {
	var (
		info  domain.PlaylistInfo
		items []domain.RawItem
	)
	err := sess.Do(ctx, func(token string) error {
		var err error
		info, items, err = o.catalog.FetchPlaylist(ctx, token, playlistID)
		return err
	})
	if err != nil {
		return ports.RunRecord{}, fmt.Errorf("service: failed to fetch playlist: %w", err)
	}

	tracks, err := o.catalog.ExtractTracks(items)
	if err != nil {
		return ports.RunRecord{}, fmt.Errorf("service: failed to extract tracks: %w", err)
	}

	features, err := o.audioFeatures(ctx, sess, domain.TrackIDs(tracks))
	if err != nil {
		return ports.RunRecord{}, err
	}

	acc, err := domain.NewAccumulator(o.opts.TargetSize, o.opts.Policy)
	if err != nil {
		return ports.RunRecord{}, fmt.Errorf("service: invalid labeling options: %w", err)
	}

	rec := ports.RunRecord{
		ID:          uuid.NewString(),
		Playlist:    domain.PlaylistDump{Info: info, Items: items},
		Tracks:      tracks,
		Features:    features,
		Dataset:     domain.MergeTrackAndFeatures(tracks, features),
		Accumulator: acc,
	}
	if err := o.repo.Create(ctx, rec); err != nil {
		return ports.RunRecord{}, fmt.Errorf("service: failed to save run: %w", err)
	}
	sess.setLastRun(rec.ID)

	o.logger.Info("run started",
		zap.String("run", rec.ID),
		zap.String("playlist", info.ID),
		zap.Int("tracks", len(tracks)),
		zap.Int("dataset_rows", len(rec.Dataset)),
	)
	if dropped := len(tracks) - len(rec.Dataset); dropped > 0 {
		o.logger.Warn("tracks without audio features dropped from dataset", zap.String("run", rec.ID), zap.Int("dropped", dropped))
	}
	return rec, nil
}

// GetRun loads a run.
func (o *Orchestrator) GetRun(ctx context.Context, runID string) (ports.RunRecord, error) {
	rec, err := o.repo.Get(ctx, runID)
	if err != nil {
		return ports.RunRecord{}, fmt.Errorf("service: failed to load run: %w", err)
	}
	return rec, nil
}

// ListRuns returns the ids of stored runs.
func (o *Orchestrator) ListRuns(ctx context.Context) ([]string, error) {
	ids, err := o.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list runs: %w", err)
	}
	return ids, nil
}

// SelectSeeds resolves the seeds of the next round and moves the run to
// AwaitingRecommendations.
func (o *Orchestrator) SelectSeeds(ctx context.Context, sess *Session, runID string, req SeedRequest) (*domain.Accumulator, error) {
	return o.mutate(ctx, runID, func(rec ports.RunRecord, acc *domain.Accumulator) error {
		if acc.State != domain.StateNeedSeedSelection {
			return fmt.Errorf("service: select seeds in state %s: %w", acc.State, domain.ErrInvalidTransition)
		}
		mainIdx := req.Main
		if len(mainIdx) == 0 {
			mainIdx = acc.MainSeeds
		}
		if err := acc.FixMainSeeds(mainIdx, len(rec.Dataset)); err != nil {
			return err
		}
		main := make([]domain.SeedRow, 0, len(mainIdx))
		for _, i := range mainIdx {
			main = append(main, rec.Dataset[i].SeedRow())
		}

		ids := req.Additional
		if len(ids) == 0 {
			ids = defaultAdditional(rec.Dataset, acc)
		}
		additional, err := o.resolveSeeds(ctx, sess, rec.Dataset, acc, ids)
		if err != nil {
			return err
		}

		set, err := domain.NewSeedTrackSet(acc.Policy, main, additional)
		if err != nil {
			return err
		}
		if _, err := domain.ComputeAttributeBounds(set.Rows()); err != nil {
			return err
		}
		return acc.SelectSeeds(set)
	})
}

// Recommend requests the next batch for the selected seeds and stores it
// as the batch awaiting labels. The count is capped to the rows still
// needed.
func (o *Orchestrator) Recommend(ctx context.Context, sess *Session, runID string, count int) (*domain.Accumulator, error) {
	return o.mutate(ctx, runID, func(_ ports.RunRecord, acc *domain.Accumulator) error {
		if acc.State != domain.StateAwaitingRecommendations || acc.Seeds == nil {
			return fmt.Errorf("service: recommend in state %s: %w", acc.State, domain.ErrInvalidTransition)
		}
		if count == 0 {
			count = o.opts.DefaultCount
		}
		if count > acc.Remaining() {
			count = acc.Remaining()
		}
		if err := domain.ValidateRecommendationCount(count); err != nil {
			return err
		}

		attrs, err := domain.ComputeAttributeBounds(acc.Seeds.Rows())
		if err != nil {
			return err
		}

		var tracks []domain.TrackRecord
		err = sess.Do(ctx, func(token string) error {
			var err error
			tracks, err = o.catalog.GetRecommendations(ctx, token, acc.Seeds.IDs(), attrs, count)
			return err
		})
		if err != nil {
			return fmt.Errorf("service: failed to get recommendations: %w", err)
		}
		if len(tracks) > count {
			tracks = tracks[:count]
		}
		if err := acc.ReceiveBatch(tracks); err != nil {
			return err
		}
		if dropped := len(tracks) - len(acc.Pending); dropped > 0 {
			o.logger.Info("dropped repeated recommendations", zap.String("run", runID), zap.Int("dropped", dropped))
		}
		return nil
	})
}

// SubmitLabels labels the pending batch by track id.
func (o *Orchestrator) SubmitLabels(ctx context.Context, runID string, labels map[string]int) (*domain.Accumulator, error) {
	return o.mutate(ctx, runID, func(_ ports.RunRecord, acc *domain.Accumulator) error {
		return acc.SubmitLabels(labels)
	})
}

// SubmitLabeledBatch accepts an uploaded, labeled copy of the pending batch.
func (o *Orchestrator) SubmitLabeledBatch(ctx context.Context, runID string, rows []domain.LabeledTrack) (*domain.Accumulator, error) {
	return o.mutate(ctx, runID, func(_ ports.RunRecord, acc *domain.Accumulator) error {
		return acc.SubmitLabeledBatch(rows)
	})
}

// ImportLabeled replaces the labeled set with an operator upload.
func (o *Orchestrator) ImportLabeled(ctx context.Context, runID string, rows []domain.LabeledTrack) (*domain.Accumulator, error) {
	return o.mutate(ctx, runID, func(_ ports.RunRecord, acc *domain.Accumulator) error {
		return acc.ImportLabeled(rows)
	})
}

// Trim keeps the first keep labeled rows.
func (o *Orchestrator) Trim(ctx context.Context, runID string, keep int) (*domain.Accumulator, error) {
	return o.mutate(ctx, runID, func(_ ports.RunRecord, acc *domain.Accumulator) error {
		return acc.Trim(keep)
	})
}

// Reset abandons the current round.
func (o *Orchestrator) Reset(ctx context.Context, runID string) (*domain.Accumulator, error) {
	return o.mutate(ctx, runID, func(_ ports.RunRecord, acc *domain.Accumulator) error {
		return acc.Reset()
	})
}

// FinalDataset fetches audio features for the complete labeled set and
// joins them. It requires exactly the target number of labeled rows.
func (o *Orchestrator) FinalDataset(ctx context.Context, sess *Session, runID string) ([]domain.LabeledFeatureRow, error) {
	rec, err := o.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	rows, err := rec.Accumulator.Final()
	if err != nil {
		return nil, fmt.Errorf("service: final dataset: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.Track.ID)
	}
	features, err := o.audioFeatures(ctx, sess, ids)
	if err != nil {
		return nil, err
	}

	out := domain.MergeLabeledAndFeatures(rows, features)
	if len(out) < len(rows) {
		o.logger.Warn("labeled rows without audio features", zap.String("run", runID), zap.Int("missing", len(rows)-len(out)))
	}
	return out, nil
}

func (o *Orchestrator) audioFeatures(ctx context.Context, sess *Session, ids []string) ([]*domain.AudioFeatureRecord, error) {
	var features []*domain.AudioFeatureRecord
	err := sess.Do(ctx, func(token string) error {
		var err error
		features, err = o.catalog.GetAudioFeatures(ctx, token, ids)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service: failed to fetch audio features: %w", err)
	}
	return features, nil
}

// resolveSeeds maps additional seed ids to seed rows. Ids from the dataset
// carry their features; ids from the labeled set must be positive and get
// their features fetched.
func (o *Orchestrator) resolveSeeds(ctx context.Context, sess *Session, dataset []domain.FullDatasetRow, acc *domain.Accumulator, ids []string) ([]domain.SeedRow, error) {
	inDataset := make(map[string]domain.FullDatasetRow, len(dataset))
	for _, r := range dataset {
		inDataset[r.Track.ID] = r
	}
	labeled := make(map[string]domain.LabeledTrack, len(acc.Labeled))
	for _, r := range acc.Labeled {
		labeled[r.Track.ID] = r
	}

	seeds := make([]domain.SeedRow, len(ids))
	var fetch []string
	fetchAt := map[string]int{}
	for i, id := range ids {
		if r, ok := inDataset[id]; ok {
			seeds[i] = r.SeedRow()
			continue
		}
		r, ok := labeled[id]
		if !ok {
			return nil, fmt.Errorf("service: seed %s is in neither the dataset nor the labeled set: %w", id, domain.ErrSeedCount)
		}
		if !r.Positive() {
			return nil, fmt.Errorf("service: seed %s is not labeled %d: %w", id, domain.LabelIn, domain.ErrSeedCount)
		}
		seeds[i] = domain.SeedRow{ID: id, Name: r.Track.Name}
		fetch = append(fetch, id)
		fetchAt[id] = i
	}
	if len(fetch) == 0 {
		return seeds, nil
	}

	features, err := o.audioFeatures(ctx, sess, fetch)
	if err != nil {
		return nil, err
	}
	for j, f := range features {
		if f == nil {
			continue
		}
		d, e, v := f.Danceability, f.Energy, f.Valence
		s := &seeds[fetchAt[fetch[j]]]
		s.Danceability, s.Energy, s.Valence = &d, &e, &v
	}
	return seeds, nil
}

// defaultAdditional picks the most recent positive labeled rows, falling
// back to the last dataset rows that are not main seeds.
func defaultAdditional(dataset []domain.FullDatasetRow, acc *domain.Accumulator) []string {
	n := acc.Policy.Additional
	if n == 0 {
		return nil
	}
	taken := map[string]bool{}
	for _, i := range acc.MainSeeds {
		if i >= 0 && i < len(dataset) {
			taken[dataset[i].Track.ID] = true
		}
	}

	var ids []string
	pick := func(id string) {
		if len(ids) < n && !taken[id] {
			taken[id] = true
			ids = append(ids, id)
		}
	}
	positive := acc.PositiveRows()
	for i := len(positive) - 1; i >= 0 && len(ids) < n; i-- {
		pick(positive[i].Track.ID)
	}
	for i := len(dataset) - 1; i >= 0 && len(ids) < n; i-- {
		pick(dataset[i].Track.ID)
	}
	return ids
}

// mutate applies fn to a copy of the run's accumulator and persists the
// copy only when fn succeeds.
func (o *Orchestrator) mutate(ctx context.Context, runID string, fn func(rec ports.RunRecord, acc *domain.Accumulator) error) (*domain.Accumulator, error) {
	mu, _ := o.locks.LoadOrStore(runID, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	rec, err := o.repo.Get(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load run: %w", err)
	}
	acc := rec.Accumulator.Clone()
	before := acc.State
	if err := fn(rec, acc); err != nil {
		return nil, err
	}
	if err := o.repo.SaveAccumulator(ctx, runID, acc); err != nil {
		return nil, fmt.Errorf("service: failed to save run: %w", err)
	}

	o.logger.Info("run advanced",
		zap.String("run", runID),
		zap.String("from", string(before)),
		zap.String("to", string(acc.State)),
		zap.Int("labeled", len(acc.Labeled)),
		zap.Int("remaining", acc.Remaining()),
	)
	return acc, nil
}
