package ports

import (
	"context"

	"github.com/ewilliams-labs/seedset/internal/core/domain"
)

// RunRecord is one dataset-building run: the playlist it started from,
// the merged dataset and the labeling loop state.
type RunRecord struct {
	ID          string
	Playlist    domain.PlaylistDump
	Tracks      []domain.TrackRecord
	Features    []*domain.AudioFeatureRecord
	Dataset     []domain.FullDatasetRow
	Accumulator *domain.Accumulator
}

// RunRepository stores runs. Get returns domain.ErrNotFound for an unknown
// id.
type RunRepository interface {
	Create(ctx context.Context, rec RunRecord) error
	Get(ctx context.Context, id string) (RunRecord, error)
	SaveAccumulator(ctx context.Context, id string, acc *domain.Accumulator) error
	List(ctx context.Context) ([]string, error)
}
