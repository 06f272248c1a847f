package domain

import "strconv"

// DefaultTargetSize is the number of labeled rows a run collects.
const DefaultTargetSize = 200

// Label values.
const (
	LabelOut = 0
	LabelIn  = 1
)

// LabelColumn is the header of the human-assigned label.
const LabelColumn = "LABEL"

// LabeledTrack is a recommended track and its label. Label is nil until a
// human assigns one.
type LabeledTrack struct {
	Track TrackRecord `json:"track"`
	Label *int        `json:"label"`
}

// Labeled reports whether the row carries a binary label.
func (l LabeledTrack) Labeled() bool {
	return l.Label != nil && (*l.Label == LabelOut || *l.Label == LabelIn)
}

// Positive reports whether the row is labeled as belonging to the playlist.
func (l LabeledTrack) Positive() bool {
	return l.Label != nil && *l.Label == LabelIn
}

// LabeledColumns is the header of a batch or labeled set table.
func LabeledColumns() []string {
	return append(append([]string{}, TrackColumns...), LabelColumn)
}

// Values returns the cells of l in LabeledColumns order. An unset label
// is an empty cell.
func (l LabeledTrack) Values() []string {
	label := ""
	if l.Label != nil {
		label = strconv.Itoa(*l.Label)
	}
	return append(l.Track.Values(), label)
}

// LabelPtr returns a pointer to v.
func LabelPtr(v int) *int {
	return &v
}

// NewUnlabeledBatch wraps recommended tracks for labeling.
func NewUnlabeledBatch(tracks []TrackRecord) []LabeledTrack {
	batch := make([]LabeledTrack, 0, len(tracks))
	for _, t := range tracks {
		batch = append(batch, LabeledTrack{Track: t})
	}
	return batch
}

// ApplyLabels returns a copy of batch with labels set by track id. Ids
// not present in the batch are rejected.
func ApplyLabels(batch []LabeledTrack, labels map[string]int) ([]LabeledTrack, error) {
	index := make(map[string]int, len(batch))
	for i, row := range batch {
		index[row.Track.ID] = i
	}
	out := make([]LabeledTrack, len(batch))
	copy(out, batch)
	for id, v := range labels {
		i, ok := index[id]
		if !ok {
			return nil, violation(ErrUnlabeledRow, "track %s is not in the batch", id)
		}
		if v != LabelOut && v != LabelIn {
			return nil, violation(ErrUnlabeledRow, "track %s has label %d, want 0 or 1", id, v)
		}
		out[i].Label = LabelPtr(v)
	}
	return out, nil
}

// CheckLabeled returns ErrUnlabeledRow for the first row without a
// binary label.
func CheckLabeled(rows []LabeledTrack) error {
	for i, row := range rows {
		if !row.Labeled() {
			return violation(ErrUnlabeledRow, "row %d (%s) has no 0/1 label", i, row.Track.ID)
		}
	}
	return nil
}

// AppendLabeledBatch concatenates a fully labeled batch onto existing.
// The batch is rejected when it holds an unlabeled row, when existing
// has already reached target, or when the result would exceed target.
// On success len(combined) == len(existing)+len(batch) and remaining is
// how many rows are still needed.
func AppendLabeledBatch(existing, batch []LabeledTrack, target int) (combined []LabeledTrack, remaining int, err error) {
	if err := CheckLabeled(batch); err != nil {
		return nil, target - len(existing), err
	}
	if len(existing) >= target {
		return nil, target - len(existing), violation(ErrTargetReached, "already holding %d of %d rows", len(existing), target)
	}
	if len(existing)+len(batch) > target {
		return nil, target - len(existing), violation(ErrWouldExceedTarget, "%d + %d rows exceeds %d", len(existing), len(batch), target)
	}

	combined = make([]LabeledTrack, 0, len(existing)+len(batch))
	combined = append(combined, existing...)
	combined = append(combined, batch...)
	return combined, target - len(combined), nil
}
