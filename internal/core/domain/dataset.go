package domain

// Suffixes applied to overlapping non-key columns when tracks and audio
// features are joined.
const (
	TrackSuffix = "_track"
	AudioSuffix = "_audio"
	JoinKey     = "id"
)

// FullDatasetRow is a track joined with its audio features on id.
type FullDatasetRow struct {
	Track TrackRecord        `json:"track"`
	Audio AudioFeatureRecord `json:"audio"`
}

// MergeTrackAndFeatures inner-joins tracks and features on id, in track
// order. Tracks without a feature record are dropped, nil feature entries
// are ignored, and only the first occurrence of a duplicated id on either
// side is kept.
func MergeTrackAndFeatures(tracks []TrackRecord, features []*AudioFeatureRecord) []FullDatasetRow {
	byID := make(map[string]*AudioFeatureRecord, len(features))
	for _, f := range features {
		if f == nil || f.ID == "" {
			continue
		}
		if _, ok := byID[f.ID]; !ok {
			byID[f.ID] = f
		}
	}

	rows := make([]FullDatasetRow, 0, len(tracks))
	seen := make(map[string]struct{}, len(tracks))
	for _, t := range tracks {
		f, ok := byID[t.ID]
		if !ok {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		rows = append(rows, FullDatasetRow{Track: t, Audio: *f})
	}
	return rows
}

// MergedColumns builds the header of a left/right join on key. The key
// appears once, in its left position; any other column present on both
// sides gets the left or right suffix.
func MergedColumns(left, right []string, key, leftSuffix, rightSuffix string) []string {
	inLeft := make(map[string]bool, len(left))
	for _, c := range left {
		inLeft[c] = true
	}
	inRight := make(map[string]bool, len(right))
	for _, c := range right {
		inRight[c] = true
	}

	out := make([]string, 0, len(left)+len(right))
	for _, c := range left {
		if c != key && inRight[c] {
			c += leftSuffix
		}
		out = append(out, c)
	}
	for _, c := range right {
		if c == key {
			continue
		}
		if inLeft[c] {
			c += rightSuffix
		}
		out = append(out, c)
	}
	return out
}

// DatasetColumns is the header of a full dataset table.
func DatasetColumns() []string {
	return MergedColumns(TrackColumns, FeatureColumns, JoinKey, TrackSuffix, AudioSuffix)
}

// Values returns the cells of r in DatasetColumns order.
func (r FullDatasetRow) Values() []string {
	return mergeValues(r.Track.Values(), FeatureColumns, r.Audio.Values(), JoinKey)
}

func mergeValues(left, rightCols, right []string, key string) []string {
	out := make([]string, 0, len(left)+len(right))
	out = append(out, left...)
	for i, c := range rightCols {
		if c == key {
			continue
		}
		out = append(out, right[i])
	}
	return out
}

// SeedRow returns the seed view of the row.
func (r FullDatasetRow) SeedRow() SeedRow {
	d, e, v := r.Audio.Danceability, r.Audio.Energy, r.Audio.Valence
	return SeedRow{ID: r.Track.ID, Name: r.Track.Name, Danceability: &d, Energy: &e, Valence: &v}
}

// LabeledFeatureRow is a labeled track joined with its audio features.
type LabeledFeatureRow struct {
	Labeled LabeledTrack       `json:"labeled"`
	Audio   AudioFeatureRecord `json:"audio"`
}

// MergeLabeledAndFeatures inner-joins labeled rows with features on id,
// under the same rules as MergeTrackAndFeatures.
func MergeLabeledAndFeatures(rows []LabeledTrack, features []*AudioFeatureRecord) []LabeledFeatureRow {
	tracks := make([]TrackRecord, len(rows))
	byID := make(map[string]LabeledTrack, len(rows))
	for i, r := range rows {
		tracks[i] = r.Track
		if _, ok := byID[r.Track.ID]; !ok {
			byID[r.Track.ID] = r
		}
	}
	joined := MergeTrackAndFeatures(tracks, features)
	out := make([]LabeledFeatureRow, 0, len(joined))
	for _, j := range joined {
		out = append(out, LabeledFeatureRow{Labeled: byID[j.Track.ID], Audio: j.Audio})
	}
	return out
}

// LabeledFeatureColumns is the header of the final labeled dataset.
func LabeledFeatureColumns() []string {
	return MergedColumns(LabeledColumns(), FeatureColumns, JoinKey, TrackSuffix, AudioSuffix)
}

// Values returns the cells of r in LabeledFeatureColumns order.
func (r LabeledFeatureRow) Values() []string {
	return mergeValues(r.Labeled.Values(), FeatureColumns, r.Audio.Values(), JoinKey)
}
