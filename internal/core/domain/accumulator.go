package domain

import (
	"fmt"
	"slices"
)

// State is a step of the labeling loop.
type State string

const (
	StateNeedSeedSelection       State = "need_seed_selection"
	StateAwaitingRecommendations State = "awaiting_recommendations"
	StateAwaitingLabels          State = "awaiting_labels"
	StateAccumulated             State = "accumulated"
	// StateOverflow holds more labeled rows than the target. Only Trim
	// leaves it.
	StateOverflow State = "overflow"
)

// Accumulator drives the human-in-the-loop expansion of a labeled set.
//
//	NeedSeedSelection --SelectSeeds--> AwaitingRecommendations
//	AwaitingRecommendations --ReceiveBatch--> AwaitingLabels
//	AwaitingLabels --SubmitLabels--> NeedSeedSelection | Accumulated
//
// Pending is the batch awaiting labels; it is persisted with the rest of
// the accumulator so a restarted process resumes at the same step.
type Accumulator struct {
	State     State          `json:"state"`
	Target    int            `json:"target"`
	Policy    SeedPolicy     `json:"policy"`
	Round     int            `json:"round"`
	MainSeeds []int          `json:"main_seeds"`
	Seeds     *SeedTrackSet  `json:"seeds,omitempty"`
	Pending   []LabeledTrack `json:"pending,omitempty"`
	Labeled   []LabeledTrack `json:"labeled"`
}

// NewAccumulator returns an empty accumulator waiting for seeds.
func NewAccumulator(target int, policy SeedPolicy) (*Accumulator, error) {
	if target <= 0 {
		return nil, violation(ErrTargetReached, "target %d must be positive", target)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Accumulator{
		State:   StateNeedSeedSelection,
		Target:  target,
		Policy:  policy,
		Labeled: []LabeledTrack{},
	}, nil
}

// Clone returns a copy that shares no slices with a.
func (a *Accumulator) Clone() *Accumulator {
	c := *a
	c.MainSeeds = append([]int(nil), a.MainSeeds...)
	c.Pending = append([]LabeledTrack(nil), a.Pending...)
	c.Labeled = append([]LabeledTrack{}, a.Labeled...)
	if a.Seeds != nil {
		s := SeedTrackSet{
			Main:       append([]SeedRow(nil), a.Seeds.Main...),
			Additional: append([]SeedRow(nil), a.Seeds.Additional...),
		}
		c.Seeds = &s
	}
	return &c
}

// Remaining is how many labeled rows are still needed. It is negative in
// StateOverflow.
func (a *Accumulator) Remaining() int {
	return a.Target - len(a.Labeled)
}

// FixMainSeeds records the dataset indices of the main seeds. They can
// be chosen until the first batch is accepted and are fixed afterwards.
// Importing a labeled set does not count as a round, so a resumed run
// still picks its main seeds.
func (a *Accumulator) FixMainSeeds(indices []int, datasetLen int) error {
	if len(indices) != a.Policy.Main {
		return violation(ErrSeedCount, "got %d main seeds, want %d", len(indices), a.Policy.Main)
	}
	seen := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		if i < 0 || i >= datasetLen {
			return violation(ErrSeedCount, "main seed index %d outside dataset of %d rows", i, datasetLen)
		}
		if _, dup := seen[i]; dup {
			return violation(ErrSeedCount, "main seed index %d selected twice", i)
		}
		seen[i] = struct{}{}
	}
	if a.Round > 0 && len(a.MainSeeds) > 0 && !slices.Equal(a.MainSeeds, indices) {
		return violation(ErrInvalidTransition, "main seeds are fixed after round 1")
	}
	a.MainSeeds = append([]int(nil), indices...)
	return nil
}

// SelectSeeds moves NeedSeedSelection to AwaitingRecommendations.
func (a *Accumulator) SelectSeeds(set SeedTrackSet) error {
	if err := a.expect(StateNeedSeedSelection, "select seeds"); err != nil {
		return err
	}
	if len(set.Main) != a.Policy.Main || len(set.Additional) != a.Policy.Additional {
		return violation(ErrSeedCount, "got %d+%d seeds, want %d+%d",
			len(set.Main), len(set.Additional), a.Policy.Main, a.Policy.Additional)
	}
	a.Seeds = &set
	a.State = StateAwaitingRecommendations
	return nil
}

// ReceiveBatch stores recommended tracks as the batch awaiting labels.
// Tracks already labeled, used as seeds or repeated within the batch are
// dropped, so the labeled set never holds an id twice.
func (a *Accumulator) ReceiveBatch(tracks []TrackRecord) error {
	if err := a.expect(StateAwaitingRecommendations, "receive batch"); err != nil {
		return err
	}
	fresh := a.newTracks(tracks)
	if len(fresh) == 0 {
		return violation(ErrInvalidTransition, "no new tracks among %d recommendations", len(tracks))
	}
	if len(fresh) > a.Remaining() {
		return violation(ErrWouldExceedTarget, "%d + %d rows exceeds %d", len(a.Labeled), len(fresh), a.Target)
	}
	a.Pending = NewUnlabeledBatch(fresh)
	a.State = StateAwaitingLabels
	return nil
}

func (a *Accumulator) newTracks(tracks []TrackRecord) []TrackRecord {
	seen := make(map[string]struct{}, len(a.Labeled)+len(tracks))
	for _, row := range a.Labeled {
		seen[row.Track.ID] = struct{}{}
	}
	if a.Seeds != nil {
		for _, id := range a.Seeds.IDs() {
			seen[id] = struct{}{}
		}
	}
	var out []TrackRecord
	for _, t := range tracks {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}

// SubmitLabels labels the pending batch by track id and appends it. Every
// pending row must receive a label; on any error the accumulator is left
// unchanged.
func (a *Accumulator) SubmitLabels(labels map[string]int) error {
	if err := a.expect(StateAwaitingLabels, "submit labels"); err != nil {
		return err
	}
	applied, err := ApplyLabels(a.Pending, labels)
	if err != nil {
		return err
	}
	combined, _, err := AppendLabeledBatch(a.Labeled, applied, a.Target)
	if err != nil {
		return err
	}
	a.Labeled = combined
	a.Pending = nil
	a.Seeds = nil
	a.Round++
	a.settle()
	return nil
}

// SubmitLabeledBatch accepts an uploaded copy of the pending batch. The
// upload must contain exactly the pending track ids.
func (a *Accumulator) SubmitLabeledBatch(rows []LabeledTrack) error {
	if err := a.expect(StateAwaitingLabels, "submit labels"); err != nil {
		return err
	}
	if len(rows) != len(a.Pending) {
		return missing("batch", "uploaded %d rows, pending batch has %d", len(rows), len(a.Pending))
	}
	labels := make(map[string]int, len(rows))
	for i, row := range rows {
		if !row.Labeled() {
			return violation(ErrUnlabeledRow, "row %d (%s) has no 0/1 label", i, row.Track.ID)
		}
		labels[row.Track.ID] = *row.Label
	}
	if len(labels) != len(a.Pending) {
		return missing("batch", "uploaded batch repeats track ids")
	}
	return a.SubmitLabels(labels)
}

// ImportLabeled replaces the labeled set with an operator upload. More
// rows than the target moves the accumulator to StateOverflow. Repeated
// track ids are rejected.
func (a *Accumulator) ImportLabeled(rows []LabeledTrack) error {
	switch a.State {
	case StateAwaitingRecommendations, StateAwaitingLabels:
		return violation(ErrInvalidTransition, "cannot import labeled rows in state %s", a.State)
	}
	if err := CheckLabeled(rows); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(rows))
	for i, row := range rows {
		if _, dup := seen[row.Track.ID]; dup {
			return missing("id", "row %d repeats track %s", i, row.Track.ID)
		}
		seen[row.Track.ID] = struct{}{}
	}
	a.Labeled = append([]LabeledTrack{}, rows...)
	a.settle()
	return nil
}

// Trim keeps the first keep labeled rows. It is the operator correction
// for StateOverflow and the way to shrink a completed set.
func (a *Accumulator) Trim(keep int) error {
	switch a.State {
	case StateAwaitingRecommendations, StateAwaitingLabels:
		return violation(ErrInvalidTransition, "cannot trim in state %s", a.State)
	}
	if keep < 0 || keep > len(a.Labeled) {
		return violation(ErrInvalidTransition, "keep %d outside 0-%d", keep, len(a.Labeled))
	}
	if keep > a.Target {
		return violation(ErrWouldExceedTarget, "keep %d exceeds %d", keep, a.Target)
	}
	a.Labeled = a.Labeled[:keep:keep]
	a.settle()
	return nil
}

// Reset abandons the current round and returns to seed selection.
func (a *Accumulator) Reset() error {
	switch a.State {
	case StateAwaitingRecommendations, StateAwaitingLabels:
	default:
		return violation(ErrInvalidTransition, "nothing to reset in state %s", a.State)
	}
	a.Seeds = nil
	a.Pending = nil
	a.State = StateNeedSeedSelection
	return nil
}

// Final returns the labeled set once exactly Target rows are held.
func (a *Accumulator) Final() ([]LabeledTrack, error) {
	if err := a.expect(StateAccumulated, "final extraction"); err != nil {
		return nil, err
	}
	if err := CheckLabeled(a.Labeled); err != nil {
		return nil, err
	}
	return append([]LabeledTrack(nil), a.Labeled...), nil
}

// PositiveRows returns labeled rows with LABEL 1, most recent last.
func (a *Accumulator) PositiveRows() []LabeledTrack {
	var out []LabeledTrack
	for _, row := range a.Labeled {
		if row.Positive() {
			out = append(out, row)
		}
	}
	return out
}

func (a *Accumulator) settle() {
	switch n := len(a.Labeled); {
	case n == a.Target:
		a.State = StateAccumulated
	case n > a.Target:
		a.State = StateOverflow
	default:
		a.State = StateNeedSeedSelection
	}
}

func (a *Accumulator) expect(want State, op string) error {
	if a.State != want {
		return violation(ErrInvalidTransition, "%s requires %s, state is %s", op, want, a.State)
	}
	return nil
}

// String summarises the accumulator for logs.
func (a *Accumulator) String() string {
	return fmt.Sprintf("state=%s round=%d labeled=%d/%d pending=%d", a.State, a.Round, len(a.Labeled), a.Target, len(a.Pending))
}
