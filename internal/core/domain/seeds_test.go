package domain

import (
	"errors"
	"math"
	"testing"
)

func f64(v float64) *float64 { return &v }

func seed(id string, dance, energy, valence float64) SeedRow {
	return SeedRow{ID: id, Danceability: f64(dance), Energy: f64(energy), Valence: f64(valence)}
}

func TestComputeAttributeBounds(t *testing.T) {
	tests := []struct {
		name    string
		seeds   []SeedRow
		want    RecommendationAttributes
		wantErr error
	}{
		{
			name: "three main plus two additional",
			seeds: []SeedRow{
				seed("m1", 0.2, 0.6, 0.1),
				seed("m2", 0.5, 0.4, 0.9),
				seed("m3", 0.8, 0.7, 0.3),
				seed("a1", 0.3, 0.2, 0.5),
				seed("a2", 0.9, 0.8, 0.4),
			},
			want: RecommendationAttributes{
				Danceability: Bounds{Min: 0.2, Max: 0.9},
				Energy:       Bounds{Min: 0.2, Max: 0.8},
				Valence:      Bounds{Min: 0.1, Max: 0.9},
			},
		},
		{
			name:  "single seed collapses to a point",
			seeds: []SeedRow{seed("only", 0.4, 0.5, 0.6)},
			want: RecommendationAttributes{
				Danceability: Bounds{Min: 0.4, Max: 0.4},
				Energy:       Bounds{Min: 0.5, Max: 0.5},
				Valence:      Bounds{Min: 0.6, Max: 0.6},
			},
		},
		{
			name:    "no seeds",
			seeds:   nil,
			wantErr: ErrSeedCount,
		},
		{
			name:    "missing energy",
			seeds:   []SeedRow{seed("a", 0.1, 0.1, 0.1), {ID: "b", Danceability: f64(0.2), Valence: f64(0.3)}},
			wantErr: ErrMissingAttribute,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComputeAttributeBounds(tc.seeds)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("error: got %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, pair := range [][2]Bounds{
				{got.Danceability, tc.want.Danceability},
				{got.Energy, tc.want.Energy},
				{got.Valence, tc.want.Valence},
			} {
				if pair[0].Min > pair[0].Max {
					t.Fatalf("min > max: %+v", pair[0])
				}
				if math.Abs(pair[0].Min-pair[1].Min) > 1e-9 || math.Abs(pair[0].Max-pair[1].Max) > 1e-9 {
					t.Fatalf("bounds: got %+v, want %+v", got, tc.want)
				}
			}
		})
	}
}

func TestComputeAttributeBounds_MissingAttributeIsContractViolation(t *testing.T) {
	_, err := ComputeAttributeBounds([]SeedRow{{ID: "x"}})
	if !errors.Is(err, ErrContract) {
		t.Fatalf("error kind: got %v, want contract violation", err)
	}
}

func TestNewSeedTrackSet(t *testing.T) {
	main := []SeedRow{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}}
	tests := []struct {
		name       string
		policy     SeedPolicy
		main       []SeedRow
		additional []SeedRow
		wantErr    bool
	}{
		{name: "default policy", policy: DefaultSeedPolicy, main: main, additional: []SeedRow{{ID: "a1"}, {ID: "a2"}}},
		{name: "no additional seeds when policy allows", policy: SeedPolicy{Main: 3}, main: main},
		{name: "too few main", policy: DefaultSeedPolicy, main: main[:2], additional: []SeedRow{{ID: "a1"}, {ID: "a2"}}, wantErr: true},
		{name: "too few additional", policy: DefaultSeedPolicy, main: main, additional: []SeedRow{{ID: "a1"}}, wantErr: true},
		{name: "policy above seed limit", policy: SeedPolicy{Main: 3, Additional: 3}, main: main, additional: []SeedRow{{ID: "a1"}, {ID: "a2"}, {ID: "a3"}}, wantErr: true},
		{name: "duplicate seed", policy: DefaultSeedPolicy, main: main, additional: []SeedRow{{ID: "m1"}, {ID: "a2"}}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			set, err := NewSeedTrackSet(tc.policy, tc.main, tc.additional)
			if tc.wantErr {
				if !errors.Is(err, ErrSeedCount) {
					t.Fatalf("error: got %v, want seed count violation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if set.Len() > MaxSeeds {
				t.Fatalf("seed set holds %d > %d", set.Len(), MaxSeeds)
			}
			if got := set.IDs()[0]; got != "m1" {
				t.Fatalf("first seed: got %s, want m1", got)
			}
		})
	}
}

func TestValidateRecommendationCount(t *testing.T) {
	for _, n := range []int{1, 25, 50} {
		if err := ValidateRecommendationCount(n); err != nil {
			t.Fatalf("count %d: unexpected error %v", n, err)
		}
	}
	for _, n := range []int{-1, 0, 51} {
		if err := ValidateRecommendationCount(n); !errors.Is(err, ErrRecommendCount) {
			t.Fatalf("count %d: got %v, want count violation", n, err)
		}
	}
}
