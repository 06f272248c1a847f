package domain

// MaxSeeds is the catalog's hard limit on seed tracks per recommendation call.
const MaxSeeds = 5

// Recommendation count limits per call.
const (
	MinRecommendations = 1
	MaxRecommendations = 50
)

// SeedRow is a candidate seed. Attributes are nil when unknown.
type SeedRow struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Danceability *float64 `json:"danceability,omitempty"`
	Energy       *float64 `json:"energy,omitempty"`
	Valence      *float64 `json:"valence,omitempty"`
}

// SeedPolicy fixes how many main and additional seeds a round uses. Main
// seeds form the fixed core of a session; additional seeds rotate.
type SeedPolicy struct {
	Main       int `json:"main"`
	Additional int `json:"additional"`
}

// DefaultSeedPolicy is three main seeds plus two additional ones.
var DefaultSeedPolicy = SeedPolicy{Main: 3, Additional: 2}

// Validate checks the policy against the seed limit.
func (p SeedPolicy) Validate() error {
	if p.Main < 1 || p.Additional < 0 || p.Main+p.Additional > MaxSeeds {
		return violation(ErrSeedCount, "policy %d+%d must be at least 1 main and at most %d total", p.Main, p.Additional, MaxSeeds)
	}
	return nil
}

// SeedTrackSet is the ordered seed selection of one round.
type SeedTrackSet struct {
	Main       []SeedRow `json:"main"`
	Additional []SeedRow `json:"additional"`
}

// NewSeedTrackSet enforces the policy counts exactly.
func NewSeedTrackSet(p SeedPolicy, main, additional []SeedRow) (SeedTrackSet, error) {
	if err := p.Validate(); err != nil {
		return SeedTrackSet{}, err
	}
	if len(main) != p.Main {
		return SeedTrackSet{}, violation(ErrSeedCount, "got %d main seeds, want %d", len(main), p.Main)
	}
	if len(additional) != p.Additional {
		return SeedTrackSet{}, violation(ErrSeedCount, "got %d additional seeds, want %d", len(additional), p.Additional)
	}
	seen := make(map[string]struct{}, len(main)+len(additional))
	for _, s := range append(append([]SeedRow{}, main...), additional...) {
		if s.ID == "" {
			return SeedTrackSet{}, missing("seed.id", "seed without id")
		}
		if _, dup := seen[s.ID]; dup {
			return SeedTrackSet{}, violation(ErrSeedCount, "seed %s selected twice", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return SeedTrackSet{Main: main, Additional: additional}, nil
}

// Rows returns main seeds followed by additional seeds.
func (s SeedTrackSet) Rows() []SeedRow {
	rows := make([]SeedRow, 0, len(s.Main)+len(s.Additional))
	rows = append(rows, s.Main...)
	return append(rows, s.Additional...)
}

// IDs returns the seed track ids in order.
func (s SeedTrackSet) IDs() []string {
	rows := s.Rows()
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}

// Len is the total seed count.
func (s SeedTrackSet) Len() int {
	return len(s.Main) + len(s.Additional)
}

// Bounds is a closed numeric range.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (b Bounds) extend(v float64) Bounds {
	if v < b.Min {
		b.Min = v
	}
	if v > b.Max {
		b.Max = v
	}
	return b
}

// RecommendationAttributes are the target ranges sent with a
// recommendation request.
type RecommendationAttributes struct {
	Danceability Bounds `json:"danceability"`
	Energy       Bounds `json:"energy"`
	Valence      Bounds `json:"valence"`
}

// ComputeAttributeBounds returns the elementwise min and max of
// danceability, energy and valence across seeds.
func ComputeAttributeBounds(seeds []SeedRow) (RecommendationAttributes, error) {
	if len(seeds) == 0 {
		return RecommendationAttributes{}, violation(ErrSeedCount, "no seeds")
	}

	var attrs RecommendationAttributes
	for i, s := range seeds {
		switch {
		case s.Danceability == nil:
			return RecommendationAttributes{}, missing(ErrMissingAttribute.Field, "seed %d (%s) has no danceability", i, s.ID)
		case s.Energy == nil:
			return RecommendationAttributes{}, missing(ErrMissingAttribute.Field, "seed %d (%s) has no energy", i, s.ID)
		case s.Valence == nil:
			return RecommendationAttributes{}, missing(ErrMissingAttribute.Field, "seed %d (%s) has no valence", i, s.ID)
		}

		if i == 0 {
			attrs = RecommendationAttributes{
				Danceability: Bounds{Min: *s.Danceability, Max: *s.Danceability},
				Energy:       Bounds{Min: *s.Energy, Max: *s.Energy},
				Valence:      Bounds{Min: *s.Valence, Max: *s.Valence},
			}
			continue
		}
		attrs.Danceability = attrs.Danceability.extend(*s.Danceability)
		attrs.Energy = attrs.Energy.extend(*s.Energy)
		attrs.Valence = attrs.Valence.extend(*s.Valence)
	}
	return attrs, nil
}

// ValidateRecommendationCount checks a requested result count.
func ValidateRecommendationCount(n int) error {
	if n < MinRecommendations || n > MaxRecommendations {
		return violation(ErrRecommendCount, "count %d outside %d-%d", n, MinRecommendations, MaxRecommendations)
	}
	return nil
}
