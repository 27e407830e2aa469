package drill

import (
	"fmt"
	"math/rand"
	"slices"
	"time"
)

// Option configures a Generator
type Option func(*Generator)

// WithRand sets the random source used for shuffling and random picks
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) {
		if r != nil {
			g.rng = r
		}
	}
}

// WithSeed seeds the random source, for reproducible sequences
func WithSeed(seed int64) Option {
	return WithRand(rand.New(rand.NewSource(seed)))
}

// Generator produces drill sequences for a Config.
//
// The generated sequence is cached until the configuration or the start
// value changes. Next walks it cyclically; RandomPick samples it and never
// returns the same drill twice in a row unless only one distinct drill
// exists.
//
// A Generator is not safe for concurrent use.
type Generator struct {
	cfg Config
	rng *rand.Rand

	source    []Band
	sequence  []Drill
	generated bool
	pos       int

	last    Drill
	hasLast bool
}

// New creates a generator for cfg. The configuration is validated lazily,
// on the first Generate, Next or RandomPick.
func New(cfg Config, opts ...Option) *Generator {
	g := &Generator{cfg: cfg.clone()}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return g
}

// Config returns a copy of the current configuration
func (g *Generator) Config() Config {
	return g.cfg.clone()
}

// SetConfig replaces the configuration and drops the cached sequence
func (g *Generator) SetConfig(cfg Config) {
	g.cfg = cfg.clone()
	g.invalidate()
}

func (g *Generator) invalidate() {
	g.source = nil
	g.sequence = nil
	g.generated = false
	g.pos = 0
}

// Generate computes the full sequence starting at the first band of the
// configured order, and resets the cyclic position.
func (g *Generator) Generate() ([]Drill, error) {
	return g.generate(nil)
}

// GenerateFrom computes the full sequence starting at abs(start). A negative
// start makes every boost/cut alternation begin with a cut.
func (g *Generator) GenerateFrom(start Band) ([]Drill, error) {
	return g.generate(&start)
}

// Next returns the next drill of the cyclic view over the sequence,
// generating it first if nothing is cached.
func (g *Generator) Next() (Drill, error) {
	if !g.generated {
		if _, err := g.generate(nil); err != nil {
			return Drill{}, err
		}
	}
	return g.advance()
}

// NextFrom regenerates the sequence from start and returns its first drill
func (g *Generator) NextFrom(start Band) (Drill, error) {
	if _, err := g.generate(&start); err != nil {
		return Drill{}, err
	}
	return g.advance()
}

// RandomPick returns a uniformly sampled drill of the sequence, different
// from the previous pick. It does not move the cyclic position.
func (g *Generator) RandomPick() (Drill, error) {
	if !g.generated {
		if _, err := g.generate(nil); err != nil {
			return Drill{}, err
		}
	}
	if len(g.sequence) == 0 {
		return Drill{}, ErrNoDrills
	}

	var pick Drill
	if distinct(g.sequence) == 1 {
		pick = g.sequence[0]
	} else {
		pick = g.sequence[g.rng.Intn(len(g.sequence))]
		for g.hasLast && pick == g.last {
			pick = g.sequence[g.rng.Intn(len(g.sequence))]
		}
	}
	g.last = pick
	g.hasLast = true
	return pick, nil
}

// Sequence returns a copy of the cached sequence, nil if none is cached
func (g *Generator) Sequence() []Drill {
	return slices.Clone(g.sequence)
}

// SourceSequence returns the base band ordering of the last generation
func (g *Generator) SourceSequence() []Band {
	return slices.Clone(g.source)
}

// Position is the index of the drill the next call to Next returns
func (g *Generator) Position() int {
	return g.pos
}

func (g *Generator) advance() (Drill, error) {
	if len(g.sequence) == 0 {
		return Drill{}, ErrNoDrills
	}
	d := g.sequence[g.pos]
	g.pos = (g.pos + 1) % len(g.sequence)
	return d, nil
}

func (g *Generator) generate(start *Band) ([]Drill, error) {
	g.invalidate()
	if err := g.cfg.Validate(); err != nil {
		return nil, err
	}

	source := g.baseOrder()
	pivot := source[0]
	if start != nil {
		pivot = *start
	}
	rotated, err := rotate(source, pivot.Abs())
	if err != nil {
		return nil, err
	}
	sign := Band(1)
	if pivot < 0 {
		sign = -1
	}

	var seq []Drill
	if g.cfg.DualBand {
		seq = g.dualSequence(rotated, sign)
	} else {
		seq = g.singleSequence(rotated, sign)
	}

	g.source = source
	g.sequence = seq
	g.generated = true
	return slices.Clone(seq), nil
}

func (g *Generator) baseOrder() []Band {
	bands := slices.Clone(g.cfg.Bands)
	switch g.cfg.Order {
	case OrderAsc:
		slices.Sort(bands)
	case OrderDesc:
		slices.Sort(bands)
		slices.Reverse(bands)
	case OrderShuffle:
		g.rng.Shuffle(len(bands), func(i, j int) { bands[i], bands[j] = bands[j], bands[i] })
	}
	return bands
}

func rotate(bands []Band, start Band) ([]Band, error) {
	i := slices.Index(bands, start)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFrequency, FormatBand(float64(start)))
	}
	return append(slices.Clone(bands[i:]), bands[:i]...), nil
}

func (g *Generator) singleSequence(bands []Band, k Band) []Drill {
	switch g.cfg.BoostCut {
	case CutOnly:
		seq := make([]Drill, 0, len(bands))
		for _, b := range bands {
			seq = append(seq, Single(-b))
		}
		return seq
	case BoostAndCut:
		seq := make([]Drill, 0, 2*len(bands))
		if g.cfg.Priority == PriorityEachBand {
			for _, b := range bands {
				seq = append(seq, Single(b*k), Single(-b*k))
			}
			return seq
		}
		for _, b := range bands {
			seq = append(seq, Single(b*k))
		}
		for _, b := range bands {
			seq = append(seq, Single(-b*k))
		}
		return seq
	default:
		seq := make([]Drill, 0, len(bands))
		for _, b := range bands {
			seq = append(seq, Single(b))
		}
		return seq
	}
}

// signPatterns lists the four polarity combinations of a pair, starting
// with both bands at polarity k
func signPatterns(k Band) [4][2]Band {
	return [4][2]Band{{k, k}, {k, -k}, {-k, k}, {-k, -k}}
}

func (g *Generator) dualSequence(bands []Band, k Band) []Drill {
	pairs := combinations(bands)
	if g.cfg.Order == OrderShuffle {
		g.rng.Shuffle(len(pairs), func(i, j int) { pairs[i], pairs[j] = pairs[j], pairs[i] })
	}
	if g.cfg.DisableAdjacent > 0 {
		pairs = g.filterAdjacent(pairs)
	}

	switch g.cfg.BoostCut {
	case CutOnly:
		for i, p := range pairs {
			pairs[i] = Pair(-p.First, -p.Second)
		}
		return pairs
	case BoostAndCut:
		patterns := signPatterns(k)
		seq := make([]Drill, 0, 4*len(pairs))
		if g.cfg.Priority == PriorityEachBand {
			for _, p := range pairs {
				for _, s := range patterns {
					seq = append(seq, Pair(p.First*s[0], p.Second*s[1]))
				}
			}
			return seq
		}
		for _, s := range patterns {
			for _, p := range pairs {
				seq = append(seq, Pair(p.First*s[0], p.Second*s[1]))
			}
		}
		return seq
	default:
		return pairs
	}
}

// combinations returns every unordered pair of bands, preserving input order
func combinations(bands []Band) []Drill {
	n := len(bands)
	if n < 2 {
		return nil
	}
	pairs := make([]Drill, 0, n*(n-1)/2)
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, Pair(bands[i], bands[j]))
		}
	}
	return pairs
}

// filterAdjacent drops pairs whose second band lies within DisableAdjacent
// sorted positions of the first. Only the first band's neighbours are checked.
func (g *Generator) filterAdjacent(pairs []Drill) []Drill {
	sorted := slices.Clone(g.cfg.Bands)
	slices.Sort(sorted)
	kept := pairs[:0]
	for _, p := range pairs {
		if slices.Contains(Adjacent(sorted, p.First, g.cfg.DisableAdjacent), p.Second) {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func distinct(seq []Drill) int {
	seen := make(map[Drill]struct{}, len(seq))
	for _, d := range seq {
		seen[d] = struct{}{}
	}
	return len(seen)
}
