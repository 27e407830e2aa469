package drill

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singles(bands ...Band) []Drill {
	out := make([]Drill, 0, len(bands))
	for _, b := range bands {
		out = append(out, Single(b))
	}
	return out
}

func testConfig(bands ...Band) Config {
	return Config{
		Bands:    bands,
		BoostCut: BoostOnly,
		Order:    OrderAsc,
		Priority: PriorityEachBand,
	}
}

func TestGenerateAscendingAndCycle(t *testing.T) {
	g := New(testConfig(1000, 100, 10000), WithSeed(1))

	seq, err := g.Generate()
	require.NoError(t, err)
	assert.Equal(t, singles(100, 1000, 10000), seq)

	var got []Drill
	for i := 0; i < 4; i++ {
		d, err := g.Next()
		require.NoError(t, err)
		got = append(got, d)
	}
	assert.Equal(t, singles(100, 1000, 10000, 100), got)
}

func TestNextGeneratesLazily(t *testing.T) {
	g := New(testConfig(100, 1000, 10000), WithSeed(1))
	assert.Nil(t, g.Sequence())

	d, err := g.Next()
	require.NoError(t, err)
	assert.Equal(t, Single(100), d)
	assert.Len(t, g.Sequence(), 3)
	assert.Equal(t, 1, g.Position())
}

func TestGenerateOrders(t *testing.T) {
	bands := []Band{1000, 100, 4000, 250}

	tests := []struct {
		name  string
		order Order
		want  []Band
	}{
		{"asc", OrderAsc, []Band{100, 250, 1000, 4000}},
		{"desc", OrderDesc, []Band{4000, 1000, 250, 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(bands...)
			cfg.Order = tt.order
			g := New(cfg, WithSeed(1))
			seq, err := g.Generate()
			require.NoError(t, err)
			assert.Equal(t, singles(tt.want...), seq)
			assert.Equal(t, tt.want, g.SourceSequence())
		})
	}
}

func TestGenerateShuffleKeepsMultiset(t *testing.T) {
	cfg := testConfig(31.25, 62.5, 125, 250, 500, 1000, 2000, 4000, 8000, 16000)
	cfg.Order = OrderShuffle
	cfg.BoostCut = BoostAndCut
	g := New(cfg, WithSeed(42))

	first, err := g.Generate()
	require.NoError(t, err)
	second, err := g.Generate()
	require.NoError(t, err)

	assert.ElementsMatch(t, first, second)
	assert.Len(t, first, 20)
}

func TestGenerateIsIdempotent(t *testing.T) {
	cfg := testConfig(100, 200, 400, 800)
	cfg.DualBand = true
	cfg.BoostCut = BoostAndCut
	g := New(cfg, WithSeed(3))

	first, err := g.GenerateFrom(400)
	require.NoError(t, err)
	second, err := g.GenerateFrom(400)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerateFromRotates(t *testing.T) {
	g := New(testConfig(100, 1000, 10000), WithSeed(1))

	seq, err := g.GenerateFrom(1000)
	require.NoError(t, err)
	assert.Equal(t, singles(1000, 10000, 100), seq)

	// the sign of the start value only matters for boost/cut alternation
	seq, err = g.GenerateFrom(-10000)
	require.NoError(t, err)
	assert.Equal(t, singles(10000, 100, 1000), seq)
}

func TestNextFromRestartsCycle(t *testing.T) {
	g := New(testConfig(100, 1000, 10000), WithSeed(1))

	_, err := g.Next()
	require.NoError(t, err)
	_, err = g.Next()
	require.NoError(t, err)

	d, err := g.NextFrom(100)
	require.NoError(t, err)
	assert.Equal(t, Single(100), d)
	d, err = g.Next()
	require.NoError(t, err)
	assert.Equal(t, Single(1000), d)
}

func TestGenerateSinglePolarity(t *testing.T) {
	tests := []struct {
		name     string
		boostCut BoostCut
		priority Priority
		start    Band
		want     []Drill
	}{
		{"cut only", CutOnly, PriorityEachBand, 100, singles(-100, -1000)},
		{"priority 1", BoostAndCut, PriorityEachBand, 100, singles(100, -100, 1000, -1000)},
		{"priority 2", BoostAndCut, PriorityAllBands, 100, singles(100, 1000, -100, -1000)},
		{"priority 1 cut first", BoostAndCut, PriorityEachBand, -100, singles(-100, 100, -1000, 1000)},
		{"priority 2 cut first", BoostAndCut, PriorityAllBands, -1000, singles(-1000, -100, 1000, 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(100, 1000)
			cfg.BoostCut = tt.boostCut
			cfg.Priority = tt.priority
			g := New(cfg, WithSeed(1))

			seq, err := g.GenerateFrom(tt.start)
			require.NoError(t, err)
			assert.Equal(t, tt.want, seq)
		})
	}
}

func TestPrioritiesArePermutations(t *testing.T) {
	each := testConfig(100, 1000, 10000)
	each.BoostCut = BoostAndCut
	all := each
	all.Priority = PriorityAllBands

	a, err := New(each, WithSeed(1)).Generate()
	require.NoError(t, err)
	b, err := New(all, WithSeed(1)).Generate()
	require.NoError(t, err)

	assert.ElementsMatch(t, a, b)
	assert.NotEqual(t, a, b)
}

func TestDualBandCombinations(t *testing.T) {
	cfg := testConfig(100, 200, 400, 800, 1600)
	cfg.DualBand = true
	g := New(cfg, WithSeed(1))

	seq, err := g.Generate()
	require.NoError(t, err)
	assert.Len(t, seq, 10)
	assert.Equal(t, Pair(100, 200), seq[0])
	assert.Equal(t, Pair(800, 1600), seq[len(seq)-1])
	for _, d := range seq {
		assert.True(t, d.Dual)
		assert.NotEqual(t, d.First, d.Second)
	}
}

func TestDualBandAdjacencyFilter(t *testing.T) {
	tests := []struct {
		name  string
		k     int
		start Band
		want  []Drill
	}{
		{
			name: "one neighbour",
			k:    1,
			want: []Drill{Pair(100, 400), Pair(100, 800), Pair(200, 800)},
		},
		{
			name: "two neighbours",
			k:    2,
			want: []Drill{Pair(100, 800)},
		},
		{
			name:  "rotated start",
			k:     1,
			start: 400,
			want:  []Drill{Pair(400, 100), Pair(800, 100), Pair(800, 200)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(100, 200, 400, 800)
			cfg.DualBand = true
			cfg.DisableAdjacent = tt.k
			g := New(cfg, WithSeed(1))

			var seq []Drill
			var err error
			if tt.start != 0 {
				seq, err = g.GenerateFrom(tt.start)
			} else {
				seq, err = g.Generate()
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, seq)
		})
	}
}

func TestDualBandFilterProperty(t *testing.T) {
	bands, err := Preset(PresetISO15)
	require.NoError(t, err)
	sorted := slices.Clone(bands)
	slices.Sort(sorted)

	for k := 0; k <= 3; k++ {
		cfg := testConfig(bands...)
		cfg.DualBand = true
		cfg.Order = OrderShuffle
		cfg.DisableAdjacent = k
		seq, err := New(cfg, WithSeed(int64(k))).Generate()
		require.NoError(t, err)

		for _, d := range seq {
			i := slices.Index(sorted, d.First)
			j := slices.Index(sorted, d.Second)
			require.GreaterOrEqual(t, i, 0)
			require.GreaterOrEqual(t, j, 0)
			if k > 0 {
				dist := max(i-j, j-i)
				assert.Greater(t, dist, k, "pair %s kept with k=%d", d, k)
			}
		}
		if k == 0 {
			assert.Len(t, seq, 15*14/2)
		}
	}
}

func TestDualBandPolarity(t *testing.T) {
	t.Run("cut only", func(t *testing.T) {
		cfg := testConfig(100, 1000)
		cfg.DualBand = true
		cfg.BoostCut = CutOnly
		seq, err := New(cfg, WithSeed(1)).Generate()
		require.NoError(t, err)
		assert.Equal(t, []Drill{Pair(-100, -1000)}, seq)
	})

	t.Run("priority 1", func(t *testing.T) {
		cfg := testConfig(100, 1000, 10000)
		cfg.DualBand = true
		cfg.BoostCut = BoostAndCut
		seq, err := New(cfg, WithSeed(1)).Generate()
		require.NoError(t, err)
		require.Len(t, seq, 12)
		assert.Equal(t, []Drill{
			Pair(100, 1000), Pair(100, -1000), Pair(-100, 1000), Pair(-100, -1000),
		}, seq[:4])
		assert.Equal(t, Pair(1000, 10000), seq[8])
	})

	t.Run("priority 1 cut first", func(t *testing.T) {
		cfg := testConfig(100, 1000)
		cfg.DualBand = true
		cfg.BoostCut = BoostAndCut
		seq, err := New(cfg, WithSeed(1)).GenerateFrom(-100)
		require.NoError(t, err)
		assert.Equal(t, []Drill{
			Pair(-100, -1000), Pair(-100, 1000), Pair(100, -1000), Pair(100, 1000),
		}, seq)
	})

	t.Run("priority 2", func(t *testing.T) {
		cfg := testConfig(100, 1000, 10000)
		cfg.DualBand = true
		cfg.BoostCut = BoostAndCut
		cfg.Priority = PriorityAllBands
		seq, err := New(cfg, WithSeed(1)).Generate()
		require.NoError(t, err)
		require.Len(t, seq, 12)
		assert.Equal(t, []Drill{
			Pair(100, 1000), Pair(100, 10000), Pair(1000, 10000),
			Pair(100, -1000), Pair(100, -10000), Pair(1000, -10000),
		}, seq[:6])
		assert.Equal(t, Pair(-1000, -10000), seq[11])
	})
}

func TestCycleWrapsInOrder(t *testing.T) {
	cfg := testConfig(100, 250, 1000, 4000)
	cfg.BoostCut = BoostAndCut
	g := New(cfg, WithSeed(1))

	seq, err := g.Generate()
	require.NoError(t, err)
	n := len(seq)

	var got []Drill
	for i := 0; i < 2*n+3; i++ {
		d, err := g.Next()
		require.NoError(t, err)
		got = append(got, d)
	}
	for m := 0; m < n+3; m++ {
		assert.Equal(t, got[m], got[m+n], "call %d", m)
	}
}

func TestRandomPickNeverRepeats(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"two bands", testConfig(100, 1000)},
		{"boost and cut", func() Config {
			c := testConfig(100, 1000, 10000)
			c.BoostCut = BoostAndCut
			return c
		}()},
		{"dual", func() Config {
			c := testConfig(100, 1000, 10000)
			c.DualBand = true
			return c
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(tt.cfg, WithSeed(7))
			prev, err := g.RandomPick()
			require.NoError(t, err)
			for i := 0; i < 200; i++ {
				d, err := g.RandomPick()
				require.NoError(t, err)
				require.NotEqual(t, prev, d)
				prev = d
			}
		})
	}
}

func TestRandomPickSingleOption(t *testing.T) {
	g := New(testConfig(1000), WithSeed(1))
	for i := 0; i < 3; i++ {
		d, err := g.RandomPick()
		require.NoError(t, err)
		assert.Equal(t, Single(1000), d)
	}
}

func TestRandomPickDoesNotMoveCycle(t *testing.T) {
	g := New(testConfig(100, 1000, 10000), WithSeed(1))
	d, err := g.Next()
	require.NoError(t, err)
	assert.Equal(t, Single(100), d)

	for i := 0; i < 5; i++ {
		_, err := g.RandomPick()
		require.NoError(t, err)
	}
	d, err = g.Next()
	require.NoError(t, err)
	assert.Equal(t, Single(1000), d)
}

func TestSetConfigInvalidates(t *testing.T) {
	g := New(testConfig(100, 1000, 10000), WithSeed(1))
	_, err := g.Next()
	require.NoError(t, err)

	cfg := g.Config()
	cfg.Order = OrderDesc
	g.SetConfig(cfg)
	assert.Nil(t, g.Sequence())
	assert.Equal(t, 0, g.Position())

	d, err := g.Next()
	require.NoError(t, err)
	assert.Equal(t, Single(10000), d)
}

func TestConfigIsCopied(t *testing.T) {
	bands := []Band{100, 1000}
	g := New(testConfig(bands...), WithSeed(1))
	bands[0] = 5

	seq, err := g.Generate()
	require.NoError(t, err)
	assert.Equal(t, singles(100, 1000), seq)
}

func TestGenerateErrors(t *testing.T) {
	t.Run("empty options", func(t *testing.T) {
		g := New(testConfig(), WithSeed(1))
		_, err := g.Generate()
		assert.ErrorIs(t, err, ErrEmptyOptions)
		_, err = g.Next()
		assert.ErrorIs(t, err, ErrEmptyOptions)
		_, err = g.RandomPick()
		assert.ErrorIs(t, err, ErrEmptyOptions)
	})

	t.Run("invalid frequency", func(t *testing.T) {
		g := New(testConfig(100, 1000), WithSeed(1))
		_, err := g.GenerateFrom(500)
		assert.ErrorIs(t, err, ErrInvalidFrequency)
		_, err = g.NextFrom(-2000)
		assert.ErrorIs(t, err, ErrInvalidFrequency)
		assert.Nil(t, g.Sequence())
	})

	t.Run("no drills", func(t *testing.T) {
		cfg := testConfig(1000)
		cfg.DualBand = true
		g := New(cfg, WithSeed(1))
		seq, err := g.Generate()
		require.NoError(t, err)
		assert.Empty(t, seq)
		_, err = g.Next()
		assert.ErrorIs(t, err, ErrNoDrills)
		_, err = g.RandomPick()
		assert.ErrorIs(t, err, ErrNoDrills)
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		err    error
	}{
		{"valid", func(*Config) {}, nil},
		{"empty", func(c *Config) { c.Bands = nil }, ErrEmptyOptions},
		{"duplicate", func(c *Config) { c.Bands = []Band{100, 100} }, ErrInvalidConfiguration},
		{"negative band", func(c *Config) { c.Bands = []Band{-100, 1000} }, ErrInvalidConfiguration},
		{"boost cut", func(c *Config) { c.BoostCut = "x" }, ErrInvalidConfiguration},
		{"order", func(c *Config) { c.Order = "random" }, ErrInvalidConfiguration},
		{"priority", func(c *Config) { c.Priority = 3 }, ErrInvalidConfiguration},
		{"adjacent", func(c *Config) { c.DisableAdjacent = -1 }, ErrInvalidConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestWithRandNilKeepsDefault(t *testing.T) {
	g := New(testConfig(100, 1000), WithRand(nil))
	_, err := g.RandomPick()
	assert.NoError(t, err)
}
