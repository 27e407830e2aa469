// Package drill generates the drill sequences presented by the ear-training quiz
package drill

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Band is a frequency band in Hz. The magnitude identifies the band, the sign
// carries the polarity of a drill: positive is a boost, negative is a cut.
type Band float64

// Abs returns the band identity without polarity
func (b Band) Abs() Band {
	return Band(math.Abs(float64(b)))
}

// Boost reports whether the band is boosted
func (b Band) Boost() bool {
	return b > 0
}

// String renders the band with its polarity, e.g. "+1k" or "-250"
func (b Band) String() string {
	sign := "+"
	if b < 0 {
		sign = "-"
	}
	return sign + FormatBand(float64(b.Abs()))
}

// Drill is one training question: a single altered band, or a pair of bands
// altered at the same time in dual band mode
type Drill struct {
	First  Band
	Second Band
	Dual   bool
}

// Single creates a single band drill
func Single(b Band) Drill {
	return Drill{First: b}
}

// Pair creates a dual band drill
func Pair(first, second Band) Drill {
	return Drill{First: first, Second: second, Dual: true}
}

// Bands returns the signed bands altered by the drill
func (d Drill) Bands() []Band {
	if d.Dual {
		return []Band{d.First, d.Second}
	}
	return []Band{d.First}
}

// Matches reports whether guess names the same alterations as d.
// Pair order is not significant.
func (d Drill) Matches(guess Drill) bool {
	if d.Dual != guess.Dual {
		return false
	}
	if !d.Dual {
		return d.First == guess.First
	}
	return (d.First == guess.First && d.Second == guess.Second) ||
		(d.First == guess.Second && d.Second == guess.First)
}

func (d Drill) String() string {
	if d.Dual {
		return d.First.String() + " " + d.Second.String()
	}
	return d.First.String()
}

// ParseDrill parses the String form of a drill ("+1k" or "+100 -4k")
func ParseDrill(s string) (Drill, error) {
	fields := strings.Fields(strings.ReplaceAll(s, ",", " "))
	switch len(fields) {
	case 1:
		b, err := ParseBand(fields[0])
		if err != nil {
			return Drill{}, err
		}
		return Single(b), nil
	case 2:
		first, err := ParseBand(fields[0])
		if err != nil {
			return Drill{}, err
		}
		second, err := ParseBand(fields[1])
		if err != nil {
			return Drill{}, err
		}
		return Pair(first, second), nil
	default:
		return Drill{}, fmt.Errorf("invalid drill %q: expected one or two bands", s)
	}
}

// BoostCut selects which polarities a sequence contains
type BoostCut string

const (
	BoostOnly   BoostCut = "+"
	CutOnly     BoostCut = "-"
	BoostAndCut BoostCut = "+-"
)

// Order is the base traversal order of the bands
type Order string

const (
	OrderAsc     Order = "asc"
	OrderDesc    Order = "desc"
	OrderShuffle Order = "shuffle"
)

// Priority controls how boosts and cuts are interleaved when BoostCut is BoostAndCut
type Priority int

const (
	// PriorityEachBand boosts then cuts each band before moving to the next one
	PriorityEachBand Priority = 1
	// PriorityAllBands boosts every band, then cuts every band
	PriorityAllBands Priority = 2
)

// Config is the immutable input of a generation run. Replace it with
// Generator.SetConfig to change any field.
type Config struct {
	Bands           []Band
	BoostCut        BoostCut
	DualBand        bool
	Order           Order
	Priority        Priority
	DisableAdjacent int
}

// DefaultConfig returns the 10 band octave layout, boosts only, ascending
func DefaultConfig() Config {
	bands, _ := Preset(PresetOctave10)
	return Config{
		Bands:           bands,
		BoostCut:        BoostOnly,
		Order:           OrderAsc,
		Priority:        PriorityEachBand,
		DisableAdjacent: 1,
	}
}

// Validate checks the configuration. Enum values are checked here so that a
// bad configuration fails at generation time rather than producing a
// partial sequence.
func (c Config) Validate() error {
	if len(c.Bands) == 0 {
		return ErrEmptyOptions
	}
	seen := make(map[Band]struct{}, len(c.Bands))
	for _, b := range c.Bands {
		f := float64(b)
		if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: band %v must be a positive frequency", ErrInvalidConfiguration, f)
		}
		if _, dup := seen[b]; dup {
			return fmt.Errorf("%w: duplicate band %s", ErrInvalidConfiguration, FormatBand(f))
		}
		seen[b] = struct{}{}
	}
	switch c.BoostCut {
	case BoostOnly, CutOnly, BoostAndCut:
	default:
		return fmt.Errorf("%w: unknown boost/cut mode %q", ErrInvalidConfiguration, c.BoostCut)
	}
	switch c.Order {
	case OrderAsc, OrderDesc, OrderShuffle:
	default:
		return fmt.Errorf("%w: unknown order %q", ErrInvalidConfiguration, c.Order)
	}
	switch c.Priority {
	case PriorityEachBand, PriorityAllBands:
	default:
		return fmt.Errorf("%w: unknown boost/cut priority %d", ErrInvalidConfiguration, c.Priority)
	}
	if c.DisableAdjacent < 0 {
		return fmt.Errorf("%w: disable adjacent must not be negative, got %d", ErrInvalidConfiguration, c.DisableAdjacent)
	}
	return nil
}

func (c Config) clone() Config {
	c.Bands = slices.Clone(c.Bands)
	return c
}

// ParseBoostCut accepts "+", "-", "+-" and the words boost, cut, both
func ParseBoostCut(s string) (BoostCut, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "+", "boost":
		return BoostOnly, nil
	case "-", "cut":
		return CutOnly, nil
	case "+-", "-+", "both", "boost-cut":
		return BoostAndCut, nil
	}
	return "", fmt.Errorf("%w: unknown boost/cut mode %q", ErrInvalidConfiguration, s)
}

// ParseOrder accepts asc, desc and shuffle
func ParseOrder(s string) (Order, error) {
	switch o := Order(strings.ToLower(strings.TrimSpace(s))); o {
	case OrderAsc, OrderDesc, OrderShuffle:
		return o, nil
	}
	return "", fmt.Errorf("%w: unknown order %q", ErrInvalidConfiguration, s)
}

// ParsePriority accepts 1, 2, "each" and "all"
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "each":
		return PriorityEachBand, nil
	case "all":
		return PriorityAllBands, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err == nil && (Priority(n) == PriorityEachBand || Priority(n) == PriorityAllBands) {
		return Priority(n), nil
	}
	return 0, fmt.Errorf("%w: unknown boost/cut priority %q", ErrInvalidConfiguration, s)
}
