// Package quiz runs learn and test sessions on top of a drill generator
package quiz

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/james-see/earquiz/pkg/drill"
)

// Mode selects how drills are drawn from the generator
type Mode string

const (
	// ModeLearn walks the generated sequence in order
	ModeLearn Mode = "learn"
	// ModeTest draws random drills, never the same one twice in a row
	ModeTest Mode = "test"
)

const (
	// DefaultTestQuestions is the question count of a test session when none is set
	DefaultTestQuestions = 10
	// DefaultPassRatio is the share of correct answers needed to pass a test
	DefaultPassRatio = 0.8
)

var (
	ErrUnknownMode     = errors.New("quiz: unknown mode")
	ErrNoActiveDrill   = errors.New("quiz: no drill to answer")
	ErrAlreadyAnswered = errors.New("quiz: drill already answered")
	ErrSessionComplete = errors.New("quiz: session complete")
)

// ParseMode accepts "learn" and "test"
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeLearn, ModeTest:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Options configures a Session
type Options struct {
	Mode Mode
	// Questions limits the session length. Zero means unlimited in learn
	// mode and DefaultTestQuestions in test mode.
	Questions int
	// PassRatio is the share of correct answers needed to pass. Zero means DefaultPassRatio.
	PassRatio float64
}

// Attempt is one answered drill
type Attempt struct {
	Drill   drill.Drill
	Guess   drill.Drill
	Correct bool
}

// Score summarises a session
type Score struct {
	Asked    int
	Answered int
	Correct  int
	Percent  float64
	Passed   bool
	Complete bool
}

// Session is a sequence of drills answered by the learner.
// It is not safe for concurrent use.
type Session struct {
	gen      *drill.Generator
	opts     Options
	current  drill.Drill
	active   bool
	answered bool
	asked    int
	attempts []Attempt
}

// NewSession creates a session drawing drills from gen
func NewSession(gen *drill.Generator, opts Options) (*Session, error) {
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	if opts.Questions < 0 {
		return nil, fmt.Errorf("quiz: question count must not be negative, got %d", opts.Questions)
	}
	if opts.Questions == 0 && opts.Mode == ModeTest {
		opts.Questions = DefaultTestQuestions
	}
	if opts.PassRatio <= 0 || opts.PassRatio > 1 {
		opts.PassRatio = DefaultPassRatio
	}
	return &Session{gen: gen, opts: opts}, nil
}

// Mode returns the session mode
func (s *Session) Mode() Mode {
	return s.opts.Mode
}

// Options returns the effective session options
func (s *Session) Options() Options {
	return s.opts
}

// Generator returns the underlying generator
func (s *Session) Generator() *drill.Generator {
	return s.gen
}

// NextDrill presents the next drill. An unanswered current drill is dropped.
func (s *Session) NextDrill() (drill.Drill, error) {
	if s.complete() {
		return drill.Drill{}, ErrSessionComplete
	}

	var d drill.Drill
	var err error
	if s.opts.Mode == ModeTest {
		d, err = s.gen.RandomPick()
	} else {
		d, err = s.gen.Next()
	}
	if err != nil {
		return drill.Drill{}, err
	}

	s.current = d
	s.active = true
	s.answered = false
	s.asked++
	return d, nil
}

// Current returns the drill being asked, if any
func (s *Session) Current() (drill.Drill, bool) {
	return s.current, s.active
}

// Answer scores guess against the current drill
func (s *Session) Answer(guess drill.Drill) (Attempt, error) {
	if !s.active {
		return Attempt{}, ErrNoActiveDrill
	}
	if s.answered {
		return Attempt{}, ErrAlreadyAnswered
	}
	a := Attempt{Drill: s.current, Guess: guess, Correct: s.current.Matches(guess)}
	s.attempts = append(s.attempts, a)
	s.answered = true
	return a, nil
}

// Attempts returns the answered drills in order
func (s *Session) Attempts() []Attempt {
	return slices.Clone(s.attempts)
}

// Score returns the running score
func (s *Session) Score() Score {
	sc := Score{Asked: s.asked, Answered: len(s.attempts), Complete: s.complete()}
	for _, a := range s.attempts {
		if a.Correct {
			sc.Correct++
		}
	}
	if sc.Answered > 0 {
		sc.Percent = 100 * float64(sc.Correct) / float64(sc.Answered)
	}
	sc.Passed = sc.Complete && float64(sc.Correct) >= s.opts.PassRatio*float64(sc.Answered)
	return sc
}

// Restart clears the score and restarts the drill cycle
func (s *Session) Restart() error {
	s.current = drill.Drill{}
	s.active = false
	s.answered = false
	s.asked = 0
	s.attempts = nil
	_, err := s.gen.Generate()
	return err
}

// Choices lists the distinct drills of the sequence, the answers a learner
// picks from. Bands ascend; a boost sorts before the cut of the same band.
func (s *Session) Choices() ([]drill.Drill, error) {
	seq := s.gen.Sequence()
	if seq == nil {
		var err error
		if seq, err = s.gen.Generate(); err != nil {
			return nil, err
		}
	}
	seen := make(map[drill.Drill]struct{}, len(seq))
	choices := make([]drill.Drill, 0, len(seq))
	for _, d := range seq {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		choices = append(choices, d)
	}
	slices.SortFunc(choices, compareDrills)
	return choices, nil
}

func compareDrills(a, b drill.Drill) int {
	if c := compareBands(a.First, b.First); c != 0 {
		return c
	}
	return compareBands(a.Second, b.Second)
}

func compareBands(a, b drill.Band) int {
	if c := cmp.Compare(a.Abs(), b.Abs()); c != 0 {
		return c
	}
	// boost first
	return cmp.Compare(b, a)
}

func (s *Session) complete() bool {
	return s.opts.Questions > 0 && len(s.attempts) >= s.opts.Questions
}
