package export

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/james-see/earquiz/pkg/drill"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Cue velocities. A boost plays loud, a cut plays soft.
const (
	BoostVelocity uint8 = 127
	CutVelocity   uint8 = 48
)

// MIDIExporter renders drills as a MIDI cue file: one bar per drill, a
// marker carrying the drill label, and one note per altered band at the
// pitch nearest to the band frequency.
type MIDIExporter struct {
	ticksPerQuarter uint16
	tempo           float64
}

// NewMIDIExporter creates an exporter at 480 ticks per quarter and 120 BPM
func NewMIDIExporter() *MIDIExporter {
	return &MIDIExporter{
		ticksPerQuarter: 480,
		tempo:           120.0,
	}
}

// SetTempo sets the tempo in BPM. Non-positive values are ignored.
func (m *MIDIExporter) SetTempo(bpm float64) {
	if bpm > 0 {
		m.tempo = bpm
	}
}

// NoteForBand returns the MIDI note closest to the band frequency
func NoteForBand(b drill.Band) uint8 {
	hz := float64(b.Abs())
	if hz <= 0 {
		return 0
	}
	n := math.Round(69 + 12*math.Log2(hz/440))
	return uint8(max(0, min(127, n)))
}

// GenerateMIDI creates MIDI data from a drill sequence
func (m *MIDIExporter) GenerateMIDI(title string, drills []drill.Drill) ([]byte, error) {
	if len(drills) == 0 {
		return nil, errors.New("no drills to export")
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(m.ticksPerQuarter)

	var track smf.Track

	if title != "" {
		track.Add(0, smf.MetaTrackSequenceName(title))
	}

	track.Add(0, smf.MetaTempo(m.tempo))
	track.Add(0, smf.MetaMeter(4, 4))

	ticksPerBar := uint32(m.ticksPerQuarter) * 4
	noteLength := (ticksPerBar * 3) / 4
	channel := uint8(0)
	var currentTick uint32

	for i, d := range drills {
		barTick := uint32(i) * ticksPerBar
		track.Add(barTick-currentTick, smf.MetaMarker(cueLabel(i, d)))
		currentTick = barTick

		bands := d.Bands()
		for _, b := range bands {
			velocity := CutVelocity
			if b.Boost() {
				velocity = BoostVelocity
			}
			track.Add(0, midi.NoteOn(channel, NoteForBand(b), velocity))
		}
		for j, b := range bands {
			var delta uint32
			if j == 0 {
				delta = noteLength
			}
			track.Add(delta, midi.NoteOff(channel, NoteForBand(b)))
		}
		currentTick += noteLength
	}

	// pad the last drill to a full bar
	endTick := uint32(len(drills)) * ticksPerBar
	track.Close(endTick - currentTick)

	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseMIDI reads the drill markers of a cue file back into drills
func (m *MIDIExporter) ParseMIDI(data []byte) ([]drill.Drill, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	var drills []drill.Drill
	for _, track := range s.Tracks {
		for _, ev := range track {
			var text string
			if !ev.Message.GetMetaMarker(&text) {
				continue
			}
			d, err := parseCueLabel(text)
			if err != nil {
				return nil, err
			}
			drills = append(drills, d)
		}
	}
	if len(drills) == 0 {
		return nil, ErrNoCues
	}
	return drills, nil
}

func cueLabel(i int, d drill.Drill) string {
	return fmt.Sprintf("%d: %s", i+1, d)
}

func parseCueLabel(label string) (drill.Drill, error) {
	_, body, found := strings.Cut(label, ": ")
	if !found {
		return drill.Drill{}, fmt.Errorf("invalid cue marker %q", label)
	}
	return drill.ParseDrill(body)
}
