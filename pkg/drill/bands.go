package drill

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Band preset names
const (
	PresetOctave10 = "octave10"
	PresetISO15    = "iso15"
	PresetThird31  = "third31"
)

var presets = map[string][]Band{
	// Standard 10 band graphic EQ, one band per octave
	PresetOctave10: {31.25, 62.5, 125, 250, 500, 1000, 2000, 4000, 8000, 16000},
	// ISO 2/3 octave centres
	PresetISO15: {25, 40, 63, 100, 160, 250, 400, 630, 1000, 1600, 2500, 4000, 6300, 10000, 16000},
	// ISO 1/3 octave centres
	PresetThird31: {
		20, 25, 31.5, 40, 50, 63, 80, 100, 125, 160, 200, 250, 315, 400, 500, 630,
		800, 1000, 1250, 1600, 2000, 2500, 3150, 4000, 5000, 6300, 8000, 10000, 12500, 16000, 20000,
	},
}

// Preset returns a copy of the named band layout
func Preset(name string) ([]Band, error) {
	bands, ok := presets[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return slices.Clone(bands), nil
}

// PresetNames lists the registered presets in sorted order
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// FormatBand renders a frequency the way EQ faceplates label it: 250, 1k, 1.6k
func FormatBand(hz float64) string {
	if math.Abs(hz) >= 1000 {
		return strconv.FormatFloat(hz/1000, 'f', -1, 64) + "k"
	}
	return strconv.FormatFloat(hz, 'f', -1, 64)
}

// ParseBand parses a band label. Accepts plain numbers, a "k" suffix, an
// optional "Hz" unit and a leading sign: "1000", "1k", "+1.6kHz", "-250".
func ParseBand(s string) (Band, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimSuffix(v, "hz")
	v = strings.TrimSpace(v)
	mult := 1.0
	if strings.HasSuffix(v, "k") {
		mult = 1000
		v = strings.TrimSuffix(v, "k")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid band %q", s)
	}
	return Band(f * mult), nil
}

// ParseBands parses a comma separated band list, or a preset name
func ParseBands(s string) ([]Band, error) {
	if bands, err := Preset(strings.TrimSpace(s)); err == nil {
		return bands, nil
	}
	var bands []Band
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		b, err := ParseBand(part)
		if err != nil {
			return nil, err
		}
		bands = append(bands, b)
	}
	return bands, nil
}
