package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/james-see/earquiz/pkg/drill"
)

// Exercise is the JSON form of an exported drill sequence
type Exercise struct {
	Title  string   `json:"title,omitempty"`
	Drills []string `json:"drills"`
}

// Exporter writes drill sequences in any supported format
type Exporter struct {
	midi *MIDIExporter
}

// New creates an Exporter
func New() *Exporter {
	return &Exporter{midi: NewMIDIExporter()}
}

// MIDI returns the MIDI exporter, e.g. to change its tempo
func (e *Exporter) MIDI() *MIDIExporter {
	return e.midi
}

// Encode renders drills in format
func (e *Exporter) Encode(format Format, title string, drills []drill.Drill) ([]byte, error) {
	switch format {
	case FormatMIDI:
		return e.midi.GenerateMIDI(title, drills)
	case FormatJSON:
		ex := Exercise{Title: title, Drills: make([]string, 0, len(drills))}
		for _, d := range drills {
			ex.Drills = append(ex.Drills, d.String())
		}
		return json.MarshalIndent(ex, "", "  ")
	case FormatText:
		var b strings.Builder
		if title != "" {
			b.WriteString("# " + title + "\n")
		}
		b.WriteString(FormatCueSheet(drills))
		return []byte(b.String()), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// Decode reads drills back from data in format
func (e *Exporter) Decode(format Format, data []byte) ([]drill.Drill, error) {
	switch format {
	case FormatMIDI:
		return e.midi.ParseMIDI(data)
	case FormatJSON:
		var ex Exercise
		if err := json.Unmarshal(data, &ex); err != nil {
			return nil, fmt.Errorf("failed to parse exercise: %w", err)
		}
		if len(ex.Drills) == 0 {
			return nil, ErrNoCues
		}
		drills := make([]drill.Drill, 0, len(ex.Drills))
		for _, s := range ex.Drills {
			d, err := drill.ParseDrill(s)
			if err != nil {
				return nil, err
			}
			drills = append(drills, d)
		}
		return drills, nil
	case FormatText:
		return parseCueSheet(string(data))
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// WriteFile writes drills to path in the format implied by its extension
func (e *Exporter) WriteFile(path, title string, drills []drill.Drill) error {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return ErrUnknownFormat
	}
	data, err := e.Encode(format, title, drills)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// ReadFile reads drills from an exercise file
func (e *Exporter) ReadFile(path string) ([]drill.Drill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	format := DetectFormat(path)
	if format == FormatUnknown {
		format = DetectFormatFromContent(data)
	}
	return e.Decode(format, data)
}

// FormatCueSheet renders one numbered drill label per line
func FormatCueSheet(drills []drill.Drill) string {
	var b strings.Builder
	for i, d := range drills {
		b.WriteString(cueLabel(i, d))
		b.WriteString("\n")
	}
	return b.String()
}

// parseCueSheet accepts numbered labels ("3: +1k") and bare drills ("+1k"),
// skipping blank lines and # comments
func parseCueSheet(text string) ([]drill.Drill, error) {
	var drills []drill.Drill
	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var d drill.Drill
		var err error
		if strings.Contains(line, ":") {
			d, err = parseCueLabel(line)
		} else {
			d, err = drill.ParseDrill(line)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+1, err)
		}
		drills = append(drills, d)
	}
	if len(drills) == 0 {
		return nil, ErrNoCues
	}
	return drills, nil
}

var trailingDigits = regexp.MustCompile(`\d+$`)

// UniquePath returns path, or when it exists, the first free variant made by
// incrementing a trailing number in the file name (Exercise1.mid becomes
// Exercise2.mid) or appending 1 when there is none.
func UniquePath(path string) (string, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for {
		_, err := os.Stat(stem + ext)
		if errors.Is(err, os.ErrNotExist) {
			return stem + ext, nil
		}
		if err != nil {
			return "", err
		}
		if loc := trailingDigits.FindStringIndex(stem); loc != nil && loc[0] > len(filepath.Dir(stem)) {
			n, _ := strconv.Atoi(stem[loc[0]:])
			stem = stem[:loc[0]] + strconv.Itoa(n+1)
		} else {
			stem += "1"
		}
	}
}
