// Package export writes drill sequences to exercise files: MIDI cue files
// for a DAW, JSON, and plain text lists.
package export

import (
	"errors"
	"path/filepath"
	"strings"
)

// Format represents an exercise file format
type Format string

const (
	FormatMIDI    Format = "midi"
	FormatJSON    Format = "json"
	FormatText    Format = "txt"
	FormatUnknown Format = "unknown"
)

var (
	ErrUnknownFormat = errors.New("export: cannot determine format from filename")
	ErrNoCues        = errors.New("export: no drill markers found")
)

// DetectFormat detects the format of a file based on its extension
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mid", ".midi":
		return FormatMIDI
	case ".json":
		return FormatJSON
	case ".txt":
		return FormatText
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	if len(data) >= 4 && string(data[:4]) == "MThd" {
		return FormatMIDI
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		return FormatJSON
	}
	if trimmed != "" {
		return FormatText
	}
	return FormatUnknown
}

// SupportedFormats lists the writable formats
func SupportedFormats() []Format {
	return []Format{FormatMIDI, FormatJSON, FormatText}
}
