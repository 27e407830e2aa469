package drill

import "errors"

var (
	// ErrEmptyOptions is returned when the configuration has no bands
	ErrEmptyOptions = errors.New("drill: no frequency options")

	// ErrInvalidFrequency is returned when a start value is not one of the configured bands
	ErrInvalidFrequency = errors.New("drill: frequency not in options")

	// ErrInvalidConfiguration is returned for out-of-domain configuration values
	ErrInvalidConfiguration = errors.New("drill: invalid configuration")

	// ErrNoDrills is returned when a valid configuration yields an empty sequence,
	// e.g. dual band mode with one band or adjacency filtering that drops every pair
	ErrNoDrills = errors.New("drill: configuration yields no drills")

	// ErrUnknownPreset is returned by Preset for an unregistered name
	ErrUnknownPreset = errors.New("drill: unknown band preset")
)
