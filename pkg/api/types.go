package api

import (
	"fmt"

	"github.com/james-see/earquiz/internal/database"
	"github.com/james-see/earquiz/pkg/drill"
	"github.com/james-see/earquiz/pkg/quiz"
)

// ConfigRequest overrides the server's default drill configuration.
// Omitted fields keep their current value.
type ConfigRequest struct {
	Preset          string   `json:"preset,omitempty"`
	Bands           []string `json:"bands,omitempty"`
	BoostCut        string   `json:"boost_cut,omitempty"`
	DualBand        *bool    `json:"dual_band,omitempty"`
	Order           string   `json:"order,omitempty"`
	Priority        *int     `json:"priority,omitempty"`
	DisableAdjacent *int     `json:"disable_adjacent,omitempty"`
}

// Apply merges the request over base
func (r ConfigRequest) Apply(base drill.Config) (drill.Config, error) {
	cfg := base
	if r.Preset != "" {
		bands, err := drill.Preset(r.Preset)
		if err != nil {
			return drill.Config{}, err
		}
		cfg.Bands = bands
	}
	if r.Bands != nil {
		bands := make([]drill.Band, 0, len(r.Bands))
		for _, s := range r.Bands {
			b, err := drill.ParseBand(s)
			if err != nil {
				return drill.Config{}, fmt.Errorf("%w: %v", drill.ErrInvalidConfiguration, err)
			}
			bands = append(bands, b)
		}
		cfg.Bands = bands
	}
	if r.BoostCut != "" {
		bc, err := drill.ParseBoostCut(r.BoostCut)
		if err != nil {
			return drill.Config{}, err
		}
		cfg.BoostCut = bc
	}
	if r.DualBand != nil {
		cfg.DualBand = *r.DualBand
	}
	if r.Order != "" {
		o, err := drill.ParseOrder(r.Order)
		if err != nil {
			return drill.Config{}, err
		}
		cfg.Order = o
	}
	if r.Priority != nil {
		cfg.Priority = drill.Priority(*r.Priority)
	}
	if r.DisableAdjacent != nil {
		cfg.DisableAdjacent = *r.DisableAdjacent
	}
	return cfg, nil
}

// SequenceRequest asks for a stateless sequence
type SequenceRequest struct {
	ConfigRequest
	Start string `json:"start,omitempty"`
}

// GenerateRequest regenerates a session sequence
type GenerateRequest struct {
	Start string `json:"start,omitempty"`
}

// SessionRequest creates a quiz session
type SessionRequest struct {
	Mode      string        `json:"mode"`
	Questions int           `json:"questions,omitempty"`
	PassRatio float64       `json:"pass_ratio,omitempty"`
	Config    ConfigRequest `json:"config"`
}

// AnswerRequest answers the current drill, e.g. "+1k" or "+100 -4k"
type AnswerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

// DrillResponse is the wire form of a drill
type DrillResponse struct {
	Label string    `json:"label"`
	Bands []float64 `json:"bands"`
	Dual  bool      `json:"dual"`
}

func toDrill(d drill.Drill) DrillResponse {
	return DrillResponse{Label: d.String(), Bands: bandsToHz(d.Bands()), Dual: d.Dual}
}

func toDrills(ds []drill.Drill) []DrillResponse {
	out := make([]DrillResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, toDrill(d))
	}
	return out
}

// ConfigResponse is the wire form of a drill configuration
type ConfigResponse struct {
	Bands           []float64 `json:"bands"`
	BoostCut        string    `json:"boost_cut"`
	DualBand        bool      `json:"dual_band"`
	Order           string    `json:"order"`
	Priority        int       `json:"priority"`
	DisableAdjacent int       `json:"disable_adjacent"`
}

func toConfig(c drill.Config) ConfigResponse {
	return ConfigResponse{
		Bands:           bandsToHz(c.Bands),
		BoostCut:        string(c.BoostCut),
		DualBand:        c.DualBand,
		Order:           string(c.Order),
		Priority:        int(c.Priority),
		DisableAdjacent: c.DisableAdjacent,
	}
}

// ScoreResponse is the wire form of a quiz score
type ScoreResponse struct {
	Asked    int     `json:"asked"`
	Answered int     `json:"answered"`
	Correct  int     `json:"correct"`
	Percent  float64 `json:"percent"`
	Passed   bool    `json:"passed"`
	Complete bool    `json:"complete"`
}

func toScore(s quiz.Score) ScoreResponse {
	return ScoreResponse(s)
}

// SessionResponse describes a quiz session
type SessionResponse struct {
	ID        string         `json:"id"`
	Mode      string         `json:"mode"`
	Questions int            `json:"questions"`
	Config    ConfigResponse `json:"config"`
	Current   *DrillResponse `json:"current,omitempty"`
	Score     ScoreResponse  `json:"score"`
}

// AnswerResponse is the outcome of an answer
type AnswerResponse struct {
	Correct bool          `json:"correct"`
	Drill   DrillResponse `json:"drill"`
	Guess   DrillResponse `json:"guess"`
	Score   ScoreResponse `json:"score"`
}

// ResultsResponse lists stored results
type ResultsResponse struct {
	Results []database.Result `json:"results"`
}
