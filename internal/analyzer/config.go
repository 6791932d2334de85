package analyzer

import (
	"fmt"
	"math"
)

// Scoring profiles.
const (
	ProfileGEO       = "geo"
	ProfileAuthority = "authority"
)

// Config holds the scoring parameters. It is copied into the Analyzer at
// construction and never mutated afterwards.
type Config struct {
	MinWordCount         int     `json:"min_word_count" yaml:"min_word_count"`
	TargetKeywordDensity float64 `json:"target_keyword_density" yaml:"target_keyword_density"`
	OptimalDensityMin    float64 `json:"optimal_density_min" yaml:"optimal_density_min"`
	OptimalDensityMax    float64 `json:"optimal_density_max" yaml:"optimal_density_max"`
	GeoWeight            float64 `json:"geo_weight" yaml:"geo_weight"`
	ReadabilityWeight    float64 `json:"readability_weight" yaml:"readability_weight"`
	StructureWeight      float64 `json:"structure_weight" yaml:"structure_weight"`
	WordCountWeight      float64 `json:"word_count_weight" yaml:"word_count_weight"`
	MaxSentenceLength    int     `json:"max_sentence_length" yaml:"max_sentence_length"`
	EnableReadability    bool    `json:"enable_readability" yaml:"enable_readability"`
	ReadabilityStrategy  string  `json:"readability_strategy" yaml:"readability_strategy"`
	Profile              string  `json:"profile" yaml:"profile"`
}

// DefaultConfig returns the GEO profile defaults.
func DefaultConfig() Config {
	return Config{
		MinWordCount:         300,
		TargetKeywordDensity: 0.02,
		OptimalDensityMin:    0.01,
		OptimalDensityMax:    0.03,
		GeoWeight:            0.3,
		ReadabilityWeight:    0.3,
		StructureWeight:      0.2,
		WordCountWeight:      0.2,
		MaxSentenceLength:    25,
		EnableReadability:    true,
		ReadabilityStrategy:  StrategyFlesch,
		Profile:              ProfileGEO,
	}
}

// AuthorityConfig returns defaults for the authority profile, which scores
// trust signals and penalizes long sentences.
func AuthorityConfig() Config {
	cfg := DefaultConfig()
	cfg.MinWordCount = 100
	cfg.ReadabilityStrategy = StrategySentenceLength
	cfg.Profile = ProfileAuthority
	return cfg
}

// normalize validates the config and rescales the weights to sum to 1.
func (c Config) normalize() (Config, error) {
	if c.MinWordCount <= 0 {
		return c, &ConfigurationError{Field: "min_word_count", Message: fmt.Sprintf("must be positive, got %d", c.MinWordCount)}
	}
	if c.MaxSentenceLength <= 0 {
		return c, &ConfigurationError{Field: "max_sentence_length", Message: fmt.Sprintf("must be positive, got %d", c.MaxSentenceLength)}
	}
	if c.OptimalDensityMin < 0 || c.OptimalDensityMax < c.OptimalDensityMin {
		return c, &ConfigurationError{
			Field:   "optimal_density",
			Message: fmt.Sprintf("invalid range [%g, %g]", c.OptimalDensityMin, c.OptimalDensityMax),
		}
	}
	if c.Profile != ProfileGEO && c.Profile != ProfileAuthority {
		return c, &ConfigurationError{Field: "profile", Message: fmt.Sprintf("unknown profile %q", c.Profile)}
	}

	weights := []struct {
		name  string
		value float64
	}{
		{"geo_weight", c.GeoWeight},
		{"readability_weight", c.ReadabilityWeight},
		{"structure_weight", c.StructureWeight},
		{"word_count_weight", c.WordCountWeight},
	}
	sum := 0.0
	for _, w := range weights {
		if w.value < 0 || math.IsNaN(w.value) || math.IsInf(w.value, 0) {
			return c, &ConfigurationError{Field: w.name, Message: fmt.Sprintf("weight must be a non-negative number, got %g", w.value)}
		}
		sum += w.value
	}
	if sum <= 0 {
		return c, &ConfigurationError{Field: "weights", Message: "at least one weight must be positive"}
	}

	c.GeoWeight /= sum
	c.ReadabilityWeight /= sum
	c.StructureWeight /= sum
	c.WordCountWeight /= sum
	return c, nil
}
