package analyzer

import (
	"fmt"
	"math"
	"sort"
)

// Readability strategy names.
const (
	StrategyFlesch         = "flesch"
	StrategySentenceLength = "sentence_length"
)

const (
	levelNotCalculated     = "Not calculated"
	levelUnableToCalculate = "Unable to calculate"
)

// ReadabilityReport is the readability outcome. Score is nil when
// readability is disabled.
type ReadabilityReport struct {
	Strategy            string   `json:"strategy"`
	Score               *float64 `json:"score"`
	Level               string   `json:"level"`
	AvgWordsPerSentence float64  `json:"avg_words_per_sentence"`
	AvgSyllablesPerWord float64  `json:"avg_syllables_per_word"`
	LongSentences       int      `json:"long_sentences"`
}

// ReadabilityStrategy scores lexical stats. Implementations may assume at
// least one word and one sentence.
type ReadabilityStrategy interface {
	Name() string
	Score(stats LexicalStats, sentenceLengths []int) ReadabilityReport
}

var readabilityStrategies = map[string]func(cfg Config) ReadabilityStrategy{
	StrategyFlesch: func(Config) ReadabilityStrategy { return fleschStrategy{} },
	StrategySentenceLength: func(cfg Config) ReadabilityStrategy {
		return sentenceLengthStrategy{maxSentenceLength: cfg.MaxSentenceLength}
	},
}

// ReadabilityStrategies lists the registered strategy names.
func ReadabilityStrategies() []string {
	names := make([]string, 0, len(readabilityStrategies))
	for name := range readabilityStrategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newReadabilityStrategy(cfg Config) (ReadabilityStrategy, error) {
	factory, ok := readabilityStrategies[cfg.ReadabilityStrategy]
	if !ok {
		return nil, &ConfigurationError{
			Field:   "readability_strategy",
			Message: fmt.Sprintf("unknown strategy %q, expected one of %v", cfg.ReadabilityStrategy, ReadabilityStrategies()),
		}
	}
	return factory(cfg), nil
}

// scoreReadability applies the guards shared by all strategies.
func scoreReadability(strategy ReadabilityStrategy, enabled bool, stats LexicalStats, sentenceLengths []int) ReadabilityReport {
	if !enabled {
		return ReadabilityReport{Strategy: strategy.Name(), Level: levelNotCalculated}
	}
	if stats.WordCount == 0 || stats.SentenceCount == 0 {
		zero := 0.0
		return ReadabilityReport{Strategy: strategy.Name(), Score: &zero, Level: levelUnableToCalculate}
	}
	return strategy.Score(stats, sentenceLengths)
}

// fleschStrategy is the Flesch Reading Ease formula.
type fleschStrategy struct{}

func (fleschStrategy) Name() string { return StrategyFlesch }

func (fleschStrategy) Score(stats LexicalStats, _ []int) ReadabilityReport {
	raw := 206.835 - 1.015*stats.AvgWordsPerSentence - 84.6*stats.AvgSyllablesPerWord
	clamped := clamp(raw, 0, 100)
	score := round(clamped, 1)
	return ReadabilityReport{
		Strategy:            StrategyFlesch,
		Score:               &score,
		Level:               fleschLevel(clamped),
		AvgWordsPerSentence: round(stats.AvgWordsPerSentence, 1),
		AvgSyllablesPerWord: round(stats.AvgSyllablesPerWord, 2),
	}
}

func fleschLevel(score float64) string {
	switch {
	case score >= 90:
		return "Very Easy"
	case score >= 80:
		return "Easy"
	case score >= 70:
		return "Fairly Easy"
	case score >= 60:
		return "Standard"
	case score >= 50:
		return "Fairly Difficult"
	case score >= 30:
		return "Difficult"
	default:
		return "Very Difficult"
	}
}

// sentenceLengthStrategy penalizes average sentence length above 15 words
// and the share of sentences longer than maxSentenceLength.
type sentenceLengthStrategy struct {
	maxSentenceLength int
}

func (sentenceLengthStrategy) Name() string { return StrategySentenceLength }

func (s sentenceLengthStrategy) Score(stats LexicalStats, sentenceLengths []int) ReadabilityReport {
	long := 0
	for _, n := range sentenceLengths {
		if n > s.maxSentenceLength {
			long++
		}
	}
	longRatio := 0.0
	if len(sentenceLengths) > 0 {
		longRatio = float64(long) / float64(len(sentenceLengths))
	}

	raw := 100 - (stats.AvgWordsPerSentence-15)*2 - longRatio*30
	clamped := clamp(raw, 0, 100)
	score := round(clamped, 1)
	return ReadabilityReport{
		Strategy:            StrategySentenceLength,
		Score:               &score,
		Level:               sentenceLengthLevel(clamped),
		AvgWordsPerSentence: round(stats.AvgWordsPerSentence, 1),
		AvgSyllablesPerWord: round(stats.AvgSyllablesPerWord, 2),
		LongSentences:       long,
	}
}

func sentenceLengthLevel(score float64) string {
	switch {
	case score >= 80:
		return "Very Easy"
	case score >= 70:
		return "Easy"
	case score >= 60:
		return "Fairly Easy"
	case score >= 50:
		return "Standard"
	case score >= 40:
		return "Fairly Difficult"
	default:
		return "Difficult"
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
