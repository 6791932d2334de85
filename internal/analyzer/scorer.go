package analyzer

import (
	"fmt"
	"math"
	"strings"
)

// Recommendation priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Recommendation types.
const (
	RecommendWordCount    = "word_count"
	RecommendGEOKeywords  = "geo_keywords"
	RecommendAuthority    = "authority"
	RecommendStructure    = "structure"
	RecommendReadability  = "readability"
	RecommendCompleteness = "completeness"
	RecommendCitation     = "citation"
)

const (
	defaultReadabilityScore   = 70
	keywordScoreThreshold     = 60
	readabilityScoreThreshold = 50
	completenessThreshold     = 80
	citationThreshold         = 70
	maxMissingInMessage       = 5
)

// Recommendation is one actionable improvement.
type Recommendation struct {
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Message  string `json:"message"`
}

// SubScores are the weighted components of the overall score, each in [0,100].
type SubScores struct {
	WordCount   float64 `json:"word_count"`
	Keywords    float64 `json:"keywords"`
	Readability float64 `json:"readability"`
	Structure   float64 `json:"structure"`
}

func wordCountScore(wordCount, minWordCount int) float64 {
	return math.Min(100, float64(wordCount)/float64(minWordCount)*100)
}

// compositeScore computes sub-scores from the reports and combines them with
// the normalized weights in cfg.
func compositeScore(cfg Config, lexical LexicalStats, keywords KeywordReport, readability ReadabilityReport, structure StructureReport) (SubScores, float64) {
	sub := SubScores{
		WordCount:   wordCountScore(lexical.WordCount, cfg.MinWordCount),
		Keywords:    keywords.Score,
		Readability: defaultReadabilityScore,
		Structure:   structure.SignalScore,
	}
	if readability.Score != nil {
		sub.Readability = *readability.Score
	}
	if cfg.Profile == ProfileAuthority {
		sub.Structure = structure.Score
	}

	overall := sub.WordCount*cfg.WordCountWeight +
		sub.Keywords*cfg.GeoWeight +
		sub.Readability*cfg.ReadabilityWeight +
		sub.Structure*cfg.StructureWeight

	sub.WordCount = round(sub.WordCount, 1)
	return sub, round(clamp(overall, 0, 100), 1)
}

// recommend emits recommendations in a fixed order: word count, keywords,
// structure, readability, completeness, citation.
func recommend(cfg Config, r *AnalysisResult) []Recommendation {
	recs := []Recommendation{}

	if r.Lexical.WordCount < cfg.MinWordCount {
		recs = append(recs, Recommendation{
			Type:     RecommendWordCount,
			Priority: PriorityHigh,
			Message: fmt.Sprintf("Content is too short. Aim for at least %d words. Current: %d words.",
				cfg.MinWordCount, r.Lexical.WordCount),
		})
	}

	if r.Keywords.Score < keywordScoreThreshold {
		recs = append(recs, keywordRecommendation(cfg.Profile, r.Keywords.Missing))
	}

	if !r.Structure.HasGoodStructure {
		recs = append(recs, Recommendation{
			Type:     RecommendStructure,
			Priority: PriorityMedium,
			Message:  "Add proper heading structure (H1, H2, H3) to improve content organization.",
		})
	}

	if r.Readability.Score != nil && *r.Readability.Score < readabilityScoreThreshold {
		recs = append(recs, Recommendation{
			Type:     RecommendReadability,
			Priority: PriorityMedium,
			Message:  "Content is difficult to read. Use shorter sentences and simpler words.",
		})
	}

	if c := r.Completeness; c != nil && c.Score < completenessThreshold {
		recs = append(recs, Recommendation{
			Type:     RecommendCompleteness,
			Priority: PriorityLow,
			Message:  fmt.Sprintf("Add missing %s details: %s.", c.BusinessType, strings.Join(c.Missing, ", ")),
		})
	}

	if c := r.Citation; c != nil && c.Score < citationThreshold {
		recs = append(recs, Recommendation{
			Type:     RecommendCitation,
			Priority: PriorityHigh,
			Message:  "Improve citation potential: add specific examples, statistics or step-by-step instructions.",
		})
	}

	return recs
}

func keywordRecommendation(profile string, missing []string) Recommendation {
	if len(missing) > maxMissingInMessage {
		missing = missing[:maxMissingInMessage]
	}

	if profile == ProfileAuthority {
		msg := "Add more authority signals such as certifications or years of experience."
		if len(missing) > 0 {
			msg = "Add more authority signals like: " + strings.Join(missing, ", ")
		}
		return Recommendation{Type: RecommendAuthority, Priority: PriorityHigh, Message: msg}
	}

	msg := "Add more GEO-relevant keywords."
	if len(missing) > 0 {
		msg = "Add more GEO-relevant keywords like: " + strings.Join(missing, ", ")
	}
	return Recommendation{Type: RecommendGEOKeywords, Priority: PriorityHigh, Message: msg}
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
