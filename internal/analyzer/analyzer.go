package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

// Analyzer scores content for AI search visibility. It holds only immutable
// configuration and is safe for concurrent use.
type Analyzer struct {
	cfg         Config
	keywords    *KeywordSet
	readability ReadabilityStrategy
	fingerprint string
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithKeywordSet replaces the profile's default keyword set.
func WithKeywordSet(set *KeywordSet) Option {
	return func(a *Analyzer) {
		if set != nil {
			a.keywords = set
		}
	}
}

// New creates a new Analyzer. Invalid configuration is reported as a
// *ConfigurationError.
func New(cfg Config, opts ...Option) (*Analyzer, error) {
	normalized, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	strategy, err := newReadabilityStrategy(normalized)
	if err != nil {
		return nil, err
	}

	a := &Analyzer{cfg: normalized, readability: strategy}
	for _, opt := range opts {
		opt(a)
	}
	if a.keywords == nil {
		a.keywords = DefaultGEOKeywords
		if normalized.Profile == ProfileAuthority {
			a.keywords = DefaultAuthorityKeywords
		}
	}
	a.fingerprint = configFingerprint(a.cfg, a.keywords)
	return a, nil
}

// Config returns the normalized configuration.
func (a *Analyzer) Config() Config { return a.cfg }

// KeywordSet returns the keyword set used for scoring.
func (a *Analyzer) KeywordSet() *KeywordSet { return a.keywords }

// Options are per-call inputs.
type Options struct {
	TargetKeywords []string   `json:"target_keywords,omitempty"`
	BusinessType   string     `json:"business_type,omitempty"`
	LastUpdated    *time.Time `json:"last_updated,omitempty"`
	Format         Format     `json:"format,omitempty"`
}

// Metadata is echoed back from the options and never affects scores.
type Metadata struct {
	BusinessType string     `json:"business_type,omitempty"`
	LastUpdated  *time.Time `json:"last_updated,omitempty"`
}

// Metadata returns the echo of o carried in a result.
func (o Options) Metadata() Metadata {
	return Metadata{
		BusinessType: strings.TrimSpace(o.BusinessType),
		LastUpdated:  o.LastUpdated,
	}
}

// ValidateOptions reports malformed options as a *ValidationError: an
// unsupported format, or blank or duplicate target keywords.
func ValidateOptions(opts Options) error {
	if _, err := ParseFormat(string(opts.Format)); err != nil {
		return err
	}
	_, err := normalizeTargets(opts.TargetKeywords)
	return err
}

// AnalysisResult is the full outcome of one analysis.
type AnalysisResult struct {
	ContentLength   int                 `json:"content_length"`
	Profile         string              `json:"profile"`
	Lexical         LexicalStats        `json:"lexical"`
	Keywords        KeywordReport       `json:"keywords"`
	Structure       StructureReport     `json:"structure"`
	Readability     ReadabilityReport   `json:"readability"`
	Completeness    *CompletenessReport `json:"completeness,omitempty"`
	Citation        *CitationReport     `json:"citation,omitempty"`
	SubScores       SubScores           `json:"sub_scores"`
	OverallScore    float64             `json:"overall_score"`
	Recommendations []Recommendation    `json:"recommendations"`
	Metadata        Metadata            `json:"metadata"`
}

// Analyze runs the full pipeline over content. Blank content and malformed
// target keywords are reported as *ValidationError. The result depends only
// on content, opts and the analyzer configuration.
func (a *Analyzer) Analyze(content string, opts Options) (*AnalysisResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if err := ValidateOptions(opts); err != nil {
		return nil, err
	}
	format, _ := ParseFormat(string(opts.Format))

	tokens := Tokenize(content)
	lexical := ComputeLexical(tokens.Words, tokens.SentenceCount, tokens.ParagraphCount)

	keywords, err := DetectKeywords(tokens, a.keywords, opts.TargetKeywords, a.cfg)
	if err != nil {
		return nil, err
	}
	structure, err := AnalyzeStructure(content, format)
	if err != nil {
		return nil, err
	}
	readability := scoreReadability(a.readability, a.cfg.EnableReadability, lexical, tokens.SentenceLengths)

	result := &AnalysisResult{
		ContentLength: utf8.RuneCountInString(content),
		Profile:       a.cfg.Profile,
		Lexical:       lexical,
		Keywords:      keywords,
		Structure:     structure,
		Readability:   readability,
		Metadata:      opts.Metadata(),
	}
	if result.Metadata.BusinessType != "" {
		completeness := CheckCompleteness(tokens.Text, result.Metadata.BusinessType)
		result.Completeness = &completeness
	}
	if a.cfg.Profile == ProfileAuthority {
		citation := CheckCitation(tokens.Text, structure)
		result.Citation = &citation
	}

	result.SubScores, result.OverallScore = compositeScore(a.cfg, lexical, keywords, readability, structure)
	result.Recommendations = recommend(a.cfg, result)
	return result, nil
}

// CacheKey identifies the result Analyze would produce for content and
// opts. LastUpdated is metadata and does not contribute.
func (a *Analyzer) CacheKey(content string, opts Options) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}

	write(a.fingerprint)
	write(content)
	if targets, err := normalizeTargets(opts.TargetKeywords); err == nil {
		write(strings.Join(targets, "\x1f"))
	} else {
		write(strings.Join(opts.TargetKeywords, "\x1f"))
	}
	write(strings.ToLower(strings.TrimSpace(opts.BusinessType)))
	if format, err := ParseFormat(string(opts.Format)); err == nil {
		write(string(format))
	} else {
		write(string(opts.Format))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func configFingerprint(cfg Config, set *KeywordSet) string {
	data, _ := json.Marshal(struct {
		Config   Config      `json:"config"`
		Keywords *KeywordSet `json:"keywords"`
	}{cfg, set})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
