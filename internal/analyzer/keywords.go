package analyzer

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const topWordsLimit = 20

// KeywordSet is an ordered, deduplicated, lowercase list of keywords with
// precompiled whole-word matchers. It is immutable and safe to share.
type KeywordSet struct {
	name     string
	keywords []string
	matchers []*regexp.Regexp
}

// NewKeywordSet builds a KeywordSet. Keywords are lowercased and
// deduplicated keeping first-seen order.
func NewKeywordSet(name string, keywords ...string) (*KeywordSet, error) {
	set := &KeywordSet{name: name}
	seen := make(map[string]bool)
	for _, kw := range keywords {
		kw = normalizeKeyword(kw)
		if kw == "" {
			return nil, &ConfigurationError{Field: "keywords", Message: fmt.Sprintf("keyword set %q contains a blank keyword", name)}
		}
		if seen[kw] {
			continue
		}
		seen[kw] = true
		set.keywords = append(set.keywords, kw)
		set.matchers = append(set.matchers, keywordPattern(kw))
	}
	if len(set.keywords) == 0 {
		return nil, &ConfigurationError{Field: "keywords", Message: fmt.Sprintf("keyword set %q is empty", name)}
	}
	return set, nil
}

// MustKeywordSet is like NewKeywordSet but panics on error.
func MustKeywordSet(name string, keywords ...string) *KeywordSet {
	set, err := NewKeywordSet(name, keywords...)
	if err != nil {
		panic(err)
	}
	return set
}

func (s *KeywordSet) Name() string { return s.name }

func (s *KeywordSet) Len() int { return len(s.keywords) }

// Keywords returns a copy of the keywords in set order.
func (s *KeywordSet) Keywords() []string {
	out := make([]string, len(s.keywords))
	copy(out, s.keywords)
	return out
}

func (s *KeywordSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name     string   `json:"name"`
		Keywords []string `json:"keywords"`
	}{s.name, s.keywords})
}

func normalizeKeyword(kw string) string {
	return strings.Join(strings.Fields(strings.ToLower(kw)), " ")
}

// keywordPattern matches a keyword case-insensitively on word boundaries,
// letting any whitespace separate the words of a phrase.
func keywordPattern(keyword string) *regexp.Regexp {
	parts := strings.Fields(keyword)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	expr := strings.Join(parts, `\s+`)

	first, _ := utf8.DecodeRuneInString(keyword)
	last, _ := utf8.DecodeLastRuneInString(keyword)
	if isASCIIWordRune(first) {
		expr = `\b` + expr
	}
	if isASCIIWordRune(last) {
		expr += `\b`
	}
	return regexp.MustCompile(`(?i)` + expr)
}

func isASCIIWordRune(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// WordFrequency is a word and its occurrence count.
type WordFrequency struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// TargetKeyword reports how often a caller-supplied keyword occurs.
type TargetKeyword struct {
	Keyword   string  `json:"keyword"`
	Count     int     `json:"count"`
	Density   float64 `json:"density"`
	Deviation float64 `json:"deviation"`
	Optimal   bool    `json:"optimal"`
}

// KeywordReport is the output of keyword detection.
type KeywordReport struct {
	KeywordSet     string              `json:"keyword_set"`
	Found          []string            `json:"found_keywords"`
	Missing        []string            `json:"missing_keywords"`
	Counts         map[string]int      `json:"keyword_counts"`
	Density        float64             `json:"keyword_density"`
	Score          float64             `json:"score"`
	SignalCount    int                 `json:"signal_count,omitempty"`
	PatternMatches map[string][]string `json:"pattern_matches,omitempty"`
	Targets        []TargetKeyword     `json:"target_keywords,omitempty"`
	TopWords       []WordFrequency     `json:"top_words"`
	UniqueWords    int                 `json:"unique_words"`
	Diversity      float64             `json:"keyword_diversity"`
}

// DetectKeywords matches set against the tokenized text and scores it
// according to cfg.Profile. Target keywords are counted individually.
func DetectKeywords(tokens Tokens, set *KeywordSet, targets []string, cfg Config) (KeywordReport, error) {
	targets, err := normalizeTargets(targets)
	if err != nil {
		return KeywordReport{}, err
	}

	totalWords := len(tokens.Words)
	report := KeywordReport{
		KeywordSet: set.name,
		Found:      make([]string, 0, len(set.keywords)),
		Missing:    make([]string, 0, len(set.keywords)),
		Counts:     make(map[string]int),
		TopWords:   topWords(tokens.Words, topWordsLimit),
	}

	for i, kw := range set.keywords {
		n := 0
		if totalWords > 0 {
			n = len(set.matchers[i].FindAllStringIndex(tokens.Text, -1))
		}
		if n > 0 {
			report.Found = append(report.Found, kw)
			report.Counts[kw] = n
		} else {
			report.Missing = append(report.Missing, kw)
		}
	}

	for _, target := range targets {
		tk := TargetKeyword{Keyword: target}
		if totalWords > 0 {
			tk.Count = len(keywordPattern(target).FindAllStringIndex(tokens.Text, -1))
			density := float64(tk.Count) / float64(totalWords)
			tk.Density = round(density, 4)
			tk.Deviation = round(density-cfg.TargetKeywordDensity, 4)
			tk.Optimal = density >= cfg.OptimalDensityMin && density <= cfg.OptimalDensityMax
		}
		report.Targets = append(report.Targets, tk)
	}

	if totalWords == 0 {
		return report, nil
	}

	report.Density = round(float64(len(report.Found))/float64(totalWords), 4)
	report.UniqueWords = countUniqueWords(tokens.Words)
	report.Diversity = round(float64(report.UniqueWords)/float64(totalWords), 4)

	switch cfg.Profile {
	case ProfileAuthority:
		report.SignalCount = len(report.Found)
		report.PatternMatches = matchAuthorityPatterns(tokens.Text)
		score := float64(report.SignalCount*10 + len(report.PatternMatches)*15)
		report.Score = math.Min(100, score)
	default:
		score := float64(len(report.Found))/float64(set.Len())*100 + 20
		report.Score = round(math.Min(100, score), 1)
	}
	return report, nil
}

func normalizeTargets(targets []string) ([]string, error) {
	if len(targets) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(targets))
	seen := make(map[string]bool)
	for i, t := range targets {
		kw := normalizeKeyword(t)
		if kw == "" {
			return nil, &ValidationError{Field: "target_keywords", Message: fmt.Sprintf("keyword at index %d is blank", i)}
		}
		if seen[kw] {
			return nil, &ValidationError{Field: "target_keywords", Message: fmt.Sprintf("keyword %q is listed more than once", kw)}
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out, nil
}

// matchAuthorityPatterns returns the distinct lowercase phrases matched per
// pattern family. Families without matches are omitted.
func matchAuthorityPatterns(text string) map[string][]string {
	matches := make(map[string][]string)
	for _, p := range authorityPatterns {
		seen := make(map[string]bool)
		for _, m := range p.pattern.FindAllString(text, -1) {
			m = strings.ToLower(strings.Join(strings.Fields(m), " "))
			if seen[m] {
				continue
			}
			seen[m] = true
			matches[p.name] = append(matches[p.name], m)
		}
	}
	return matches
}

var stopWords = getStopWords()

// topWords returns the most frequent non-stop words longer than two
// characters. Ties are ordered alphabetically.
func topWords(words []string, limit int) []WordFrequency {
	freq := make(map[string]int)
	for _, word := range words {
		word = strings.ToLower(word)
		if utf8.RuneCountInString(word) > 2 && !stopWords[word] {
			freq[word]++
		}
	}

	counts := make([]WordFrequency, 0, len(freq))
	for word, count := range freq {
		counts = append(counts, WordFrequency{Word: word, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Word < counts[j].Word
	})

	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}

func countUniqueWords(words []string) int {
	unique := make(map[string]bool)
	for _, word := range words {
		unique[strings.ToLower(word)] = true
	}
	return len(unique)
}
