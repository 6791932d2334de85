package analyzer

import (
	"regexp"
	"strings"
)

var vowelRunPattern = regexp.MustCompile(`[aeiouy]+`)

// LexicalStats are the counting metrics of a document.
type LexicalStats struct {
	WordCount           int     `json:"word_count"`
	SentenceCount       int     `json:"sentence_count"`
	ParagraphCount      int     `json:"paragraph_count"`
	SyllableCount       int     `json:"syllable_count"`
	AvgWordsPerSentence float64 `json:"avg_words_per_sentence"`
	AvgSyllablesPerWord float64 `json:"avg_syllables_per_word"`
}

// ComputeLexical derives counts and averages from tokenized words.
func ComputeLexical(words []string, sentenceCount, paragraphCount int) LexicalStats {
	stats := LexicalStats{
		WordCount:      len(words),
		SentenceCount:  sentenceCount,
		ParagraphCount: paragraphCount,
	}
	for _, word := range words {
		stats.SyllableCount += countSyllablesInWord(word)
	}
	if stats.SentenceCount > 0 {
		stats.AvgWordsPerSentence = float64(stats.WordCount) / float64(stats.SentenceCount)
	}
	if stats.WordCount > 0 {
		stats.AvgSyllablesPerWord = float64(stats.SyllableCount) / float64(stats.WordCount)
	}
	return stats
}

// countSyllablesInWord counts vowel groups, with a floor of one per word.
func countSyllablesInWord(word string) int {
	count := len(vowelRunPattern.FindAllStringIndex(strings.ToLower(word), -1))
	if count == 0 {
		return 1
	}
	return count
}
