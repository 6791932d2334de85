package analyzer

import "regexp"

// DefaultGEOKeywords are the local-business terms AI answer engines look for
// when deciding whether a page describes a real, reachable business.
var DefaultGEOKeywords = MustKeywordSet("geo",
	"location", "address", "phone", "contact", "hours", "services", "about",
	"team", "experience", "years", "professional", "certified", "licensed",
	"insured", "emergency", "availability", "area served",
)

// DefaultAuthorityKeywords are trust signals scored by the authority profile.
var DefaultAuthorityKeywords = MustKeywordSet("authority",
	"certified", "licensed", "accredited", "award-winning", "experienced",
	"expert", "professional", "established", "trusted", "years of experience",
	"iso certified", "bbb rated", "industry leader", "recognized",
)

type namedPattern struct {
	name    string
	pattern *regexp.Regexp
}

// authorityPatterns detect credibility claims that are phrased rather than
// keyword-shaped, such as "15 years of experience" or "500+ clients".
var authorityPatterns = []namedPattern{
	{"years_experience", regexp.MustCompile(`(?i)\b\d+\s*years?\s*(of\s+)?(experience|in business)\b`)},
	{"certifications", regexp.MustCompile(`(?i)\b(certified|licensed|accredited)\s+(by|in|for)\b`)},
	{"awards", regexp.MustCompile(`(?i)\b(award|recognition|winner|rated|ranked)`)},
	{"numbers_stats", regexp.MustCompile(`(?i)\b\d+(%|k)?\+?\s*(clients|customers|projects|years)\b`)},
}

// getStopWords returns common English stop words
func getStopWords() map[string]bool {
	words := []string{
		"a", "about", "above", "after", "again", "against", "all", "am", "an", "and", "any", "are",
		"as", "at", "be", "because", "been", "before", "being", "below", "between", "both", "but", "by",
		"can", "cannot", "could", "did", "do", "does", "doing", "down", "during", "each", "few", "for",
		"from", "further", "had", "has", "have", "having", "he", "her", "here", "hers", "herself", "him",
		"himself", "his", "how", "i", "if", "in", "into", "is", "it", "its", "itself", "me", "more",
		"most", "my", "myself", "no", "nor", "not", "of", "off", "on", "once", "only", "or", "other",
		"ought", "our", "ours", "ourselves", "out", "over", "own", "same", "she", "should", "so", "some",
		"such", "than", "that", "the", "their", "theirs", "them", "themselves", "then", "there", "these",
		"they", "this", "those", "through", "to", "too", "under", "until", "up", "very", "was", "we",
		"were", "what", "when", "where", "which", "while", "who", "whom", "why", "will", "with", "would",
		"you", "your", "yours", "yourself", "yourselves",
	}

	stopWords := make(map[string]bool)
	for _, word := range words {
		stopWords[word] = true
	}
	return stopWords
}
