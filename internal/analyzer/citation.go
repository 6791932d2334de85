package analyzer

import "regexp"

// Citation triggers reported by CheckCitation.
const (
	TriggerDefinitive = "Definitive statements"
	TriggerLists      = "Structured lists"
	TriggerStatistics = "Statistics and numbers"
)

var (
	numberPattern     = regexp.MustCompile(`\d+`)
	definitivePattern = regexp.MustCompile(`(?im)^\s*(the|these are|here are|this is)\b`)
	statisticPattern  = regexp.MustCompile(`(?i)\d+\s*(%|percent\b|million\b|billion\b)`)
)

// phrases matches a word or phrase at a word start, case-insensitively.
func phrases(list ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(list))
	for i, p := range list {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(p))
	}
	return out
}

var (
	specificPhrases   = phrases("specific", "exactly", "precisely", "detailed", "step-by-step")
	answerPhrases     = phrases("because", "therefore", "result", "solution", "answer")
	actionPhrases     = phrases("how to", "step", "process", "method", "technique", "guide", "tutorial")
	experiencePhrases = phrases("our experience", "we have", "in our", "we specialize", "we provide")
	examplePhrases    = phrases("for example", "such as", "including", "specifically", "case study")
	questionWords     = regexp.MustCompile(`(?i)\b(what|how|why|when|where|who)\b`)
)

// CitationFactors are the per-factor scores, each in [0,100].
type CitationFactors struct {
	Specificity     float64 `json:"specificity"`
	CompleteAnswers float64 `json:"complete_answers"`
	Actionability   float64 `json:"actionability"`
	Uniqueness      float64 `json:"uniqueness"`
}

// CitationReport estimates how likely an answer engine is to quote the page.
type CitationReport struct {
	Score           float64         `json:"score"`
	Factors         CitationFactors `json:"factors"`
	LikelyToBeCited bool            `json:"likely_to_be_cited"`
	Triggers        []string        `json:"citation_triggers"`
}

// CheckCitation scores stripped text on specificity, question/answer
// balance, actionable wording and first-hand detail. structure supplies the
// list signal since markup is gone from text.
func CheckCitation(text string, structure StructureReport) CitationReport {
	numbers := len(numberPattern.FindAllStringIndex(text, -1))
	experience := capped(float64(present(text, experiencePhrases)) * 25)
	examples := capped(float64(present(text, examplePhrases)) * 20)

	f := CitationFactors{
		Specificity:     capped(float64(numbers)*5 + float64(present(text, specificPhrases))*10),
		CompleteAnswers: completeAnswers(text),
		Actionability:   capped(float64(present(text, actionPhrases)) * 15),
		Uniqueness:      (experience + examples) / 2,
	}

	score := (f.Specificity + f.CompleteAnswers + f.Actionability + f.Uniqueness) / 4
	report := CitationReport{
		Score:           round(score, 1),
		Factors:         f,
		LikelyToBeCited: score >= 75,
		Triggers:        []string{},
	}

	if definitivePattern.MatchString(text) {
		report.Triggers = append(report.Triggers, TriggerDefinitive)
	}
	if structure.HasLists {
		report.Triggers = append(report.Triggers, TriggerLists)
	}
	if statisticPattern.MatchString(text) {
		report.Triggers = append(report.Triggers, TriggerStatistics)
	}
	return report
}

// completeAnswers compares answer wording to question words. Text without
// questions is neutral.
func completeAnswers(text string) float64 {
	questions := len(questionWords.FindAllStringIndex(text, -1))
	if questions == 0 {
		return 50
	}
	answers := 0
	for _, p := range answerPhrases {
		answers += len(p.FindAllStringIndex(text, -1))
	}
	return round(capped(float64(answers)/float64(questions)*100), 1)
}

func present(text string, list []*regexp.Regexp) int {
	n := 0
	for _, p := range list {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}

func capped(v float64) float64 {
	return clamp(v, 0, 100)
}
