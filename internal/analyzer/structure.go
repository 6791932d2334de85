package analyzer

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Format selects how structure is detected.
type Format string

const (
	FormatAuto     Format = "auto"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts "", "auto", "html", "markdown" (or "md").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "html", "htm":
		return FormatHTML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", &ValidationError{Field: "format", Message: fmt.Sprintf("unsupported format %q", s)}
	}
}

var (
	htmlElementPattern   = regexp.MustCompile(`<[a-zA-Z][a-zA-Z0-9]*(\s[^>]*)?/?>`)
	markdownBlockPattern = regexp.MustCompile(`(?m)^ {0,3}(#{1,6}|[-*+]|\d+[.)])[ \t]+\S`)
	linkSchemePattern    = regexp.MustCompile(`^[a-z][a-z0-9+.\-]*:`)
	lineMarkerPattern    = regexp.MustCompile(`^(#{1,6}|[-*+>]|\d+[.)])\s+`)
	faqPattern           = regexp.MustCompile(`(?i)^(what|how|why|when|where|who)\s+.*\?$`)
	questionPattern      = regexp.MustCompile(`\?(\W|$)`)
)

type HeadingCounts struct {
	H1    int `json:"h1"`
	H2    int `json:"h2"`
	H3    int `json:"h3"`
	Total int `json:"total"`
}

type ListCounts struct {
	Unordered int `json:"unordered"`
	Ordered   int `json:"ordered"`
	Items     int `json:"items"`
}

type LinkCounts struct {
	Internal int `json:"internal"`
	External int `json:"external"`
}

// StructureReport describes the organization of a document.
type StructureReport struct {
	Format             Format        `json:"format"`
	Headings           HeadingCounts `json:"headings"`
	Lists              ListCounts    `json:"lists"`
	Links              LinkCounts    `json:"links"`
	Images             int           `json:"images"`
	FAQQuestions       int           `json:"faq_questions"`
	ParagraphCount     int           `json:"paragraph_count"`
	AvgParagraphLength float64       `json:"avg_paragraph_length"`
	HasGoodStructure   bool          `json:"has_good_structure"`
	HasHeadings        bool          `json:"has_headings"`
	HasLists           bool          `json:"has_lists"`
	HasQuestions       bool          `json:"has_questions"`
	Score              float64       `json:"score"`
	SignalScore        float64       `json:"signal_score"`
}

// AnalyzeStructure inspects raw content for headings, lists, links, images
// and FAQ-style questions. FormatAuto picks Markdown when a Markdown heading
// or list line is present, else HTML when an element tag is present.
func AnalyzeStructure(content string, format Format) (StructureReport, error) {
	if format == FormatAuto || format == "" {
		format = detectFormat(content)
	}

	report := StructureReport{Format: format}
	var err error
	switch format {
	case FormatHTML:
		err = countHTMLElements(content, &report)
	case FormatMarkdown:
		countMarkdownElements(content, &report)
	default:
		return report, &ValidationError{Field: "format", Message: fmt.Sprintf("unsupported format %q", format)}
	}
	if err != nil {
		return report, fmt.Errorf("failed to parse html: %w", err)
	}

	plain := stripTags(content)
	report.FAQQuestions = countFAQLines(plain)
	report.HasQuestions = questionPattern.MatchString(plain)
	report.ParagraphCount = countParagraphs(content)
	report.AvgParagraphLength = round(float64(len(extractWords(plain)))/float64(report.ParagraphCount), 1)

	report.HasHeadings = report.Headings.Total > 0
	report.HasLists = report.Lists.Unordered+report.Lists.Ordered+report.Lists.Items > 0
	report.HasGoodStructure = report.Headings.H1 > 0 && report.Headings.H2 > 0

	report.Score = additiveStructureScore(report)
	report.SignalScore = signalStructureScore(report)
	return report, nil
}

// detectFormat prefers Markdown block markers over tags so that inline HTML
// in a Markdown document does not hide its headings and lists.
func detectFormat(content string) Format {
	if markdownBlockPattern.MatchString(content) {
		return FormatMarkdown
	}
	if htmlElementPattern.MatchString(content) {
		return FormatHTML
	}
	return FormatMarkdown
}

func countHTMLElements(content string, report *StructureReport) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return err
	}

	report.Headings.H1 = doc.Find("h1").Length()
	report.Headings.H2 = doc.Find("h2").Length()
	report.Headings.H3 = doc.Find("h3").Length()
	report.Headings.Total = doc.Find("h1,h2,h3,h4,h5,h6").Length()

	report.Lists.Unordered = doc.Find("ul").Length()
	report.Lists.Ordered = doc.Find("ol").Length()
	report.Lists.Items = doc.Find("li").Length()

	report.Images = doc.Find("img").Length()

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		countLink(href, &report.Links)
	})
	return nil
}

func countMarkdownElements(content string, report *StructureReport) {
	source := []byte(content)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			report.Headings.Total++
			switch n.Level {
			case 1:
				report.Headings.H1++
			case 2:
				report.Headings.H2++
			case 3:
				report.Headings.H3++
			}
		case *ast.List:
			if n.IsOrdered() {
				report.Lists.Ordered++
			} else {
				report.Lists.Unordered++
			}
		case *ast.ListItem:
			report.Lists.Items++
		case *ast.Image:
			report.Images++
		case *ast.Link:
			countLink(string(n.Destination), &report.Links)
		case *ast.AutoLink:
			if n.AutoLinkType == ast.AutoLinkURL {
				countLink(string(n.URL(source)), &report.Links)
			}
		}
		return ast.WalkContinue, nil
	})
}

// countLink classifies href as external (absolute http(s) or
// protocol-relative) or internal (relative). Other schemes are not counted.
func countLink(href string, links *LinkCounts) {
	href = strings.ToLower(strings.TrimSpace(href))
	switch {
	case href == "":
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"), strings.HasPrefix(href, "//"):
		links.External++
	case linkSchemePattern.MatchString(href):
	default:
		links.Internal++
	}
}

func countFAQLines(plain string) int {
	count := 0
	for _, line := range strings.Split(plain, "\n") {
		line = strings.TrimSpace(line)
		line = lineMarkerPattern.ReplaceAllString(line, "")
		line = strings.Trim(line, "*_ \t")
		if faqPattern.MatchString(line) {
			count++
		}
	}
	return count
}

func additiveStructureScore(r StructureReport) float64 {
	score := 0.0
	if r.HasHeadings {
		score += 20
	}
	if r.HasLists {
		score += 15
	}
	if r.HasQuestions {
		score += 10
	}
	if r.FAQQuestions > 0 {
		score += 20
	}
	if r.AvgParagraphLength < 50 {
		score += 15
	}
	if r.ParagraphCount >= 3 {
		score += 20
	}
	return math.Min(100, score)
}

func signalStructureScore(r StructureReport) float64 {
	score := 0.0
	if r.HasGoodStructure {
		score += 50
	}
	if r.Images > 0 {
		score += 25
	}
	if r.HasLists {
		score += 25
	}
	return score
}
