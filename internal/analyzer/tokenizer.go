package analyzer

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	nonWordPattern      = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	sentenceEndPattern  = regexp.MustCompile(`[.!?]+`)
	paragraphTagPattern = regexp.MustCompile(`(?i)<p(\s[^>]*)?>`)
	blankLinePattern    = regexp.MustCompile(`\n\s*\n`)
)

// blockTags end a line when stripped so that headings and paragraphs on the
// same source line stay separate lines of text.
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"footer": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "hr": true, "li": true,
	"main": true, "nav": true, "ol": true, "p": true, "section": true,
	"table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// Tokens is the tokenized form of one document.
type Tokens struct {
	Text            string
	Words           []string
	SentenceCount   int
	SentenceLengths []int
	ParagraphCount  int
}

// Tokenize strips markup from content and splits it into words, sentences
// and paragraphs.
func Tokenize(content string) Tokens {
	text := stripTags(content)
	return Tokens{
		Text:            text,
		Words:           extractWords(text),
		SentenceCount:   countSentences(text),
		SentenceLengths: sentenceLengths(text),
		ParagraphCount:  countParagraphs(content),
	}
}

// stripTags removes markup, comments and script/style bodies, decoding
// entities in the remaining text.
func stripTags(content string) string {
	var b strings.Builder
	b.Grow(len(content))

	z := html.NewTokenizer(strings.NewReader(content))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				switch tt {
				case html.StartTagToken:
					skip++
				case html.EndTagToken:
					if skip > 0 {
						skip--
					}
				}
			}
			if blockTags[tag] {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
	}
}

// extractWords collapses punctuation to spaces and splits on whitespace.
// Case is preserved.
func extractWords(text string) []string {
	return strings.Fields(nonWordPattern.ReplaceAllString(text, " "))
}

// countSentences counts runs of terminal punctuation. Text without any
// terminal punctuation has zero sentences.
func countSentences(text string) int {
	return len(sentenceEndPattern.FindAllStringIndex(text, -1))
}

func sentenceLengths(text string) []int {
	var lengths []int
	for _, segment := range sentenceEndPattern.Split(text, -1) {
		if n := len(extractWords(segment)); n > 0 {
			lengths = append(lengths, n)
		}
	}
	return lengths
}

// countParagraphs counts <p> elements, falling back to blank-line separated
// blocks. Never returns less than 1.
func countParagraphs(content string) int {
	if n := len(paragraphTagPattern.FindAllStringIndex(content, -1)); n > 0 {
		return n
	}
	if n := len(splitBlocks(content)); n > 0 {
		return n
	}
	return 1
}

func splitBlocks(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var blocks []string
	for _, block := range blankLinePattern.Split(content, -1) {
		if strings.TrimSpace(block) != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}
