package search

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/mementolabs/memento/internal/domain"
)

// ContentLimits bound the formatted web context block.
type ContentLimits struct {
	MaxResults       int
	MaxTitleLength   int
	MaxContentLength int
	MaxTotalLength   int
	MinSentenceScore float64
}

// DefaultContentLimits returns the reference limits.
func DefaultContentLimits() ContentLimits {
	return ContentLimits{
		MaxResults:       5,
		MaxTitleLength:   100,
		MaxContentLength: 1000,
		MaxTotalLength:   4000,
		MinSentenceScore: 0.3,
	}
}

// ContentStats reports what the formatter managed to fit.
type ContentStats struct {
	TotalChars      int
	ResultsIncluded int
	TotalScore      float64
	Considered      int
	Dropped         int
}

var emphasisWords = []string{"important", "key", "main", "significant", "crucial"}

// WebFormatter assembles ranked web results into a size-bounded
// structured context block, extractively truncating each document by
// sentence score.
type WebFormatter struct {
	limits ContentLimits
}

// NewWebFormatter creates a WebFormatter. Zero limits select defaults.
func NewWebFormatter(limits ContentLimits) *WebFormatter {
	if limits.MaxTotalLength <= 0 {
		limits = DefaultContentLimits()
	}
	return &WebFormatter{limits: limits}
}

// Format sorts results by relevance, caps their number, and fills the
// global character budget document by document. Once the budget is
// exhausted, remaining lower-ranked documents are dropped whole so the
// block stays well-formed.
func (f *WebFormatter) Format(query string, results []domain.RerankedWebResult) (string, ContentStats) {
	if len(results) == 0 {
		return "", ContentStats{}
	}

	cleanQuery := truncate(cleanText(query), f.limits.MaxTitleLength)
	wrapperSize := len("<web_search>\n<question></question>\n</web_search>")
	available := f.limits.MaxTotalLength - wrapperSize - len(cleanQuery)

	sorted := make([]domain.RerankedWebResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Relevance > sorted[j].Relevance
	})
	if len(sorted) > f.limits.MaxResults {
		sorted = sorted[:f.limits.MaxResults]
	}

	var stats ContentStats
	var entries []string

	remaining := available
	for _, r := range sorted {
		entry := f.formatResult(r, remaining)
		if len(entry) > remaining {
			break
		}
		entries = append(entries, entry)
		remaining -= len(entry)
		stats.TotalChars += len(entry)
		stats.ResultsIncluded++
		stats.TotalScore += r.Relevance
	}

	stats.Considered = len(results)
	stats.Dropped = stats.Considered - stats.ResultsIncluded

	block := "<web_search>\n<question>" + cleanQuery + "</question>\n" +
		strings.Join(entries, "\n") + "\n</web_search>"

	return block, stats
}

func (f *WebFormatter) formatResult(r domain.RerankedWebResult, available int) string {
	title := truncate(cleanText(r.Title), f.limits.MaxTitleLength)
	url := truncate(cleanText(r.URL), f.limits.MaxTitleLength)

	// Reserve space for the entry's XML structure and padding.
	baseSize := len(title) + len(url) + 200
	contentSpace := available - baseSize
	if contentSpace > f.limits.MaxContentLength {
		contentSpace = f.limits.MaxContentLength
	}

	content := ""
	if contentSpace > 0 {
		content = f.truncateContent(r.Content, r.Relevance, contentSpace)
	}

	parts := []string{
		"<web_data>",
		"    <title>" + title + "</title>",
		"    <url>" + url + "</url>",
		"    <content>" + content + "</content>",
		fmt.Sprintf("    <score>%.3f</score>", r.Relevance),
		"</web_data>",
	}
	return strings.Join(parts, "\n")
}

// truncateContent selects sentences greedily by score until the budget
// runs out. The first sentence is always kept for coherence.
func (f *WebFormatter) truncateContent(content string, docScore float64, maxLength int) string {
	if content == "" {
		return ""
	}
	if len(content) <= maxLength {
		return cleanText(content)
	}

	sentences := strings.Split(content, ". ")

	first := cleanText(sentences[0])
	if len(first) > maxLength {
		if maxLength <= 3 {
			return first[:maxLength]
		}
		return first[:maxLength-3] + "..."
	}

	selected := []string{first}
	currentLength := len(first)

	type scored struct {
		text   string
		score  float64
		length int
	}
	var candidates []scored

	for idx := 1; idx < len(sentences); idx++ {
		clean := cleanText(sentences[idx])
		length := len(clean)
		if length < 10 || length > 200 {
			continue
		}

		positionScore := 0.6
		if idx == len(sentences)-1 {
			positionScore = 0.8
		}

		contentScore := 0.0
		if containsDigit(clean) {
			contentScore += 0.2
		}
		if containsAny(strings.ToLower(clean), emphasisWords) {
			contentScore += 0.3
		}
		if length >= 20 && length <= 150 {
			contentScore += 0.5
		}

		finalScore := (positionScore + contentScore) * docScore
		if finalScore >= f.limits.MinSentenceScore {
			candidates = append(candidates, scored{text: clean, score: finalScore, length: length})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	for _, c := range candidates {
		if currentLength+c.length+2 > maxLength {
			break
		}
		selected = append(selected, c.text)
		currentLength += c.length + 2
	}

	out := strings.Join(selected, ". ")
	if len(selected) < len(sentences) {
		out += "..."
	}
	return out
}

// cleanText collapses whitespace, drops non-printable runes, and
// escapes XML-significant characters.
func cleanText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var b strings.Builder
	lastSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		lastSpace = false
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
