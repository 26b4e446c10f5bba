// Package search finds pages in the text corpus, either by substring match
// with context snippets or semantically through a chromem-go index.
package search

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/masskarem1/PHYS.101-Ebook/internal/corpus"
)

const (
	// MinQueryLen is the shortest query that is searched at all.
	MinQueryLen = 2
	// MaxResults caps the result list.
	MaxResults = 50
	// SnippetLen is the snippet length in runes, before ellipses.
	SnippetLen = 120
	// SnippetLead is how many runes of context precede the match.
	SnippetLead = 30
)

var whitespace = regexp.MustCompile(`\s+`)

// Result is a page that matched a query.
type Result struct {
	Page    int     `json:"page"`
	Snippet string  `json:"snippet"`
	Score   float32 `json:"score,omitempty"`
}

// Normalize trims and lowercases a query. ok is false when the query is too
// short to search.
func Normalize(query string) (string, bool) {
	q := strings.TrimSpace(query)
	if len([]rune(q)) < MinQueryLen {
		return "", false
	}
	return string(lowerRunes([]rune(q))), true
}

// Substring returns pages whose text contains query case-insensitively, in
// page order, at most MaxResults.
func Substring(c *corpus.Corpus, query string) []Result {
	q, ok := Normalize(query)
	if !ok || c == nil {
		return nil
	}
	var results []Result
	for _, e := range c.Entries() {
		if e.Text == "" {
			continue
		}
		if !strings.Contains(string(lowerRunes([]rune(e.Text))), q) {
			continue
		}
		results = append(results, Result{Page: e.Page, Snippet: Snippet(e.Text, q)})
		if len(results) == MaxResults {
			break
		}
	}
	return results
}

// Snippet cuts SnippetLen runes of text starting SnippetLead runes before
// the first case-insensitive match of q, with whitespace runs collapsed and
// ellipses marking cut ends. Without a match it returns the head of text.
func Snippet(text, q string) string {
	runes := []rune(text)
	idx := runeIndex(lowerRunes(runes), lowerRunes([]rune(q)))
	if idx < 0 {
		if len(runes) > SnippetLen {
			return string(runes[:SnippetLen]) + "…"
		}
		return text
	}

	start := idx - SnippetLead
	if start < 0 {
		start = 0
	}
	end := start + SnippetLen
	if end > len(runes) {
		end = len(runes)
	}

	var sb strings.Builder
	if start > 0 {
		sb.WriteString("… ")
	}
	sb.WriteString(whitespace.ReplaceAllString(string(runes[start:end]), " "))
	if len(runes) > start+SnippetLen {
		sb.WriteString("…")
	}
	return sb.String()
}

func lowerRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func runeIndex(hay, needle []rune) int {
	if len(needle) == 0 {
		return 0
	}
outer:
	for i := 0; i+len(needle) <= len(hay); i++ {
		for j, r := range needle {
			if hay[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}
