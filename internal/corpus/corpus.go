// Package corpus loads the page transcript used for search and as context
// for the AI helper.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
)

// Corpus maps page keys to page text. Keys are kept as written in the
// source file; Indexing says how they translate to 1-based pages.
type Corpus struct {
	raw      map[string]string
	keys     []string
	indexing config.Indexing
}

// Load reads a JSON object of page key to text from path.
func Load(path string, indexing config.Indexing) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	c, err := Parse(data, indexing)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a corpus. Non-string values are skipped. IndexingAuto is
// resolved here: keys are zero-based when "0" is present and "1" is not.
func Parse(data []byte, indexing config.Indexing) (*Corpus, error) {
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decoding corpus: %w", err)
	}
	raw := make(map[string]string, len(decoded))
	for k, v := range decoded {
		if s, ok := v.(string); ok {
			raw[k] = s
		}
	}
	return New(raw, indexing), nil
}

// New builds a corpus from an in-memory map.
func New(raw map[string]string, indexing config.Indexing) *Corpus {
	if raw == nil {
		raw = map[string]string{}
	}
	switch indexing {
	case "":
		indexing = config.IndexingOneBased
	case config.IndexingAuto:
		indexing = detect(raw)
	}
	return &Corpus{raw: raw, keys: orderedKeys(raw), indexing: indexing}
}

func detect(raw map[string]string) config.Indexing {
	_, zero := raw["0"]
	_, one := raw["1"]
	if zero && !one {
		return config.IndexingZeroBased
	}
	return config.IndexingOneBased
}

// orderedKeys sorts integer keys ascending, followed by other keys in
// lexical order.
func orderedKeys(raw map[string]string) []string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aErr := strconv.Atoi(keys[i])
		b, bErr := strconv.Atoi(keys[j])
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Indexing is the resolved key convention.
func (c *Corpus) Indexing() config.Indexing { return c.indexing }

func (c *Corpus) Len() int { return len(c.raw) }

// PageOf converts a raw key to a 1-based page. ok is false for keys that
// are not integers.
func (c *Corpus) PageOf(key string) (int, bool) {
	n, err := strconv.Atoi(key)
	if err != nil {
		return 0, false
	}
	if c.indexing == config.IndexingZeroBased {
		n++
	}
	return n, true
}

// KeyOf converts a 1-based page to its raw key.
func (c *Corpus) KeyOf(page int) string {
	if c.indexing == config.IndexingZeroBased {
		page--
	}
	return strconv.Itoa(page)
}

// Text returns the text stored for a 1-based page.
func (c *Corpus) Text(page int) (string, bool) {
	t, ok := c.raw[c.KeyOf(page)]
	return t, ok
}

// Entry is one page of the corpus.
type Entry struct {
	Page int
	Text string
}

// Entries lists pages in key order. Keys that are not integers are
// skipped.
func (c *Corpus) Entries() []Entry {
	out := make([]Entry, 0, len(c.keys))
	for _, k := range c.keys {
		page, ok := c.PageOf(k)
		if !ok {
			continue
		}
		out = append(out, Entry{Page: page, Text: c.raw[k]})
	}
	return out
}

// ContextFor picks the text sent to the AI helper for page: the page's own
// entry under the configured indexing, then the entries keyed by the page
// number and by page-1, and otherwise every entry joined by blank lines.
func (c *Corpus) ContextFor(page int) string {
	if len(c.raw) == 0 {
		return ""
	}
	if t, _ := c.Text(page); t != "" {
		return t
	}
	if t := c.raw[strconv.Itoa(page)]; t != "" {
		return t
	}
	if t := c.raw[strconv.Itoa(page-1)]; t != "" {
		return t
	}
	parts := make([]string, 0, len(c.keys))
	for _, k := range c.keys {
		parts = append(parts, c.raw[k])
	}
	return strings.Join(parts, "\n\n")
}
