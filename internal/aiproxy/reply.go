package aiproxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// replyKeys are the field names proxies have been seen to answer under,
// in lookup order.
var replyKeys = []string{"reply", "text", "output", "response", "answer"}

// ProxyError is an `error` field in an otherwise successful response.
type ProxyError struct {
	Message string
}

func (e *ProxyError) Error() string { return "AI error: " + e.Message }

// ErrInvalidJSON is returned for a 2xx response that is not a JSON object.
var ErrInvalidJSON = errors.New("invalid JSON from proxy")

// ExtractReply pulls the reply text out of a proxy response body. A
// non-empty `error` field wins. When no known key holds a string, the body
// itself is returned.
func ExtractReply(body []byte) (string, error) {
	text, _, err := extractReply(body)
	return text, err
}

// extractReply is ExtractReply that also reports whether a known reply key
// held the text.
func extractReply(body []byte) (string, bool, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if e, ok := obj["error"]; ok && e != nil && e != "" {
		if s, ok := e.(string); ok {
			return "", false, &ProxyError{Message: s}
		}
		raw, _ := json.Marshal(e)
		return "", false, &ProxyError{Message: string(raw)}
	}
	for _, k := range replyKeys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s, true, nil
		}
	}
	return string(bytes.TrimSpace(body)), false, nil
}

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
		),
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

// RenderMarkdown converts a reply to HTML. Raw HTML in the reply is
// dropped. On failure the text is returned unchanged.
func RenderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return text
	}
	return buf.String()
}
