package aiproxy

import (
	"context"
	"errors"
	"fmt"

	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
	"github.com/masskarem1/PHYS.101-Ebook/internal/corpus"
)

// translatedMark is appended to translated replies.
const translatedMark = "\n\n*(Translated)*"

// ErrNothingToTranslate is returned when there is no previous reply.
var ErrNothingToTranslate = errors.New("no reply to translate")

// PageImages supplies the full-resolution page image for analysis.
type PageImages interface {
	PNGDataURL(page int) (string, error)
}

// Reply is an answer ready for display.
type Reply struct {
	Action   Action `json:"action"`
	Page     int    `json:"page,omitempty"`
	Text     string `json:"text"`
	HTML     string `json:"html"`
	RTL      bool   `json:"rtl,omitempty"`
	Attempts int    `json:"attempts"`
}

// Helper builds proxy requests for the page being read.
type Helper struct {
	client *Client
	corpus *corpus.Corpus
	images PageImages
	ai     config.AIConfig
}

// NewHelper wires a client to the page text and images. c may be nil when
// no transcript is available.
func NewHelper(client *Client, c *corpus.Corpus, images PageImages, ai config.AIConfig) *Helper {
	return &Helper{client: client, corpus: c, images: images, ai: ai}
}

// Ask runs action for page. analyze sends the page image; every other
// action sends the page text.
func (h *Helper) Ask(ctx context.Context, action Action, page int) (Reply, error) {
	if action == ActionTranslateText {
		return Reply{}, fmt.Errorf("%s needs text, use Translate", action)
	}
	req := Request{
		Action:   action,
		Page:     page,
		Language: orDefault(h.ai.Language, "en"),
		Tone:     orDefault(h.ai.Tone, "friendly"),
	}
	if action == ActionAnalyze {
		img, err := h.images.PNGDataURL(page)
		if err != nil {
			return Reply{}, fmt.Errorf("capturing page %d: %w", page, err)
		}
		req.Image = img
	} else if h.corpus != nil {
		req.Text = h.corpus.ContextFor(page)
	}

	res, err := h.client.Do(ctx, req)
	if err != nil {
		return Reply{Action: action, Page: page, Attempts: res.Attempts}, err
	}
	return Reply{
		Action:   action,
		Page:     page,
		Text:     res.Text,
		HTML:     RenderMarkdown(res.Text),
		Attempts: res.Attempts,
	}, nil
}

// Translate translates a previous reply into the configured translation
// language and marks it as translated.
func (h *Helper) Translate(ctx context.Context, text string) (Reply, error) {
	if text == "" {
		return Reply{}, ErrNothingToTranslate
	}
	lang := orDefault(h.ai.TranslateLanguage, "ar")
	res, err := h.client.Do(ctx, Request{Action: ActionTranslateText, Text: text, Language: lang})
	if err != nil {
		return Reply{Action: ActionTranslateText, Attempts: res.Attempts}, err
	}
	translated := res.Text
	if !res.Keyed {
		translated = ""
	}
	out := orDefault(translated, "No translation") + translatedMark
	return Reply{
		Action:   ActionTranslateText,
		Text:     out,
		HTML:     RenderMarkdown(out),
		RTL:      rightToLeft(lang),
		Attempts: res.Attempts,
	}, nil
}

func rightToLeft(lang string) bool {
	switch lang {
	case "ar", "he", "fa", "ur":
		return true
	}
	return false
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
