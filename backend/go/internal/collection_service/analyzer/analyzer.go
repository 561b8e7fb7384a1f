package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"Memora/backend/go/internal/llm"
	"Memora/backend/go/internal/models"
	"Memora/backend/go/pkg/llmjson"
	"Memora/backend/go/pkg/logger"
)

// MaxTags is the largest number of tags kept from a classification.
const MaxTags = 5

// ErrEmptyResponse is returned when the model answers a classification with no text.
var ErrEmptyResponse = errors.New("analyzer: empty model response")

// Classification is the category suggestion for a piece of content.
// Missing fields are left empty; the caller decides what an empty category means.
type Classification struct {
	Category string
	Emoji    string
	Tags     []string
}

// Fragment is one piece of a streamed summary. A fragment with Err set is
// always the last one on its channel.
type Fragment struct {
	Text string
	Err  error
}

// Options tunes prompts and input size.
type Options struct {
	MaxContentRunes int
	Language        string
}

// Analyzer classifies and summarizes content with a chat model.
type Analyzer struct {
	llm  llm.LLM
	opts Options
	log  *logger.Logger
}

// New creates an Analyzer.
func New(client llm.LLM, opts Options, log *logger.Logger) *Analyzer {
	return &Analyzer{llm: client, opts: opts, log: log}
}

// Classify asks the model for a category, emoji and tags for content, preferring
// one of the known categories.
func (a *Analyzer) Classify(ctx context.Context, content string, known []models.Category) (*Classification, error) {
	req := models.NewPromptRequest(a.withLanguage(fmt.Sprintf(classifyPrompt, knownList(known))), a.truncate(content))
	resp, err := a.llm.GenerateContent(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("classification request failed: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	obj := llmjson.Parse(text)
	c := &Classification{
		Category: clip(strings.TrimSpace(llmjson.String(obj, "category")), models.MaxCategoryNameLength),
		Emoji:    clip(strings.TrimSpace(llmjson.String(obj, "category_emoji")), models.MaxEmojiLength),
		Tags:     fitTags(normalizeTags(llmjson.Strings(obj, "tags")), models.MaxTagsLength),
	}
	if c.Category == "" {
		a.log.Warn(fmt.Sprintf("classifier returned no usable category: %q", truncateForLog(text)))
	}
	return c, nil
}

// Summarize streams a summary of content. Every model fragment is forwarded in
// order, empty ones included. A stream failure arrives as a final Fragment with Err set.
func (a *Analyzer) Summarize(ctx context.Context, content string) (<-chan Fragment, error) {
	req := models.NewPromptRequest(a.withLanguage(summarizePrompt), a.truncate(content))
	stream, err := a.llm.GenerateContentStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("summary stream failed to open: %w", err)
	}

	out := make(chan Fragment)
	go func() {
		defer close(out)
		for resp := range stream {
			f := Fragment{Text: resp.Text()}
			if resp.Err != nil {
				f = Fragment{Err: fmt.Errorf("summary stream failed: %w", resp.Err)}
			}
			select {
			case out <- f:
			case <-ctx.Done():
				// Drain so the producer can finish.
				for range stream {
				}
				return
			}
			if f.Err != nil {
				return
			}
		}
	}()
	return out, nil
}

// SummaryText extracts the "summary" field from the concatenated stream output,
// falling back to the raw text when it is not a JSON object with that field.
func SummaryText(full string) string {
	if s, ok := llmjson.Parse(full)["summary"].(string); ok {
		return s
	}
	return full
}

func (a *Analyzer) withLanguage(prompt string) string {
	if a.opts.Language == "" {
		return prompt
	}
	return prompt + fmt.Sprintf(languageSuffix, a.opts.Language)
}

func (a *Analyzer) truncate(content string) string {
	if a.opts.MaxContentRunes <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= a.opts.MaxContentRunes {
		return content
	}
	return string(runes[:a.opts.MaxContentRunes])
}

func knownList(known []models.Category) string {
	if len(known) == 0 {
		return "(none yet)"
	}
	names := make([]string, 0, len(known))
	for _, c := range known {
		names = append(names, fmt.Sprintf("%s(%s)", c.Name, c.Emoji))
	}
	return strings.Join(names, ", ")
}

func normalizeTags(raw []string) []string {
	tags := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
		if len(tags) == MaxTags {
			break
		}
	}
	return tags
}

// fitTags drops trailing tags until the comma-joined list is at most max runes.
// A lone tag that is still too long is clipped.
func fitTags(tags []string, max int) []string {
	for len(tags) > 1 && utf8.RuneCountInString(strings.Join(tags, ",")) > max {
		tags = tags[:len(tags)-1]
	}
	if len(tags) == 1 {
		tags[0] = clip(tags[0], max)
	}
	return tags
}

func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}

func truncateForLog(s string) string {
	if r := []rune(s); len(r) > 200 {
		return string(r[:200]) + "..."
	}
	return s
}
