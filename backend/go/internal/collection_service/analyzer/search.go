package analyzer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"Memora/backend/go/internal/models"
	"Memora/backend/go/pkg/llmjson"
)

// maxCandidateSummaryRunes bounds each summary in the search context.
const maxCandidateSummaryRunes = 300

// Candidate is one saved collection offered to the model during a search.
type Candidate struct {
	ID      int64
	URL     string
	Title   string
	Summary string
}

// Match is the model's pick for a search. CollectionID is zero when nothing matched.
type Match struct {
	CollectionID int64
	Confidence   string
	Reason       string
}

// Match asks the model which candidate best answers query.
func (a *Analyzer) Match(ctx context.Context, query string, candidates []Candidate) (*Match, error) {
	req := models.NewPromptRequest(
		a.withLanguage(fmt.Sprintf(searchPrompt, candidateList(candidates))),
		"Find the saved item that best matches: "+query,
	)
	resp, err := a.llm.GenerateContent(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	obj := llmjson.Parse(text)
	m := &Match{
		CollectionID: candidateID(obj["collection_id"]),
		Confidence:   strings.ToLower(strings.TrimSpace(llmjson.String(obj, "confidence"))),
		Reason:       strings.TrimSpace(llmjson.String(obj, "reason")),
	}
	if m.Confidence == "" {
		m.Confidence = "unknown"
	}
	if len(obj) == 0 {
		a.log.Warn(fmt.Sprintf("search returned no JSON object: %q", truncateForLog(text)))
	}
	return m, nil
}

func candidateList(candidates []Candidate) string {
	var b strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&b, "Collection ID: %d\nURL: %s\nTitle: %s\nSummary: %s\n---\n",
			c.ID, orNA(c.URL), orNA(c.Title), orNA(clip(c.Summary, maxCandidateSummaryRunes)))
	}
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// candidateID accepts the id as a JSON number or a numeric string.
func candidateID(v interface{}) int64 {
	switch id := v.(type) {
	case float64:
		if id > 0 && id == float64(int64(id)) {
			return int64(id)
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
