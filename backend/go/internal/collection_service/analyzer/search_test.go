package analyzer

import (
	"context"
	"strings"
	"testing"

	"Memora/backend/go/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var searchCandidates = []Candidate{
	{ID: 3, URL: "https://example.com/paris", Title: "Paris trip", Summary: "A week in Paris."},
	{ID: 9, URL: "https://example.com/soup", Summary: strings.Repeat("s", 400)},
}

func TestMatch(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  Match
	}{
		{"numeric id", `{"collection_id": 3, "confidence": "High", "reason": "Title matches."}`, Match{3, "high", "Title matches."}},
		{"string id", "```json\n{\"collection_id\": \"9\", \"confidence\": \"low\", \"reason\": \"Soup.\"}\n```", Match{9, "low", "Soup."}},
		{"null id", `{"collection_id": null, "confidence": "low", "reason": "Nothing fits."}`, Match{0, "low", "Nothing fits."}},
		{"garbage", "no idea", Match{0, "unknown", ""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := New(&fakeLLM{reply: tc.reply}, Options{}, logger.Nop())
			m, err := a.Match(context.Background(), "paris", searchCandidates)
			require.NoError(t, err)
			assert.Equal(t, tc.want, *m)
		})
	}
}

func TestMatch_PromptListsCandidates(t *testing.T) {
	llm := &fakeLLM{reply: `{"collection_id": null}`}
	a := New(llm, Options{}, logger.Nop())
	_, err := a.Match(context.Background(), "where was that soup recipe", searchCandidates)
	require.NoError(t, err)

	system := systemText(llm.lastReq)
	assert.Contains(t, system, "Collection ID: 3\nURL: https://example.com/paris\nTitle: Paris trip\nSummary: A week in Paris.\n---\n")
	assert.Contains(t, system, "Collection ID: 9\nURL: https://example.com/soup\nTitle: N/A\n")
	assert.NotContains(t, system, strings.Repeat("s", maxCandidateSummaryRunes+1))
	assert.Contains(t, userText(llm.lastReq), "where was that soup recipe")
}

func TestMatch_EmptyReply(t *testing.T) {
	a := New(&fakeLLM{reply: " "}, Options{}, logger.Nop())
	_, err := a.Match(context.Background(), "paris", searchCandidates)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
