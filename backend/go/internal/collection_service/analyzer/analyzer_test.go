package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"Memora/backend/go/internal/models"
	"Memora/backend/go/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	reply     string
	err       error
	fragments []string
	streamErr error
	lastReq   *models.GenerateContentRequest
}

func textResp(s string) *models.GenerateContentResponse {
	return &models.GenerateContentResponse{Content: []models.Content{{Role: models.SpeakerModel, Parts: []*models.Part{{Text: s}}}}}
}

func (f *fakeLLM) GenerateContent(_ context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return textResp(f.reply), nil
}

func (f *fakeLLM) GenerateContentStream(ctx context.Context, req *models.GenerateContentRequest) (<-chan *models.GenerateContentResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan *models.GenerateContentResponse)
	go func() {
		defer close(ch)
		for _, s := range f.fragments {
			select {
			case ch <- textResp(s):
			case <-ctx.Done():
				return
			}
		}
		if f.streamErr != nil {
			select {
			case ch <- &models.GenerateContentResponse{Err: f.streamErr}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

func systemText(req *models.GenerateContentRequest) string {
	return req.Content[0].Parts[0].Text
}

func userText(req *models.GenerateContentRequest) string {
	return req.Content[len(req.Content)-1].Parts[0].Text
}

func TestClassify_ParsesFencedJSON(t *testing.T) {
	llm := &fakeLLM{reply: "Sure!\n```json\n{\"category\": \"Travel\", \"category_emoji\": \"✈️\", \"tags\": [\"paris\", \" trip \", \"paris\"]}\n```"}
	a := New(llm, Options{}, logger.Nop())

	c, err := a.Classify(context.Background(), "We went to Paris", []models.Category{{Name: "Travel", Emoji: "✈️"}, {Name: "Food", Emoji: "🍜"}})
	require.NoError(t, err)
	assert.Equal(t, "Travel", c.Category)
	assert.Equal(t, "✈️", c.Emoji)
	assert.Equal(t, []string{"paris", "trip"}, c.Tags)
	assert.Contains(t, systemText(llm.lastReq), "Travel(✈️), Food(🍜)")
}

func TestClassify_MalformedOutputYieldsEmptyFields(t *testing.T) {
	a := New(&fakeLLM{reply: "I think this is about travel."}, Options{}, logger.Nop())
	c, err := a.Classify(context.Background(), "content", nil)
	require.NoError(t, err)
	assert.Empty(t, c.Category)
	assert.Empty(t, c.Emoji)
	assert.Empty(t, c.Tags)
}

func TestClassify_CapsTags(t *testing.T) {
	a := New(&fakeLLM{reply: `{"category":"x","tags":"a,b,c,d,e,f,g"}`}, Options{}, logger.Nop())
	c, err := a.Classify(context.Background(), "content", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, c.Tags)
}

func TestClassify_FitsColumnWidths(t *testing.T) {
	long := strings.Repeat("旅", 80)
	tag := strings.Repeat("t", 100)
	reply := fmt.Sprintf(`{"category":%q,"category_emoji":%q,"tags":[%q,%q,%q,%q]}`,
		long, strings.Repeat("✈", 12), tag+"1", tag+"2", tag+"3", tag+"4")
	a := New(&fakeLLM{reply: reply}, Options{}, logger.Nop())

	c, err := a.Classify(context.Background(), "content", nil)
	require.NoError(t, err)
	assert.Equal(t, models.MaxCategoryNameLength, utf8.RuneCountInString(c.Category))
	assert.Equal(t, models.MaxEmojiLength, utf8.RuneCountInString(c.Emoji))
	assert.Equal(t, []string{tag + "1", tag + "2"}, c.Tags)
	assert.LessOrEqual(t, utf8.RuneCountInString(strings.Join(c.Tags, ",")), models.MaxTagsLength)
}

func TestClassify_ClipsSingleOversizedTag(t *testing.T) {
	reply := fmt.Sprintf(`{"category":"x","tags":[%q,"b"]}`, strings.Repeat("a", 300))
	a := New(&fakeLLM{reply: reply}, Options{}, logger.Nop())

	c, err := a.Classify(context.Background(), "content", nil)
	require.NoError(t, err)
	require.Len(t, c.Tags, 1)
	assert.Equal(t, strings.Repeat("a", models.MaxTagsLength), c.Tags[0])
}

func TestClassify_Errors(t *testing.T) {
	_, err := New(&fakeLLM{reply: "   "}, Options{}, logger.Nop()).Classify(context.Background(), "c", nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)

	boom := errors.New("boom")
	_, err = New(&fakeLLM{err: boom}, Options{}, logger.Nop()).Classify(context.Background(), "c", nil)
	assert.ErrorIs(t, err, boom)
}

func TestClassify_TruncatesContentAndAddsLanguage(t *testing.T) {
	llm := &fakeLLM{reply: `{"category":"x"}`}
	a := New(llm, Options{MaxContentRunes: 4, Language: "Chinese"}, logger.Nop())
	_, err := a.Classify(context.Background(), "巴黎之旅很好", nil)
	require.NoError(t, err)
	assert.Equal(t, "巴黎之旅", userText(llm.lastReq))
	assert.True(t, strings.HasSuffix(systemText(llm.lastReq), "Write every text value in Chinese."))
}

func TestSummarize_ForwardsEveryFragment(t *testing.T) {
	a := New(&fakeLLM{fragments: []string{`{"summary": "Paris`, "", ` trip."}`}}, Options{}, logger.Nop())
	ch, err := a.Summarize(context.Background(), "content")
	require.NoError(t, err)

	var got []string
	for f := range ch {
		require.NoError(t, f.Err)
		got = append(got, f.Text)
	}
	assert.Equal(t, []string{`{"summary": "Paris`, "", ` trip."}`}, got)
	assert.Equal(t, "Paris trip.", SummaryText(strings.Join(got, "")))
}

func TestSummarize_StreamErrorIsLastFragment(t *testing.T) {
	boom := errors.New("connection reset")
	a := New(&fakeLLM{fragments: []string{"part"}, streamErr: boom}, Options{}, logger.Nop())
	ch, err := a.Summarize(context.Background(), "content")
	require.NoError(t, err)

	var frags []Fragment
	for f := range ch {
		frags = append(frags, f)
	}
	require.Len(t, frags, 2)
	assert.Equal(t, "part", frags[0].Text)
	assert.ErrorIs(t, frags[1].Err, boom)
}

func TestSummarize_OpenFailure(t *testing.T) {
	_, err := New(&fakeLLM{err: errors.New("refused")}, Options{}, logger.Nop()).Summarize(context.Background(), "c")
	assert.Error(t, err)
}

func TestSummaryText_FallsBackToRaw(t *testing.T) {
	assert.Equal(t, "plain words", SummaryText("plain words"))
	assert.Equal(t, `{"summary": 3}`, SummaryText(`{"summary": 3}`))
	assert.Equal(t, "ok", SummaryText("```json\n{\"summary\":\"ok\"}\n```"))
}
