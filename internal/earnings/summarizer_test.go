package earnings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketlens/internal/cache"
)

const validBriefJSON = `{
	"overview": {"text": "Revenue grew 12% year over year.", "evidence": "Total revenue was $94.9 billion, up 12%."},
	"positives": [
		{"title": "Services growth", "text": "Services set a record.", "evidence": "Services revenue reached an all-time high of $25 billion."}
	],
	"concerns": [
		{"title": "China softness", "text": "Greater China declined.", "evidence": "Greater China revenue declined 8% year over year."}
	],
	"guidance": null,
	"notableNumbers": [
		{"label": "Revenue", "value": "$94.9B", "evidence": "Total revenue was $94.9 billion, up 12%."}
	]
}`

var longText = strings.Repeat("Quarterly results commentary. ", 20) // well past the minimum

// fakeClient returns canned output and counts completions.
type fakeClient struct {
	out   string
	err   error
	calls atomic.Int64
}

func (c *fakeClient) Complete(ctx context.Context, system, user string) (string, error) {
	c.calls.Add(1)
	return c.out, c.err
}

func newSummarizer(c Client) *Summarizer {
	return &Summarizer{
		Client:   c,
		Cache:    cache.New[*Brief](16),
		Provider: "openai",
		Model:    "gpt-4.1-mini",
		TTL:      time.Hour,
		Log:      zerolog.Nop(),
	}
}

func TestSummarize(t *testing.T) {
	fc := &fakeClient{out: validBriefJSON}
	s := newSummarizer(fc)

	b, err := s.Summarize(context.Background(), "AAPL", longText)
	require.NoError(t, err)

	require.NotNil(t, b.Overview)
	assert.Equal(t, "Revenue grew 12% year over year.", b.Overview.Text)
	assert.Nil(t, b.Guidance)
	require.Len(t, b.Positives, 1)
	assert.Equal(t, "Services growth", b.Positives[0].Title)

	// meta is stamped server-side
	assert.Equal(t, "gpt-4.1-mini", b.Meta.Model)
	assert.Equal(t, "openai", b.Meta.Provider)
	assert.Equal(t, len(strings.TrimSpace(longText)), b.Meta.InputChars)
	assert.NotEmpty(t, b.Meta.GeneratedAt)
	_, perr := time.Parse(time.RFC3339, b.Meta.GeneratedAt)
	assert.NoError(t, perr)
	assert.NotNil(t, b.Meta.Notes)
	assert.Empty(t, b.Meta.Notes)
}

func TestSummarizeCachesByContent(t *testing.T) {
	fc := &fakeClient{out: validBriefJSON}
	s := newSummarizer(fc)

	first, err := s.Summarize(context.Background(), "AAPL", longText)
	require.NoError(t, err)
	assert.NotContains(t, first.Meta.Notes, "cached")

	second, err := s.Summarize(context.Background(), "AAPL", longText)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fc.calls.Load(), "identical input must not call the model twice")
	assert.Contains(t, second.Meta.Notes, "cached")

	// the stored entry is not mutated by replay
	third, err := s.Summarize(context.Background(), "AAPL", longText)
	require.NoError(t, err)
	assert.Equal(t, []string{"cached"}, third.Meta.Notes)

	// different ticker, same text: separate entry
	_, err = s.Summarize(context.Background(), "MSFT", longText)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fc.calls.Load())
}

func TestSummarizeModelChangesCacheKey(t *testing.T) {
	fc := &fakeClient{out: validBriefJSON}
	s := newSummarizer(fc)

	_, err := s.Summarize(context.Background(), "AAPL", longText)
	require.NoError(t, err)

	s.Model = "gpt-4o"
	_, err = s.Summarize(context.Background(), "AAPL", longText)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fc.calls.Load())
}

func TestSummarizeTooShort(t *testing.T) {
	fc := &fakeClient{out: validBriefJSON}
	s := newSummarizer(fc)

	_, err := s.Summarize(context.Background(), "AAPL", "too short")
	assert.ErrorIs(t, err, ErrTextTooShort)
	assert.Zero(t, fc.calls.Load())

	// whitespace padding does not help
	_, err = s.Summarize(context.Background(), "AAPL", "  x  "+strings.Repeat(" ", 500))
	assert.ErrorIs(t, err, ErrTextTooShort)
}

func TestSummarizeTruncatesLongInput(t *testing.T) {
	fc := &fakeClient{out: validBriefJSON}
	s := newSummarizer(fc)
	s.MaxChars = 1000

	b, err := s.Summarize(context.Background(), "AAPL", strings.Repeat("a", 5000))
	require.NoError(t, err)
	assert.Equal(t, 1000, b.Meta.InputChars)
}

func TestSummarizeNotConfigured(t *testing.T) {
	s := newSummarizer(nil)

	_, err := s.Summarize(context.Background(), "AAPL", longText)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSummarizeStripsFences(t *testing.T) {
	fc := &fakeClient{out: "```json\n" + validBriefJSON + "\n```"}
	s := newSummarizer(fc)

	b, err := s.Summarize(context.Background(), "AAPL", longText)
	require.NoError(t, err)
	require.NotNil(t, b.Overview)
}

func TestSummarizeRepairsAlmostJSON(t *testing.T) {
	// trailing garbage the strict parser rejects
	fc := &fakeClient{out: validBriefJSON + "\nHope this helps!"}
	s := newSummarizer(fc)

	b, err := s.Summarize(context.Background(), "AAPL", longText)
	require.NoError(t, err)
	require.NotNil(t, b.Overview)
}

func TestSummarizeRejectsNonJSON(t *testing.T) {
	fc := &fakeClient{out: "I am sorry, I cannot summarize this."}
	s := newSummarizer(fc)

	_, err := s.Summarize(context.Background(), "AAPL", longText)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-JSON")
}

func TestSummarizeRejectsMissingEvidence(t *testing.T) {
	fc := &fakeClient{out: `{
		"overview": {"text": "Revenue grew.", "evidence": ""},
		"positives": [{"title": "Growth", "text": "Up.", "evidence": ""}],
		"concerns": [],
		"guidance": null,
		"notableNumbers": []
	}`}
	s := newSummarizer(fc)

	_, err := s.Summarize(context.Background(), "AAPL", longText)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Violations, "overview.evidence is empty")
	assert.Contains(t, schemaErr.Violations, "positives[0].evidence is empty")

	// a failed validation is never cached
	assert.Equal(t, 0, s.Cache.Len())
}

func TestSummarizeClientError(t *testing.T) {
	fc := &fakeClient{err: errors.New("upstream 500")}
	s := newSummarizer(fc)

	_, err := s.Summarize(context.Background(), "AAPL", longText)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm call failed")
}

func TestValidateCeilings(t *testing.T) {
	b := &Brief{}
	for i := 0; i < 6; i++ {
		b.Positives = append(b.Positives, Point{Title: "t", Text: "x", Evidence: "e"})
	}
	for i := 0; i < 11; i++ {
		b.NotableNumbers = append(b.NotableNumbers, NotableNumber{Label: "l", Value: "v", Evidence: "e"})
	}

	err := b.Validate()
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Violations, "positives has 6 items, max 5")
	assert.Contains(t, schemaErr.Violations, "notableNumbers has 11 items, max 10")
}

func TestSummarizeRejectsEmptyObject(t *testing.T) {
	fc := &fakeClient{out: `{}`}
	s := newSummarizer(fc)

	_, err := s.Summarize(context.Background(), "AAPL", longText)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Violations, "overview is missing")
	assert.Contains(t, schemaErr.Violations, "positives is missing")
	assert.Contains(t, schemaErr.Violations, "concerns is missing")
	assert.Contains(t, schemaErr.Violations, "guidance is missing")
	assert.Contains(t, schemaErr.Violations, "notableNumbers is missing")
	assert.Equal(t, 0, s.Cache.Len())
}

func TestSummarizeRejectsNullArrays(t *testing.T) {
	fc := &fakeClient{out: `{
		"overview": null,
		"positives": null,
		"concerns": [],
		"guidance": null,
		"notableNumbers": []
	}`}
	s := newSummarizer(fc)

	_, err := s.Summarize(context.Background(), "AAPL", longText)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Violations, "positives must be an array")
}

func TestSummarizeEmitsArraysNotNull(t *testing.T) {
	fc := &fakeClient{out: `{
		"overview": {"text": "Quiet quarter.", "evidence": "Results were in line with expectations."},
		"positives": [],
		"concerns": [],
		"guidance": null,
		"notableNumbers": []
	}`}
	s := newSummarizer(fc)

	b, err := s.Summarize(context.Background(), "AAPL", longText)
	require.NoError(t, err)

	raw, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"positives":[]`)
	assert.Contains(t, string(raw), `"concerns":[]`)
	assert.Contains(t, string(raw), `"notableNumbers":[]`)
	assert.NotContains(t, string(raw), `"positives":null`)
}

func TestSummarizeTruncatesOnRuneBoundary(t *testing.T) {
	fc := &fakeClient{out: validBriefJSON}
	s := newSummarizer(fc)
	s.MinChars = 10
	s.MaxChars = 500

	text := strings.Repeat("umsätze über plan ", 100) // multi-byte runes well past the cap
	b, err := s.Summarize(context.Background(), "AAPL", text)
	require.NoError(t, err)
	assert.Equal(t, 500, b.Meta.InputChars)

	assert.True(t, utf8.ValidString(s.sanitize(text)))
	assert.Equal(t, 500, utf8.RuneCountInString(s.sanitize(text)))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`{"a":1}`))
}
