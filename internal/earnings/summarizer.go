// Package earnings turns pasted earnings text into a structured, cached
// brief via a constrained LLM call. Identical inputs under the same
// provider/model configuration always map to the same cache entry; that
// content-addressing is the central correctness property here.
package earnings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/rs/zerolog"

	"marketlens/internal/cache"
)

// ErrTextTooShort rejects inputs that are too small to summarize usefully.
var ErrTextTooShort = errors.New("paste at least ~200 characters of earnings text")

// ErrNotConfigured is returned when no LLM provider is wired; surfaced at
// call time, never as a startup crash.
var ErrNotConfigured = errors.New("no LLM provider configured")

// Input sanitation bounds.
const (
	defaultMaxChars = 40_000
	defaultMinChars = 200
)

const defaultTTL = 24 * time.Hour

// Summarizer builds EarningsBriefs through one LLM client and an injected
// TTL cache.
type Summarizer struct {
	Client   Client
	Cache    *cache.Cache[*Brief]
	Provider string // e.g. "openai", part of the cache key
	Model    string
	// TTL for validated results. Defaults to 24h.
	TTL time.Duration
	// MaxChars caps input length; MinChars rejects below. Defaults 40000/200.
	MaxChars int
	MinChars int
	Log      zerolog.Logger
}

// Summarize validates the pasted text, serves a cached brief when the same
// provider/model/ticker/text has been summarized before, and otherwise
// calls the model, validates its output, and caches the result.
func (s *Summarizer) Summarize(ctx context.Context, ticker, rawText string) (*Brief, error) {
	text := s.sanitize(rawText)
	minChars := s.MinChars
	if minChars <= 0 {
		minChars = defaultMinChars
	}
	if utf8.RuneCountInString(text) < minChars {
		return nil, ErrTextTooShort
	}
	if s.Client == nil {
		return nil, ErrNotConfigured
	}

	key := s.cacheKey(ticker, text)
	if s.Cache != nil {
		if b, _, ok := s.Cache.Get(key); ok {
			return b.replayed(), nil
		}
	}

	raw, err := s.Client.Complete(ctx, systemPrompt, buildPrompt(ticker, text))
	if err != nil {
		return nil, fmt.Errorf("llm call failed: %w", err)
	}

	brief, err := decodeBrief(raw)
	if err != nil {
		s.Log.Warn().Err(err).Int("raw_len", len(raw)).Msg("model output rejected")
		return nil, err
	}
	if err := brief.Validate(); err != nil {
		s.Log.Warn().Err(err).Msg("model output failed schema validation")
		return nil, err
	}

	// Trustworthy metadata is stamped here, never taken from the model.
	brief.Meta.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	brief.Meta.Model = s.Model
	brief.Meta.Provider = s.Provider
	brief.Meta.InputChars = utf8.RuneCountInString(text)
	if brief.Meta.Notes == nil {
		brief.Meta.Notes = []string{}
	}

	if s.Cache != nil {
		ttl := s.TTL
		if ttl <= 0 {
			ttl = defaultTTL
		}
		s.Cache.Set(key, brief, ttl)
	}
	return brief, nil
}

// sanitize trims and caps the input. The cap counts characters, not bytes,
// so multi-byte text is never cut mid-rune.
func (s *Summarizer) sanitize(text string) string {
	t := strings.TrimSpace(text)
	maxChars := s.MaxChars
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	if utf8.RuneCountInString(t) > maxChars {
		rs := []rune(t)
		t = string(rs[:maxChars])
	}
	return t
}

// cacheKey is content-addressed over everything that changes the output.
func (s *Summarizer) cacheKey(ticker, text string) string {
	sum := sha256.Sum256([]byte(s.Provider + ":" + s.Model + ":" + ticker + ":" + text))
	return "earnings:v1:" + hex.EncodeToString(sum[:])
}

// decodeBrief parses the raw model output. Models wrap JSON in markdown
// fences often enough that stripping them first is cheaper than arguing;
// whatever still fails a strict parse gets one repair attempt before the
// request is failed. Schema violations found during parsing (missing
// sections) surface as *SchemaError, not as a parse failure.
func decodeBrief(raw string) (*Brief, error) {
	cleaned := stripFences(raw)
	b, err := parseBrief(cleaned)
	if err == nil {
		return b, nil
	}
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		return nil, err
	}
	repaired, rerr := jsonrepair.RepairJSON(cleaned)
	if rerr != nil {
		return nil, fmt.Errorf("model returned non-JSON output")
	}
	b, err = parseBrief(repaired)
	if err == nil {
		return b, nil
	}
	if errors.As(err, &schemaErr) {
		return nil, err
	}
	return nil, fmt.Errorf("model returned non-JSON output")
}

// requiredSections are the top-level keys the model must emit. The nullable
// ones may be null but never absent; the array ones must be arrays, so an
// empty reply like {} is a schema failure rather than an empty brief.
var requiredSections = []struct {
	key   string
	array bool
}{
	{"overview", false},
	{"positives", true},
	{"concerns", true},
	{"guidance", false},
	{"notableNumbers", true},
}

func parseBrief(s string) (*Brief, error) {
	var sections map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &sections); err != nil {
		return nil, err
	}
	var violations []string
	for _, sec := range requiredSections {
		raw, ok := sections[sec.key]
		switch {
		case !ok:
			violations = append(violations, sec.key+" is missing")
		case sec.array && string(raw) == "null":
			violations = append(violations, sec.key+" must be an array")
		}
	}
	if len(violations) > 0 {
		return nil, &SchemaError{Violations: violations}
	}
	var b Brief
	if err := json.Unmarshal([]byte(s), &b); err != nil {
		return nil, err
	}
	// Arrays marshal as [] rather than null, matching the input schema.
	if b.Positives == nil {
		b.Positives = []Point{}
	}
	if b.Concerns == nil {
		b.Concerns = []Point{}
	}
	if b.NotableNumbers == nil {
		b.NotableNumbers = []NotableNumber{}
	}
	return &b, nil
}

func stripFences(raw string) string {
	t := strings.TrimSpace(raw)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

// replayed returns a cache-hit copy with an extra "cached" note, leaving
// the stored entry untouched.
func (b *Brief) replayed() *Brief {
	out := *b
	out.Meta.Notes = append(append([]string{}, b.Meta.Notes...), "cached")
	return &out
}
