package earnings

import "fmt"

const systemPrompt = "Return ONLY valid JSON. No markdown. No extra text."

// buildPrompt is deterministic for a given ticker and text, which keeps the
// content-addressed cache honest. The schema in the prompt mirrors Brief.
func buildPrompt(ticker, text string) string {
	if ticker == "" {
		ticker = "N/A"
	}
	return fmt.Sprintf(`You are an analyst assistant. Summarize the provided earnings-related text for investors.
Return ONLY valid JSON matching this schema:

{
  "overview": { "text": string, "evidence": string } | null,
  "positives": [{ "title": string, "text": string, "evidence": string }],
  "concerns": [{ "title": string, "text": string, "evidence": string }],
  "guidance": { "text": string, "evidence": string } | null,
  "notableNumbers": [{ "label": string, "value": string, "evidence": string }],
  "meta": { "generatedAt": string, "model": string, "provider": string, "inputChars": number, "notes": string[] }
}

Rules:
- Use ONLY facts that appear explicitly in the input text.
- Every bullet MUST include an "evidence" field that is a direct quote from the input.
- Do NOT invent numbers. If a number isn't present, omit it.
- Keep overview to 1-2 sentences.
- positives: exactly 3 items if possible (otherwise fewer).
- concerns: exactly 3 items if possible (otherwise fewer).
- guidance: set null if no guidance/outlook is explicitly mentioned.
- notableNumbers: include key metrics only if explicitly stated (Revenue, EPS, margin, FCF, etc).

Context:
Ticker: %s

INPUT TEXT:
"""%s"""`, ticker, text)
}
