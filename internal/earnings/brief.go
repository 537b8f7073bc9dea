package earnings

import (
	"fmt"
	"strings"
)

// Schema ceilings. Positives and concerns ideally come back as 3 items;
// 5 is the hard cap. Notable numbers cap at 10.
const (
	maxPoints         = 5
	maxNotableNumbers = 10
)

// Claim is a statement backed by a direct quote from the input text.
type Claim struct {
	Text     string `json:"text"`
	Evidence string `json:"evidence"`
}

// Point is a titled claim used for positives and concerns.
type Point struct {
	Title    string `json:"title"`
	Text     string `json:"text"`
	Evidence string `json:"evidence"`
}

// NotableNumber is a metric lifted verbatim from the text.
type NotableNumber struct {
	Label    string `json:"label"`
	Value    string `json:"value"`
	Evidence string `json:"evidence"`
}

// Meta is stamped server-side after validation; the model's values for
// these fields are never trusted.
type Meta struct {
	GeneratedAt string   `json:"generatedAt"`
	Model       string   `json:"model"`
	Provider    string   `json:"provider"`
	InputChars  int      `json:"inputChars"`
	Notes       []string `json:"notes"`
}

// Brief is the structured earnings summary.
type Brief struct {
	Overview       *Claim          `json:"overview"`
	Positives      []Point         `json:"positives"`
	Concerns       []Point         `json:"concerns"`
	Guidance       *Claim          `json:"guidance"`
	NotableNumbers []NotableNumber `json:"notableNumbers"`
	Meta           Meta            `json:"meta"`
}

// SchemaError reports every structural violation found in a decoded brief.
// A brief that fails validation is discarded whole, never partially trusted.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("brief schema: %d violation(s): %s", len(e.Violations), strings.Join(e.Violations, "; "))
}

// Validate checks the decoded model output against the strict structural
// schema: nullable sections, required non-empty strings, a mandatory
// evidence quote on every list item, bounded list lengths.
func (b *Brief) Validate() error {
	var v []string

	checkClaim := func(c *Claim, name string) {
		if c == nil {
			return
		}
		if strings.TrimSpace(c.Text) == "" {
			v = append(v, name+".text is empty")
		}
		if strings.TrimSpace(c.Evidence) == "" {
			v = append(v, name+".evidence is empty")
		}
	}
	checkClaim(b.Overview, "overview")
	checkClaim(b.Guidance, "guidance")

	checkPoints := func(ps []Point, name string) {
		if len(ps) > maxPoints {
			v = append(v, fmt.Sprintf("%s has %d items, max %d", name, len(ps), maxPoints))
		}
		for i, p := range ps {
			if strings.TrimSpace(p.Title) == "" {
				v = append(v, fmt.Sprintf("%s[%d].title is empty", name, i))
			}
			if strings.TrimSpace(p.Text) == "" {
				v = append(v, fmt.Sprintf("%s[%d].text is empty", name, i))
			}
			if strings.TrimSpace(p.Evidence) == "" {
				v = append(v, fmt.Sprintf("%s[%d].evidence is empty", name, i))
			}
		}
	}
	checkPoints(b.Positives, "positives")
	checkPoints(b.Concerns, "concerns")

	if len(b.NotableNumbers) > maxNotableNumbers {
		v = append(v, fmt.Sprintf("notableNumbers has %d items, max %d", len(b.NotableNumbers), maxNotableNumbers))
	}
	for i, n := range b.NotableNumbers {
		if strings.TrimSpace(n.Label) == "" {
			v = append(v, fmt.Sprintf("notableNumbers[%d].label is empty", i))
		}
		if strings.TrimSpace(n.Value) == "" {
			v = append(v, fmt.Sprintf("notableNumbers[%d].value is empty", i))
		}
		if strings.TrimSpace(n.Evidence) == "" {
			v = append(v, fmt.Sprintf("notableNumbers[%d].evidence is empty", i))
		}
	}

	if b.Meta.InputChars < 0 {
		v = append(v, "meta.inputChars is negative")
	}

	if len(v) > 0 {
		return &SchemaError{Violations: v}
	}
	return nil
}
