package priority

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/modscout/modscout/pkg/anthropic"
	"github.com/modscout/modscout/pkg/notion"
)

const classifySystem = `You estimate classification inputs for a Sims 4 mod tracker.
Given a mod's name and notes, estimate three axis scores, each 0.0-3.0:
- removal_impact: how disruptive removing the mod would be to an ongoing save
- framework: how many other mods depend on it as a library/framework
- essential: how central it is to the player's core gameplay loop

Also pick exactly one category code from this closed set:
1A Gameplay Overhaul, 2B UI & Quality of Life, 3C Family & Relationships,
4D CAS & Appearance, 5E Build & Buy, 6F Utility & Frameworks.

Respond with a single JSON object only:
{"removal_impact": float, "framework": float, "essential": float, "code": "<code>"}`

// Classifier assigns priorities to known mods using model-estimated axis
// scores over properties retrieved from the database.
type Classifier struct {
	notion notion.Client
	ai     anthropic.Client
	model  string
}

// NewClassifier wires the classifier to its two external services.
func NewClassifier(nc notion.Client, ai anthropic.Client, modelID string) *Classifier {
	return &Classifier{notion: nc, ai: ai, model: modelID}
}

// ClassifyPage retrieves a mod page by ID and classifies it.
func (c *Classifier) ClassifyPage(ctx context.Context, pageID string) (*Classification, error) {
	page, err := c.notion.GetPage(ctx, pageID)
	if err != nil {
		return nil, eris.Wrapf(err, "priority: fetch page %s", pageID)
	}

	name, notes := pageText(page)
	if name == "" {
		return nil, eris.Errorf("priority: page %s has no title", pageID)
	}
	return c.Classify(ctx, name, notes)
}

// Classify estimates axis scores for the given mod and computes its priority.
func (c *Classifier) Classify(ctx context.Context, name, notes string) (*Classification, error) {
	prompt := fmt.Sprintf("Mod: %s\nNotes: %s", name, notes)

	resp, err := c.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: 256,
		System:    classifySystem,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "priority: estimate scores")
	}
	resp.Usage.LogUsage(c.model, "classify")

	estimate, err := decodeEstimate(resp.Text())
	if err != nil {
		return nil, err
	}

	cls := &Classification{Scores: estimate.AxisScores}
	cls.Priority, cls.Score = Compute(estimate.AxisScores)

	if label, ok := CategoryLabel(estimate.Code); ok {
		cls.CategoryCode = estimate.Code
		cls.CategoryLabel = label
	} else {
		zap.L().Warn("priority: model returned unknown category code",
			zap.String("code", estimate.Code),
		)
		cls.CategoryCode = uncategorizedCode
		cls.CategoryLabel = uncategorizedLabel
	}
	return cls, nil
}

type estimate struct {
	AxisScores
	Code string `json:"code"`
}

func decodeEstimate(text string) (*estimate, error) {
	cleaned := text
	if i := strings.Index(cleaned, "{"); i >= 0 {
		if j := strings.LastIndex(cleaned, "}"); j > i {
			cleaned = cleaned[i : j+1]
		}
	}
	var e estimate
	if err := json.Unmarshal([]byte(cleaned), &e); err != nil {
		return nil, eris.Wrap(err, "priority: unparsable estimate")
	}
	return &e, nil
}

// pageText pulls the title and any rich text properties off a page. The
// property names vary per database, so the first title-typed property wins
// and every rich_text property contributes to the notes.
func pageText(p *notionapi.Page) (name, notes string) {
	var parts []string
	for key, prop := range p.Properties {
		switch tp := prop.(type) {
		case *notionapi.TitleProperty:
			if name == "" {
				name = plainText(tp.Title)
			}
		case *notionapi.RichTextProperty:
			if txt := plainText(tp.RichText); txt != "" {
				parts = append(parts, key+": "+txt)
			}
		}
	}
	return name, strings.Join(parts, "\n")
}

func plainText(rich []notionapi.RichText) string {
	var out string
	for _, rt := range rich {
		out += rt.PlainText
	}
	return out
}
