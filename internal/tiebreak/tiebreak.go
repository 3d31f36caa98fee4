// Package tiebreak consults a hosted model when the deterministic matcher
// comes up empty and the gate judges the identity ambiguous enough to pay
// for a model call.
package tiebreak

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/modscout/modscout/internal/model"
	"github.com/modscout/modscout/pkg/anthropic"
)

// DefaultConfidenceThreshold gates verdict acceptance when config is silent.
const DefaultConfidenceThreshold = 0.93

const systemPrompt = `You are a strict duplicate detector for a mod database.
You receive the identity extracted from a mod landing page and a list of known database entries.
Decide whether the page refers to one of the known entries.

Rules:
- Respond with a single JSON object only: {"match": bool, "confidence": 0.0-1.0, "matched_id": "<id or empty>", "reason": "<short>"}
- Declare match=true only when exactly one known entry unambiguously applies.
- Never guess. Under any uncertainty, return match=false.`

// Exchange holds the raw request/response pair of one model call, kept for
// the audit log regardless of outcome.
type Exchange struct {
	Request  string
	Response string
}

// Arbiter asks a hosted model to break ties the deterministic stages could
// not resolve.
type Arbiter struct {
	client    anthropic.Client
	model     string
	threshold float64
}

// NewArbiter creates an Arbiter. A non-positive threshold falls back to the
// default.
func NewArbiter(client anthropic.Client, modelID string, threshold float64) *Arbiter {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &Arbiter{client: client, model: modelID, threshold: threshold}
}

// Threshold returns the acceptance cutoff in use.
func (a *Arbiter) Threshold() float64 { return a.threshold }

// Decide sends the identity and candidate list to the model and returns the
// verdict. Transport errors and unparsable output degrade to a negative
// verdict; the Exchange always reflects what actually went over the wire.
func (a *Arbiter) Decide(ctx context.Context, identity model.Identity, candidates []model.Candidate) (model.Verdict, Exchange) {
	prompt := buildPrompt(identity, candidates)
	ex := Exchange{Request: prompt}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: 512,
		System:    systemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		zap.L().Warn("tiebreak: model call failed", zap.Error(err))
		ex.Response = err.Error()
		return model.NoVerdict("model call failed"), ex
	}

	text := resp.Text()
	ex.Response = text
	resp.Usage.LogUsage(a.model, "tiebreak")

	verdict, ok := DecodeVerdict(text)
	if !ok {
		zap.L().Warn("tiebreak: unparsable verdict", zap.String("raw", truncate(text, 200)))
		return model.NoVerdict("unparsable model output"), ex
	}
	return verdict, ex
}

// Accept applies the acceptance rule: the verdict is authoritative only when
// it claims a match, clears the confidence threshold, and names an ID that
// was actually among the candidates offered.
func (a *Arbiter) Accept(v model.Verdict, candidates []model.Candidate) bool {
	if !v.Match || v.Confidence < a.threshold {
		return false
	}
	for _, c := range candidates {
		if c.ID == v.MatchedID {
			return true
		}
	}
	return false
}

func buildPrompt(identity model.Identity, candidates []model.Candidate) string {
	payload := struct {
		Identity   identityPayload    `json:"identity"`
		Candidates []candidatePayload `json:"candidates"`
	}{
		Identity: identityPayload{
			ModName: identity.ModName,
			Domain:  identity.Debug.Domain,
			Slug:    identity.Debug.URLSlug,
			Blocked: identity.Debug.IsBlocked,
		},
	}
	for _, c := range candidates {
		payload.Candidates = append(payload.Candidates, candidatePayload{
			ID: c.ID, Title: c.Title, URL: c.URL,
		})
	}

	body, _ := json.Marshal(payload)
	return fmt.Sprintf("Page identity and known entries:\n%s", body)
}

type identityPayload struct {
	ModName string `json:"mod_name"`
	Domain  string `json:"domain"`
	Slug    string `json:"slug"`
	Blocked bool   `json:"blocked"`
}

type candidatePayload struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// DecodeVerdict parses model output into a Verdict. Output wrapped in code
// fences, prose, an object, or a single-element array all decode; anything
// else is reported as unparsable rather than recovered piecemeal.
func DecodeVerdict(text string) (model.Verdict, bool) {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return model.Verdict{}, false
	}

	var v model.Verdict
	if err := json.Unmarshal([]byte(cleaned), &v); err == nil {
		return clamp(v), true
	}

	// Some models wrap the object in a list.
	var list []model.Verdict
	if err := json.Unmarshal([]byte(cleaned), &list); err == nil && len(list) == 1 {
		return clamp(list[0]), true
	}

	return model.Verdict{}, false
}

func clamp(v model.Verdict) model.Verdict {
	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}
	return v
}

// cleanJSON attempts to extract a JSON value from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find the outermost JSON value: object first, then array.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if s := strings.Index(text, "["); s >= 0 && (start < 0 || s < start) {
		if e := strings.LastIndex(text, "]"); e > s {
			start, end = s, e
		}
	}
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
