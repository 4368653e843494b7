package grading

import (
	"context"
	"encoding/json"
	"fmt"
)

// Grader runs the scoring pass for one label and reconciles the result.
type Grader struct {
	Client ModelClient
	Model  string
}

// rawGradingResult is the model's self-reported outcome before reconciliation.
// Score stays raw so that absent, null and non-numeric values all count as "no
// score reported" rather than a silent zero.
type rawGradingResult struct {
	RecognizedText   string            `json:"recognizedText"`
	Score            json.RawMessage   `json:"score"`
	DeductionDetails []DeductionDetail `json:"deductionDetails"`
	FeedbackContent  FeedbackContent   `json:"feedbackContent"`
}

// Grade runs one model call over the sequenced content with moderate
// temperature for fluent feedback, reconciles the score against the itemized
// deductions and returns the finalized result. Unparsable model output comes
// back as a *ParseError so the caller can fail just this label.
func (g *Grader) Grade(ctx context.Context, label string, sequenced []ContentPart, recognizedText string, strictness Strictness) (*GradingResult, error) {
	parts := make([]ContentPart, 0, len(sequenced)+1)
	parts = append(parts, sequenced...)
	parts = append(parts, TextPart(gradeUserPrompt(label, recognizedText)))

	raw, err := g.Client.Generate(ctx, parts, GenOptions{
		Model:           g.Model,
		SystemPrompt:    gradeSystemPrompt(strictness),
		Temperature:     0.7,
		TopP:            0.95,
		MaxOutputTokens: 4096,
		ForceJSON:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("grading call: %w", err)
	}

	var parsed rawGradingResult
	if err := unmarshalModelJSON(raw, &parsed); err != nil {
		return nil, &ParseError{Stage: "grading", Raw: raw, Err: err}
	}

	var rawScore *float64
	if v, ok := coerceNumberOK(parsed.Score); ok {
		rawScore = &v
	}
	score, err := Reconcile(rawScore, parsed.DeductionDetails)
	if err != nil {
		return nil, fmt.Errorf("label %q: %w", label, err)
	}

	result := &GradingResult{
		RecognizedText:   parsed.RecognizedText,
		Score:            score,
		DeductionDetails: parsed.DeductionDetails,
		FeedbackContent:  parsed.FeedbackContent,
	}
	// A pre-confirmed transcription is ground truth; the model must not
	// overwrite it.
	if recognizedText != "" {
		result.RecognizedText = recognizedText
	}
	if result.DeductionDetails == nil {
		result.DeductionDetails = []DeductionDetail{}
	}
	return result, nil
}
