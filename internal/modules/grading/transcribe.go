package grading

import (
	"context"
	"fmt"
)

// Transcriber is the strict OCR stage run before grading. It is advisory: a
// failure here must never fail the label, the caller logs and proceeds.
type Transcriber interface {
	Transcribe(ctx context.Context, studentFiles []UploadedFilePart) (string, error)
}

// NoopTranscriber disables the stage; the grading pass reads the handwriting
// itself.
type NoopTranscriber struct{}

func (NoopTranscriber) Transcribe(context.Context, []UploadedFilePart) (string, error) {
	return "", nil
}

// ModelTranscriber runs a zero-temperature verbatim pass over the student
// files. The system contract forbids inferring illegible glyphs; they come
// back as the explicit placeholder instead.
type ModelTranscriber struct {
	Client ModelClient
	Model  string
}

func (t *ModelTranscriber) Transcribe(ctx context.Context, studentFiles []UploadedFilePart) (string, error) {
	if len(studentFiles) == 0 {
		return "", nil
	}

	parts := make([]ContentPart, 0, len(studentFiles)*2+1)
	for _, f := range studentFiles {
		parts = append(parts, TextPart(fileMarker(f)), BlobPart(f.MIMEType, f.Buffer))
	}
	parts = append(parts, TextPart(transcribeUserPrompt))

	raw, err := t.Client.Generate(ctx, parts, GenOptions{
		Model:           t.Model,
		SystemPrompt:    transcribeSystemPrompt,
		Temperature:     0,
		TopP:            0.1,
		MaxOutputTokens: 2048,
		ForceJSON:       true,
	})
	if err != nil {
		return "", fmt.Errorf("transcription call: %w", err)
	}

	var out struct {
		RecognizedText string `json:"recognizedText"`
	}
	if err := unmarshalModelJSON(raw, &out); err != nil {
		return "", &ParseError{Stage: "transcription", Raw: raw, Err: err}
	}
	return out.RecognizedText, nil
}
