package grading

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FileRole is the semantic role of an uploaded file in the grading prompt.
type FileRole string

const (
	RoleStudent     FileRole = "student"
	RoleProblem     FileRole = "problem"
	RoleModelAnswer FileRole = "modelAnswer"
	RoleOther       FileRole = "other"
)

// UploadedFilePart is one uploaded file (or one page of an uploaded PDF,
// in which case several parts share SourceFileName with distinct PageNumber).
// Parts are immutable after construction and live only for the request.
type UploadedFilePart struct {
	Buffer         []byte
	MIMEType       string
	Name           string
	SourceFileName string
	PageNumber     int // 0 = not a paged part
	Role           FileRole
}

// CategorizedFiles are the four ordered role buckets produced by Categorize.
type CategorizedFiles struct {
	StudentFiles     []UploadedFilePart
	ProblemFiles     []UploadedFilePart
	ModelAnswerFiles []UploadedFilePart
	OtherFiles       []UploadedFilePart
}

// ContentPart is one element of the multimodal prompt sequence: either a text
// marker or an inlined binary attachment.
type ContentPart struct {
	Text string
	MIME string
	Data []byte
}

// IsText reports whether the part is a text marker.
func (p ContentPart) IsText() bool { return len(p.Data) == 0 }

// TextPart builds a text content part.
func TextPart(text string) ContentPart { return ContentPart{Text: text} }

// BlobPart builds a binary content part.
func BlobPart(mime string, data []byte) ContentPart { return ContentPart{MIME: mime, Data: data} }

// Strictness selects the rubric severity for the grading pass.
type Strictness string

const (
	StrictnessLenient  Strictness = "lenient"
	StrictnessStandard Strictness = "standard"
	StrictnessStrict   Strictness = "strict"
)

// ParseStrictness normalizes a client value, defaulting to standard.
func ParseStrictness(raw string) Strictness {
	switch Strictness(strings.ToLower(strings.TrimSpace(raw))) {
	case StrictnessLenient:
		return StrictnessLenient
	case StrictnessStrict:
		return StrictnessStrict
	default:
		return StrictnessStandard
	}
}

// DeductionDetail is one itemized penalty reported by the model.
type DeductionDetail struct {
	Reason              string  `json:"reason"`
	DeductionPercentage float64 `json:"deductionPercentage"`
}

// UnmarshalJSON tolerates the model emitting the percentage as a number, a
// numeric string ("15%" included) or garbage; anything non-numeric counts 0.
func (d *DeductionDetail) UnmarshalJSON(data []byte) error {
	var raw struct {
		Reason              string          `json:"reason"`
		DeductionPercentage json.RawMessage `json:"deductionPercentage"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Reason = raw.Reason
	d.DeductionPercentage = coerceNumber(raw.DeductionPercentage)
	return nil
}

func coerceNumber(raw json.RawMessage) float64 {
	v, _ := coerceNumberOK(raw)
	return v
}

// coerceNumberOK reports whether raw actually carried a number; callers that
// must distinguish "zero" from "no value at all" check the second return.
func coerceNumberOK(raw json.RawMessage) (float64, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// FeedbackContent is the prose feedback block of a grading result.
type FeedbackContent struct {
	GoodPoint         string `json:"goodPoint"`
	ImprovementAdvice string `json:"improvementAdvice"`
	RewriteExample    string `json:"rewriteExample"`
}

// GradingResult is the finalized outcome for one label. Score is always an
// integer multiple of 10 in [0,100] after reconciliation.
type GradingResult struct {
	RecognizedText   string            `json:"recognizedText"`
	Score            int               `json:"score"`
	DeductionDetails []DeductionDetail `json:"deductionDetails"`
	FeedbackContent  FeedbackContent   `json:"feedbackContent"`
}

// ParseError is returned when the model output cannot be parsed as the
// expected JSON even after stripping code fences. It carries the raw text for
// diagnostics and is scoped to a single label, never the whole batch.
type ParseError struct {
	Stage string
	Raw   string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: unparsable model response: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
