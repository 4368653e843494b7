package grading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiten-app/core/internal/config"
	"github.com/saiten-app/core/internal/modules/regrade"
	"github.com/saiten-app/core/internal/modules/usage"
)

// Per-label model calls run in parallel, bounded to respect upstream rate
// limits.
const labelConcurrency = 2

// ErrQuotaExceeded rejects the whole batch before any model call when the
// quota service vetoes the paid labels.
var ErrQuotaExceeded = errors.New("usage quota exceeded")

// Regrade modes reported per label.
const (
	RegradeModeNew  = "new"  // fresh allowance issued after a paid grading
	RegradeModeFree = "free" // a token was redeemed, re-issued with remaining-1
	RegradeModeNone = "none" // no token available (failure or tokens disabled)
)

// Request is one grading batch for a single authenticated user.
type Request struct {
	UserID            string
	Labels            []string
	Files             []UploadedFilePart
	PageRanges        *PageRanges
	ConfirmedTexts    map[string]string
	RegradeTokens     map[string]string
	Strictness        Strictness
	DeviceFingerprint string
}

// LabelOutcome is the per-label slice of the batch response. Exactly one of
// Result and Error is set.
type LabelOutcome struct {
	Label            string         `json:"label"`
	Result           *GradingResult `json:"result,omitempty"`
	Error            string         `json:"error,omitempty"`
	Strictness       Strictness     `json:"strictness"`
	RegradeToken     string         `json:"regradeToken,omitempty"`
	RegradeRemaining *int           `json:"regradeRemaining,omitempty"`
	RegradeMode      string         `json:"regradeMode"`
}

// BatchResponse is the full grading response.
type BatchResponse struct {
	Results   []LabelOutcome `json:"results"`
	UsageInfo *usage.Info    `json:"usageInfo,omitempty"`
}

// Service orchestrates the grading pipeline: quota gate, categorization,
// per-label transcription+grading, usage increments and token issuance. It is
// stateless between requests.
type Service struct {
	logger      *zap.Logger
	client      ModelClient
	provider    *config.AIProvider
	transcriber Transcriber
	tokens      *regrade.Service
	quota       usage.Quota
	timeout     time.Duration
}

// NewService wires the pipeline dependencies. timeout caps the model-call
// phase of each batch.
func NewService(logger *zap.Logger, client ModelClient, provider *config.AIProvider, transcriber Transcriber, tokens *regrade.Service, quota usage.Quota, timeout time.Duration) *Service {
	return &Service{
		logger:      logger,
		client:      client,
		provider:    provider,
		transcriber: transcriber,
		tokens:      tokens,
		quota:       quota,
		timeout:     timeout,
	}
}

// Grade runs the batch. Failures are scoped to single labels wherever
// possible; only validation and the quota veto reject the whole request.
func (s *Service) Grade(ctx context.Context, req *Request) (*BatchResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	// Resolve free-regrade coverage first: the quota veto applies only to
	// labels the tokens do not cover.
	freeCoverage := s.resolveFreeCoverage(req)
	paidLabels := 0
	for _, label := range req.Labels {
		if _, ok := freeCoverage[label]; !ok {
			paidLabels++
		}
	}

	if paidLabels > 0 {
		check, err := s.quota.CanUse(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("quota check: %w", err)
		}
		if !check.Allowed {
			return nil, ErrQuotaExceeded
		}
	}

	categorized := Categorize(req.Files, req.PageRanges)
	sequenced := BuildSequence(categorized)
	grader := &Grader{Client: s.client, Model: s.provider.GradeModel}

	modelCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		modelCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	outcomes := make([]LabelOutcome, len(req.Labels))
	g, groupCtx := errgroup.WithContext(modelCtx)
	g.SetLimit(labelConcurrency)
	for i, label := range req.Labels {
		g.Go(func() error {
			outcomes[i] = s.gradeLabel(groupCtx, req, grader, sequenced, categorized.StudentFiles, label)
			return nil
		})
	}
	// Workers never return errors; failures live inside their outcome.
	_ = g.Wait()

	s.settle(ctx, req, freeCoverage, outcomes)

	resp := &BatchResponse{Results: outcomes}
	if check, err := s.quota.CanUse(ctx, req.UserID); err == nil {
		resp.UsageInfo = usage.InfoFrom(check)
	} else {
		s.logger.Warn("usage info read failed", zap.Error(err))
	}
	return resp, nil
}

func validateRequest(req *Request) error {
	if req == nil || strings.TrimSpace(req.UserID) == "" {
		return errors.New("missing user")
	}
	if len(req.Labels) == 0 {
		return errors.New("at least one label is required")
	}
	for _, label := range req.Labels {
		if strings.TrimSpace(label) == "" {
			return errors.New("labels must be non-empty strings")
		}
	}
	if len(req.Files) == 0 {
		return errors.New("at least one file is required")
	}
	return nil
}

// resolveFreeCoverage verifies the supplied tokens and keeps only those that
// actually grant a free regrade for this caller. Anything else (bad
// signature, expiry, scope mismatch, exhausted allowance, tokens disabled)
// silently falls back to the paid path.
func (s *Service) resolveFreeCoverage(req *Request) map[string]*regrade.Payload {
	coverage := make(map[string]*regrade.Payload)
	if !s.tokens.Enabled() {
		return coverage
	}
	for label, token := range req.RegradeTokens {
		payload, err := s.tokens.Verify(token)
		if err != nil {
			s.logger.Debug("regrade token rejected",
				zap.String("label", label),
				zap.Error(err))
			continue
		}
		if !payload.Redeemable(req.UserID, label, req.DeviceFingerprint) {
			continue
		}
		coverage[label] = payload
	}
	return coverage
}

func (s *Service) gradeLabel(ctx context.Context, req *Request, grader *Grader, sequenced []ContentPart, studentFiles []UploadedFilePart, label string) LabelOutcome {
	outcome := LabelOutcome{
		Label:       label,
		Strictness:  req.Strictness,
		RegradeMode: RegradeModeNone,
	}

	recognized := req.ConfirmedTexts[label]
	if recognized == "" {
		text, err := s.transcriber.Transcribe(ctx, studentFiles)
		if err != nil {
			// Advisory stage: grade without the transcription.
			s.logger.Warn("transcription failed, grading without it",
				zap.String("label", label),
				zap.Error(err))
		} else {
			recognized = text
		}
	}

	result, err := grader.Grade(ctx, label, sequenced, recognized, req.Strictness)
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			s.logger.Warn("model returned unparsable grading output",
				zap.String("label", label),
				zap.String("raw", truncate(parseErr.Raw, 500)))
		}
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Result = result
	return outcome
}

// settle runs after all labels finished: consume quota for paid successes and
// issue the next token per succeeded label. Failed free labels keep their old
// token implicitly, since tokens are stateless and redemption only happens on
// success.
func (s *Service) settle(ctx context.Context, req *Request, freeCoverage map[string]*regrade.Payload, outcomes []LabelOutcome) {
	for i := range outcomes {
		outcome := &outcomes[i]
		if outcome.Result == nil {
			continue
		}

		payload, free := freeCoverage[outcome.Label]
		if free {
			s.issueToken(outcome, req, payload.Remaining-1, RegradeModeFree)
			continue
		}

		if err := s.quota.IncrementUsage(ctx, req.UserID, map[string]string{"label": outcome.Label}); err != nil {
			// The grading already happened; losing one increment is
			// preferable to failing the label after the fact.
			s.logger.Warn("usage increment failed",
				zap.String("label", outcome.Label),
				zap.Error(err))
		}
		s.issueToken(outcome, req, s.tokens.MaxFree(), RegradeModeNew)
	}
}

func (s *Service) issueToken(outcome *LabelOutcome, req *Request, remaining int, mode string) {
	if !s.tokens.Enabled() {
		return
	}
	if remaining < 0 {
		remaining = 0
	}
	token, err := s.tokens.Issue(req.UserID, outcome.Label, req.DeviceFingerprint, remaining)
	if err != nil {
		s.logger.Warn("regrade token issuance failed",
			zap.String("label", outcome.Label),
			zap.Error(err))
		return
	}
	outcome.RegradeToken = token
	outcome.RegradeRemaining = &remaining
	outcome.RegradeMode = mode
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
