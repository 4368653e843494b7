package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/saiten-app/core/internal/config"
)

// Quota is the external subscription service seen from the grading pipeline:
// one read ("may this user consume a grading unit?") and one write ("a unit
// was consumed"). Persistence lives entirely on the other side of the RPC.
type Quota interface {
	CanUse(ctx context.Context, userID string) (*CheckResult, error)
	IncrementUsage(ctx context.Context, userID string, metadata map[string]string) error
}

// CheckResult mirrors the quota service response. Nil RemainingCount and
// UsageLimit mean "unlimited plan".
type CheckResult struct {
	Allowed        bool   `json:"allowed"`
	RemainingCount *int   `json:"remainingCount"`
	UsageCount     int    `json:"usageCount"`
	UsageLimit     *int   `json:"usageLimit"`
	PlanName       string `json:"planName"`
}

// Info is the batch-level usage block returned to the client.
type Info struct {
	RemainingCount *int   `json:"remainingCount"`
	UsageCount     int    `json:"usageCount"`
	UsageLimit     *int   `json:"usageLimit"`
	PlanName       string `json:"planName"`
}

// InfoFrom converts a check result into the response block.
func InfoFrom(r *CheckResult) *Info {
	if r == nil {
		return nil
	}
	return &Info{
		RemainingCount: r.RemainingCount,
		UsageCount:     r.UsageCount,
		UsageLimit:     r.UsageLimit,
		PlanName:       r.PlanName,
	}
}

// Client talks to the quota service over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a quota client from config.
func NewClient(cfg config.UsageConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}
}

// CanUse asks whether the user may consume one grading unit.
func (c *Client) CanUse(ctx context.Context, userID string) (*CheckResult, error) {
	body, err := c.post(ctx, "/v1/usage/check", map[string]interface{}{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("usage check: %w", err)
	}

	var result CheckResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("usage check: decode response: %w", err)
	}
	return &result, nil
}

// IncrementUsage records consumption of one grading unit.
func (c *Client) IncrementUsage(ctx context.Context, userID string, metadata map[string]string) error {
	_, err := c.post(ctx, "/v1/usage/increment", map[string]interface{}{
		"userId":   userID,
		"metadata": metadata,
	})
	if err != nil {
		return fmt.Errorf("usage increment: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("quota service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
