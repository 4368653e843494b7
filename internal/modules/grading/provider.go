package grading

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	"google.golang.org/api/option"

	"github.com/saiten-app/core/internal/config"
)

// GenOptions tunes a single model invocation. The transcription pass pins
// Temperature and TopP near zero; the grading pass runs warmer for readable
// feedback prose.
type GenOptions struct {
	Model           string
	SystemPrompt    string
	Temperature     float32
	TopP            float32
	MaxOutputTokens int32
	ForceJSON       bool
}

// ModelClient is one configured multimodal model endpoint. Implementations
// must be safe for concurrent use; the pipeline receives the client as an
// explicit value so tests can substitute a fake.
type ModelClient interface {
	Generate(ctx context.Context, parts []ContentPart, opts GenOptions) (string, error)
}

// NewModelClient builds a client for the given provider config.
func NewModelClient(provider *config.AIProvider) (ModelClient, error) {
	if provider == nil {
		return nil, errors.New("no enabled AI provider configured")
	}
	if strings.TrimSpace(provider.APIKey) == "" {
		return nil, fmt.Errorf("provider %q: api key is empty", provider.ID)
	}

	switch provider.Type {
	case config.ProviderGemini:
		return &geminiClient{apiKey: provider.APIKey}, nil
	case config.ProviderOpenAICompatible:
		return &openAIClient{apiKey: provider.APIKey, endpoint: provider.Endpoint}, nil
	default:
		return nil, fmt.Errorf("provider %q: unsupported type %q", provider.ID, provider.Type)
	}
}

type geminiClient struct {
	apiKey string
}

func (g *geminiClient) Generate(ctx context.Context, parts []ContentPart, opts GenOptions) (string, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(strings.TrimSpace(opts.Model))
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: ptrFloat32(opts.Temperature),
		TopP:        ptrFloat32(opts.TopP),
	}
	if opts.MaxOutputTokens > 0 {
		m.GenerationConfig.MaxOutputTokens = ptrInt32(opts.MaxOutputTokens)
	}
	if opts.ForceJSON {
		m.GenerationConfig.ResponseMIMEType = "application/json"
	}
	if opts.SystemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(opts.SystemPrompt)},
		}
	}

	genParts := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.IsText() {
			genParts = append(genParts, genai.Text(p.Text))
			continue
		}
		genParts = append(genParts, &genai.Blob{MIMEType: p.MIME, Data: p.Data})
	}

	// Retry transient upstream failures.
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, err := m.GenerateContent(ctx, genParts...)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			time.Sleep(time.Duration(attempt) * 300 * time.Millisecond)
			continue
		}
		txt := firstCandidateText(resp)
		if txt == "" {
			return "", errors.New("gemini: empty response")
		}
		return txt, nil
	}
	return "", fmt.Errorf("gemini: %w", lastErr)
}

func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		break
	}
	return strings.TrimSpace(sb.String())
}

type openAIClient struct {
	apiKey   string
	endpoint string
}

func (o *openAIClient) Generate(ctx context.Context, parts []ContentPart, opts GenOptions) (string, error) {
	clientOpts := []openaioption.RequestOption{
		openaioption.WithAPIKey(o.apiKey),
		openaioption.WithMaxRetries(2),
	}
	if base := strings.TrimSpace(o.endpoint); base != "" {
		clientOpts = append(clientOpts, openaioption.WithBaseURL(strings.TrimRight(base, "/")))
	}
	client := openaiclient.NewClient(clientOpts...)

	contentParts := make([]openaiclient.ChatCompletionContentPartUnionParam, 0, len(parts))
	for _, p := range parts {
		if p.IsText() {
			contentParts = append(contentParts, openaiclient.TextContentPart(p.Text))
			continue
		}
		dataURI := fmt.Sprintf("data:%s;base64,%s", p.MIME, base64.StdEncoding.EncodeToString(p.Data))
		contentParts = append(contentParts, openaiclient.ImageContentPart(
			openaiclient.ChatCompletionContentPartImageImageURLParam{URL: dataURI},
		))
	}

	messages := make([]openaiclient.ChatCompletionMessageParamUnion, 0, 2)
	if opts.SystemPrompt != "" {
		messages = append(messages, openaiclient.SystemMessage(opts.SystemPrompt))
	}
	messages = append(messages, openaiclient.UserMessage(contentParts))

	params := openaiclient.ChatCompletionNewParams{
		Model:       openaiclient.ChatModel(opts.Model),
		Messages:    messages,
		Temperature: openaiclient.Float(float64(opts.Temperature)),
		TopP:        openaiclient.Float(float64(opts.TopP)),
	}
	if opts.MaxOutputTokens > 0 {
		params.MaxTokens = openaiclient.Int(int64(opts.MaxOutputTokens))
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai-compatible: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai-compatible: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func ptrFloat32(v float32) *float32 { return &v }
func ptrInt32(v int32) *int32       { return &v }
