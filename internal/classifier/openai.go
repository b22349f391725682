package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/domain"
)

// OpenAI OpenAI 兼容接口的分类网关（chat completions）。
type OpenAI struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
	log     *zap.Logger
}

// NewOpenAI 创建 OpenAI 分类网关。
func NewOpenAI(cfg *config.ClassifierConfig, log *zap.Logger) *OpenAI {
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAI{
		apiKey:  cfg.APIKey,
		apiBase: apiBase,
		model:   model,
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     log,
	}
}

func (o *OpenAI) Name() string { return "openai" }

type oaiRequest struct {
	Model          string             `json:"model"`
	Messages       []oaiMessage       `json:"messages"`
	ResponseFormat *oaiResponseFormat `json:"response_format,omitempty"`
	Temperature    float64            `json:"temperature"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponseFormat struct {
	Type string `json:"type"`
}

type oaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify 调用 chat completions 接口分析邮件。
func (o *OpenAI) Classify(ctx context.Context, in Input) (*domain.Classification, error) {
	body := oaiRequest{
		Model: o.model,
		Messages: []oaiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(in)},
		},
		ResponseFormat: &oaiResponseFormat{Type: "json_object"},
		Temperature:    0.5,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("openai %d: %s", resp.StatusCode, string(respBody))
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(oaiResp.Choices) == 0 || oaiResp.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}

	result, err := domain.ParseClassification(oaiResp.Choices[0].Message.Content)
	if err != nil {
		o.log.Warn("openai returned malformed classification", zap.Error(err))
		return nil, err
	}
	return result, nil
}
