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

// Gemini Google Generative Language 接口的分类网关（generateContent）。
type Gemini struct {
	apiKey  string
	apiBase string
	model   string
	client  *http.Client
	log     *zap.Logger
}

// NewGemini 创建 Gemini 分类网关。
func NewGemini(cfg *config.ClassifierConfig, log *zap.Logger) *Gemini {
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Gemini{
		apiKey:  cfg.APIKey,
		apiBase: apiBase,
		model:   model,
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     log,
	}
}

func (g *Gemini) Name() string { return "gemini" }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Classify 调用 generateContent 接口分析邮件。
//
// Gemini 不保证纯 JSON 输出，常把结果包在 ```json 代码块里，
// 解析时由 domain.ParseClassification 统一剥掉。
func (g *Gemini) Classify(ctx context.Context, in Input) (*domain.Classification, error) {
	prompt := systemPrompt + "\n\n" + buildUserPrompt(in)
	body := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.apiBase, g.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("gemini %d: %s", resp.StatusCode, string(respBody))
	}

	var geminiResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return nil, ErrEmptyResponse
	}

	text := geminiResp.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return nil, ErrEmptyResponse
	}

	result, err := domain.ParseClassification(text)
	if err != nil {
		g.log.Warn("gemini returned malformed classification", zap.Error(err))
		return nil, err
	}
	return result, nil
}
