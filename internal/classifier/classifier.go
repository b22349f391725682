package classifier

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/domain"
)

// ErrEmptyResponse 模型没有返回任何内容
var ErrEmptyResponse = errors.New("classifier: model returned empty response")

// Input 待分类的邮件内容。
type Input struct {
	Sender  string
	Subject string
	Body    string
}

// Classifier 邮件分类器接口，由具体的模型网关实现。
type Classifier interface {
	// Classify 调用外部模型分析邮件，返回结构化结果。
	// 模型输出不符合约定结构时返回 domain.ErrBadSchema 或 domain.ErrNotJSON。
	Classify(ctx context.Context, in Input) (*domain.Classification, error)

	// Name 返回网关标识，用于日志和指标。
	Name() string
}

// New 根据配置创建分类器网关。
func New(cfg *config.ClassifierConfig, log *zap.Logger) (Classifier, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg, log), nil
	case "gemini":
		return NewGemini(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider: %s", cfg.Provider)
	}
}
