package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotJSON 模型输出不是合法的 JSON
	ErrNotJSON = errors.New("classifier output is not valid JSON")
	// ErrBadSchema 模型输出缺少必需字段或字段值非法
	ErrBadSchema = errors.New("classifier output does not match required schema")
)

// ExtractedInfo 从邮件正文中提取的结构化实体。
//
// 只接受白名单内的键，值必须是非空字符串，
// 模型返回的其他键一律丢弃，不会原样入库。
type ExtractedInfo map[string]string

// extractedInfoKeys 允许的实体键集合
var extractedInfoKeys = map[string]struct{}{
	"name":    {},
	"phone":   {},
	"email":   {},
	"orderId": {},
	"product": {},
}

// Classification 外部模型对一封邮件的结构化分析结果。
type Classification struct {
	Sentiment     Sentiment     `json:"sentiment"`
	Priority      Priority      `json:"priority"`
	ExtractedInfo ExtractedInfo `json:"extractedInfo"`
	DraftResponse string        `json:"draftResponse"`
}

// classificationWire 模型回复的原始 JSON 形状。
//
// 四个键必须全部出现，extractedInfo 的值类型由模型决定，
// 校验时再收敛为字符串映射。
type classificationWire struct {
	Sentiment     *string                `json:"sentiment"`
	Priority      *string                `json:"priority"`
	ExtractedInfo map[string]interface{} `json:"extractedInfo"`
	DraftResponse *string                `json:"draftResponse"`
}

// ParseClassification 解析并校验模型的回复文本。
//
// 回复必须是单个 JSON 对象，且恰好包含
// {sentiment, priority, extractedInfo, draftResponse} 四个字段；
// 任何缺失、非法枚举值或无法解析的输出都视为分类失败。
// 模型偶尔会把 JSON 包在 Markdown 代码块中，解析前先剥掉围栏。
func ParseClassification(text string) (*Classification, error) {
	cleaned := stripCodeFence(text)

	var wire classificationWire
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}

	if wire.Sentiment == nil || wire.Priority == nil || wire.DraftResponse == nil || wire.ExtractedInfo == nil {
		return nil, fmt.Errorf("%w: missing required field", ErrBadSchema)
	}

	sentiment := Sentiment(strings.ToUpper(strings.TrimSpace(*wire.Sentiment)))
	switch sentiment {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
	default:
		return nil, fmt.Errorf("%w: invalid sentiment %q", ErrBadSchema, *wire.Sentiment)
	}

	priority := Priority(strings.ToUpper(strings.TrimSpace(*wire.Priority)))
	switch priority {
	case PriorityUrgent, PriorityNotUrgent:
	default:
		return nil, fmt.Errorf("%w: invalid priority %q", ErrBadSchema, *wire.Priority)
	}

	info := make(ExtractedInfo)
	for key, value := range wire.ExtractedInfo {
		if _, ok := extractedInfoKeys[key]; !ok {
			continue
		}
		s, ok := value.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		info[key] = s
	}

	return &Classification{
		Sentiment:     sentiment,
		Priority:      priority,
		ExtractedInfo: info,
		DraftResponse: *wire.DraftResponse,
	}, nil
}

// stripCodeFence 去除 Markdown 代码块围栏。
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
