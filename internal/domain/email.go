package domain

import "time"

// Sentiment 邮件情感倾向
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
)

// Priority 邮件处理优先级
type Priority string

const (
	PriorityUrgent    Priority = "URGENT"
	PriorityNotUrgent Priority = "NOT_URGENT"
)

// Status 邮件生命周期状态
//
// 状态机: (不存在) → PENDING → PROCESSED → RESOLVED
// PENDING → PROCESSED 只能由分类成功的写入触发；
// RESOLVED 由用户在面板上操作设置，摄取管线不会再触碰该记录。
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusProcessed Status = "PROCESSED"
	StatusResolved  Status = "RESOLVED"
)

// Email 表示一封已摄取的客服支持邮件。
//
// MessageID 来自邮件传输层的 Message-ID 头，全局唯一，是去重的主键；
// 没有 Message-ID 的邮件不会入库。
type Email struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MessageID  string    `json:"messageId" gorm:"uniqueIndex;type:varchar(255);not null"`
	UserID     string    `json:"userId" gorm:"type:varchar(36);index;not null"`
	Sender     string    `json:"sender" gorm:"type:varchar(255)"`
	Subject    string    `json:"subject" gorm:"type:varchar(500)"`
	Body       string    `json:"body" gorm:"type:text"`
	ReceivedAt time.Time `json:"receivedAt" gorm:"index"`

	// 分类结果字段，入库时为空，分类成功后一次性写入
	Sentiment     Sentiment     `json:"sentiment,omitempty" gorm:"type:varchar(20);index"`
	Priority      Priority      `json:"priority,omitempty" gorm:"type:varchar(20);index"`
	ExtractedInfo ExtractedInfo `json:"extractedInfo,omitempty" gorm:"serializer:json"`
	DraftResponse string        `json:"draftResponse,omitempty" gorm:"type:text"`

	Status Status `json:"status" gorm:"type:varchar(20);default:'PENDING';index"`

	// 分类尝试次数，用于限制失败后的自动重试
	ClassifyAttempts int `json:"-" gorm:"default:0"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsClassified 判断邮件是否已经带有分类结果。
func (e *Email) IsClassified() bool {
	return e.Status == StatusProcessed || e.Status == StatusResolved
}

// EmailFilter 邮件列表查询条件
type EmailFilter struct {
	UserID string
	Status Status // 为空表示不过滤状态
}
