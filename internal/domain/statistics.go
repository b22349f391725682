package domain

// EmailStatistics 面板统计信息
type EmailStatistics struct {
	Total           int               `json:"total"`
	Pending         int               `json:"pending"`
	Resolved        int               `json:"resolved"`
	Last24Hours     int               `json:"last24Hours"`
	SentimentCounts map[Sentiment]int `json:"sentimentCounts"`
	PriorityCounts  map[Priority]int  `json:"priorityCounts"`
}

// NewEmailStatistics 创建带初始化计数表的统计对象。
func NewEmailStatistics() *EmailStatistics {
	return &EmailStatistics{
		SentimentCounts: make(map[Sentiment]int),
		PriorityCounts:  make(map[Priority]int),
	}
}
