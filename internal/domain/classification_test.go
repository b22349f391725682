package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassification(t *testing.T) {
	t.Run("解析合法回复成功", func(t *testing.T) {
		text := `{
			"sentiment": "NEGATIVE",
			"priority": "URGENT",
			"extractedInfo": {"name": "Jane Doe", "orderId": "ORD-1001"},
			"draftResponse": "Dear Jane, we are sorry to hear that."
		}`

		result, err := ParseClassification(text)
		require.NoError(t, err)
		assert.Equal(t, SentimentNegative, result.Sentiment)
		assert.Equal(t, PriorityUrgent, result.Priority)
		assert.Equal(t, "Jane Doe", result.ExtractedInfo["name"])
		assert.Equal(t, "ORD-1001", result.ExtractedInfo["orderId"])
		assert.Equal(t, "Dear Jane, we are sorry to hear that.", result.DraftResponse)
	})

	t.Run("剥离Markdown代码围栏", func(t *testing.T) {
		text := "```json\n{\"sentiment\":\"POSITIVE\",\"priority\":\"NOT_URGENT\",\"extractedInfo\":{},\"draftResponse\":\"Thanks!\"}\n```"

		result, err := ParseClassification(text)
		require.NoError(t, err)
		assert.Equal(t, SentimentPositive, result.Sentiment)
		assert.Equal(t, PriorityNotUrgent, result.Priority)
	})

	t.Run("枚举值大小写归一化", func(t *testing.T) {
		text := `{"sentiment":" neutral ","priority":"not_urgent","extractedInfo":{},"draftResponse":"ok"}`

		result, err := ParseClassification(text)
		require.NoError(t, err)
		assert.Equal(t, SentimentNeutral, result.Sentiment)
		assert.Equal(t, PriorityNotUrgent, result.Priority)
	})

	t.Run("过滤白名单之外的实体键", func(t *testing.T) {
		text := `{
			"sentiment": "NEUTRAL",
			"priority": "NOT_URGENT",
			"extractedInfo": {
				"name": "Bob",
				"ssn": "123-45-6789",
				"phone": "",
				"orderId": 42
			},
			"draftResponse": "ok"
		}`

		result, err := ParseClassification(text)
		require.NoError(t, err)
		assert.Equal(t, ExtractedInfo{"name": "Bob"}, result.ExtractedInfo)
	})

	t.Run("非JSON输出报错", func(t *testing.T) {
		_, err := ParseClassification("I'm sorry, I cannot classify this email.")
		assert.ErrorIs(t, err, ErrNotJSON)
	})

	t.Run("缺少必需字段报错", func(t *testing.T) {
		text := `{"sentiment":"POSITIVE","priority":"URGENT","draftResponse":"ok"}`

		_, err := ParseClassification(text)
		assert.ErrorIs(t, err, ErrBadSchema)
	})

	t.Run("非法情感枚举报错", func(t *testing.T) {
		text := `{"sentiment":"ANGRY","priority":"URGENT","extractedInfo":{},"draftResponse":"ok"}`

		_, err := ParseClassification(text)
		assert.ErrorIs(t, err, ErrBadSchema)
	})

	t.Run("非法优先级枚举报错", func(t *testing.T) {
		text := `{"sentiment":"POSITIVE","priority":"HIGH","extractedInfo":{},"draftResponse":"ok"}`

		_, err := ParseClassification(text)
		assert.ErrorIs(t, err, ErrBadSchema)
	})
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`  {"a":1}  `))
}
