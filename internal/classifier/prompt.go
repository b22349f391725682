package classifier

import "fmt"

// knowledgeBase 客服知识库，作为上下文注入到模型提示词中，
// 让草稿回复引用真实的业务规则而不是凭空编造。
const knowledgeBase = `
1. Refund Policy: Customers can request a refund within 14 days of purchase. They need to provide their order ID.
2. Password Reset: Users can reset their password by visiting /password-reset. If they can't access their email, they must contact security@example.com.
3. Shipping Times: Standard shipping takes 5-7 business days. Express shipping is 1-2 business days.
4. Product 'X' common issue: If Product 'X' is not turning on, advise the user to charge it for at least 3 hours before first use.
`

// systemPrompt 约束模型输出为单个 JSON 对象。
const systemPrompt = `You are an expert customer support agent assistant. Your task is to analyze an incoming email and provide a structured JSON output.
You must adhere to the following rules:
1.  Analyze the sentiment of the email (POSITIVE, NEGATIVE, NEUTRAL).
2.  Determine the priority (URGENT, NOT_URGENT). Keywords like "immediately," "critical," "cannot access," "asap," or highly negative sentiment indicate urgency.
3.  Extract key information: customer name, contact details (phone, alternate email), order numbers, or specific product names mentioned.
4.  Based on the email content and the provided knowledge base, generate a context-aware, empathetic, and professional draft response.
5.  Acknowledge the customer's feelings, especially if they are frustrated.
6.  The final output MUST be a single, valid JSON object with no extra text or explanations.

The JSON structure must be:
{
  "sentiment": "...",
  "priority": "...",
  "extractedInfo": { "name": "...", "phone": "...", "orderId": "..." },
  "draftResponse": "..."
}`

// buildUserPrompt 组装带知识库上下文的用户提示词。
func buildUserPrompt(in Input) string {
	return fmt.Sprintf(`Please process the following email and provide the JSON output.

**Knowledge Base for Context:**
---
%s
---

**Incoming Email:**
- Sender: %s
- Subject: %s
- Body: %s`, knowledgeBase, in.Sender, in.Subject, in.Body)
}
