package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset" // 注册常见字符集
	"github.com/emersion/go-message/mail"
)

// ErrNoMessageID 邮件没有可用的 Message-ID
//
// 去重不变量依赖稳定标识，没有 Message-ID 的邮件不允许入库，
// 调用方应记录日志并跳过。
var ErrNoMessageID = errors.New("message has no Message-ID")

// ParsedMessage 解码后的标准化邮件记录。
type ParsedMessage struct {
	MessageID  string
	Sender     string
	Subject    string
	Body       string // 纯文本正文，缺失时为空字符串
	ReceivedAt time.Time
}

// Parse 将原始邮件字节解码为标准化记录。
//
// 首选 go-message 的 MIME 解析；对它无法处理的畸形邮件
// 退回到宽容解码路径。两条路径都拿不到 Message-ID 时
// 返回 ErrNoMessageID。
func Parse(raw []byte) (*ParsedMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return parseFallback(raw)
	}
	defer mr.Close()

	parsed := &ParsedMessage{}

	if id, err := mr.Header.MessageID(); err == nil {
		parsed.MessageID = id
	}
	if parsed.MessageID == "" {
		return nil, ErrNoMessageID
	}

	if subject, err := mr.Header.Subject(); err == nil {
		parsed.Subject = subject
	}
	if date, err := mr.Header.Date(); err == nil {
		parsed.ReceivedAt = date
	}
	if parsed.ReceivedAt.IsZero() {
		parsed.ReceivedAt = time.Now().UTC()
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		parsed.Sender = formatAddress(from[0].Name, from[0].Address)
	}

	// 取第一个 text/plain 部分作为正文
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := header.ContentType()
		if !strings.HasPrefix(contentType, "text/plain") {
			continue
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		parsed.Body = string(body)
		break
	}

	return parsed, nil
}

// formatAddress 渲染 "Name <addr>" 形式的发件人。
func formatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}
