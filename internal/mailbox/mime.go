package mailbox

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// parseFallback 宽容解码路径，处理严格 MIME 解析器拒绝的畸形邮件。
func parseFallback(raw []byte) (*ParsedMessage, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, ErrNoMessageID
	}

	messageID := strings.TrimSpace(msg.Header.Get("Message-Id"))
	messageID = strings.TrimSuffix(strings.TrimPrefix(messageID, "<"), ">")
	if messageID == "" {
		return nil, ErrNoMessageID
	}

	parsed := &ParsedMessage{
		MessageID: messageID,
		Subject:   decodeHeader(msg.Header.Get("Subject")),
	}

	if date, err := msg.Header.Date(); err == nil {
		parsed.ReceivedAt = date
	} else {
		parsed.ReceivedAt = time.Now().UTC()
	}

	rawFrom := msg.Header.Get("From")
	if addr, err := mail.ParseAddress(rawFrom); err == nil {
		parsed.Sender = formatAddress(addr.Name, addr.Address)
	} else {
		parsed.Sender = strings.TrimSpace(rawFrom)
	}

	contentType := msg.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// 没有 Content-Type 或解析失败，当作纯文本处理
		body, _ := io.ReadAll(msg.Body)
		parsed.Body = string(body)
		return parsed, nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return parsed, nil
		}
		mr := multipart.NewReader(msg.Body, boundary)
		parsed.Body = firstPlainText(mr)
		return parsed, nil
	}

	body, err := decodeBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"), params["charset"])
	if err != nil {
		return parsed, nil
	}
	if !strings.HasPrefix(mediaType, "text/html") {
		parsed.Body = body
	}
	return parsed, nil
}

// firstPlainText 递归查找多部分邮件中第一个 text/plain 部分。
func firstPlainText(mr *multipart.Reader) string {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return ""
		}

		contentType := part.Header.Get("Content-Type")
		mediaType, params, err := mime.ParseMediaType(contentType)
		if err != nil {
			mediaType = "text/plain"
		}

		if strings.HasPrefix(mediaType, "multipart/") {
			if boundary := params["boundary"]; boundary != "" {
				if body := firstPlainText(multipart.NewReader(part, boundary)); body != "" {
					return body
				}
			}
			continue
		}

		disposition := part.Header.Get("Content-Disposition")
		if disposition != "" {
			dispType, _, _ := mime.ParseMediaType(disposition)
			if dispType == "attachment" {
				continue
			}
		}

		if !strings.HasPrefix(mediaType, "text/plain") {
			continue
		}

		body, err := decodeBody(part, part.Header.Get("Content-Transfer-Encoding"), params["charset"])
		if err != nil {
			continue
		}
		return body
	}
}

// decodeBody 根据传输编码和字符集解码正文。
func decodeBody(r io.Reader, transferEncoding, charsetName string) (string, error) {
	var reader io.Reader = r

	switch strings.ToLower(transferEncoding) {
	case "base64":
		reader = base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		reader = quotedprintable.NewReader(r)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}

	if enc := getCharsetEncoding(charsetName); enc != nil {
		decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
		if err == nil {
			body = decoded
		}
	}

	return string(body), nil
}

// decodeHeader 解码 RFC 2047 编码的邮件头。
func decodeHeader(header string) string {
	decoder := &mime.WordDecoder{
		CharsetReader: func(charsetName string, input io.Reader) (io.Reader, error) {
			if enc := getCharsetEncoding(charsetName); enc != nil {
				return transform.NewReader(input, enc.NewDecoder()), nil
			}
			return input, nil
		},
	}

	decoded, err := decoder.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// getCharsetEncoding 返回字符集对应的解码器，UTF-8 及未知字符集返回 nil。
func getCharsetEncoding(charsetName string) encoding.Encoding {
	switch strings.ToLower(charsetName) {
	case "gb2312", "gbk", "gb18030":
		return simplifiedchinese.GBK
	case "big5":
		return traditionalchinese.Big5
	case "shift_jis", "shift-jis", "sjis":
		return japanese.ShiftJIS
	case "euc-kr", "euckr":
		return korean.EUCKR
	default:
		return nil
	}
}
