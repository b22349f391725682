package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"
)

// ErrMissingCredentials 连接参数不完整，调用方应跳过该用户
var ErrMissingCredentials = errors.New("mailbox credentials are incomplete")

// Profile 单个邮箱的连接参数，密码为已解密的明文，仅在内存中存在。
type Profile struct {
	Host     string
	Port     int
	Username string
	Password string
	Insecure bool // 明文连接，仅用于本地开发
}

// Addr 返回 host:port 形式的地址。
func (p Profile) Addr() string {
	return net.JoinHostPort(p.Host, fmt.Sprintf("%d", p.Port))
}

// Client 按连接参数拉取支持邮件的 IMAP 客户端。
//
// 搜索条件固定为 UNSEEN 且主题命中任一关键词；
// 拉取使用非 Peek 的 BODY[]，命中的邮件在拉取的同时被标记已读，
// 因此崩溃后重跑不会重新拉到已标记的邮件（接受单次会话内
// at-most-once 的取舍，不提供精确一次保证）。
type Client struct {
	keywords    []string
	folder      string
	authTimeout time.Duration
	log         *zap.Logger
}

// NewClient 创建 IMAP 客户端。
func NewClient(keywords []string, folder string, authTimeout time.Duration, log *zap.Logger) *Client {
	if folder == "" {
		folder = "INBOX"
	}
	if authTimeout <= 0 {
		authTimeout = 5 * time.Second
	}
	return &Client{
		keywords:    keywords,
		folder:      folder,
		authTimeout: authTimeout,
		log:         log,
	}
}

// FetchUnseen 连接邮箱并返回所有命中的原始邮件字节。
//
// 连接、握手和认证共用一个有限超时，避免单个无响应的
// 邮件服务器拖死整批任务。任何阶段出错都返回错误，
// 由编排器决定跳过该用户并继续。
func (c *Client) FetchUnseen(ctx context.Context, profile Profile) ([][]byte, error) {
	if profile.Host == "" || profile.Port <= 0 || profile.Username == "" || profile.Password == "" {
		return nil, ErrMissingCredentials
	}

	dialer := &net.Dialer{Timeout: c.authTimeout}

	var conn net.Conn
	var err error
	if profile.Insecure {
		conn, err = dialer.DialContext(ctx, "tcp", profile.Addr())
	} else {
		conn, err = tls.DialWithDialer(dialer, "tcp", profile.Addr(), &tls.Config{
			ServerName: profile.Host,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", profile.Addr(), err)
	}

	// 问候与认证阶段共用认证超时
	_ = conn.SetDeadline(time.Now().Add(c.authTimeout))

	client := imapclient.New(conn, nil)
	defer client.Close()

	if err := client.WaitGreeting(); err != nil {
		return nil, fmt.Errorf("waiting for IMAP greeting: %w", err)
	}

	if err := client.Login(profile.Username, profile.Password).Wait(); err != nil {
		return nil, fmt.Errorf("authentication failed for %s: %w", profile.Username, err)
	}

	// 认证完成后取消截止时间，剩余操作由邮件数量决定耗时
	_ = conn.SetDeadline(time.Time{})

	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(c.folder, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", c.folder, err)
	}

	criteria := c.searchCriteria()
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	c.log.Debug("unseen support messages found",
		zap.String("mailbox", profile.Username),
		zap.Int("count", len(uids)),
	)

	// Peek=false：拉取即标记 \Seen
	bodySection := &imap.FetchItemBodySection{Peek: false}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	var raws [][]byte
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			c.log.Warn("failed to collect message, skipping",
				zap.String("mailbox", profile.Username),
				zap.Error(err),
			)
			continue
		}

		raw := buf.FindBodySection(bodySection)
		if len(raw) == 0 {
			continue
		}
		raws = append(raws, raw)
	}

	if err := fetchCmd.Close(); err != nil {
		return raws, fmt.Errorf("fetching messages: %w", err)
	}

	return raws, nil
}

// searchCriteria 构造 UNSEEN ∧ (SUBJECT kw1 ∨ SUBJECT kw2 ∨ ...) 的搜索条件。
//
// 同一个 SearchCriteria 中的字段互为 AND 关系，
// 关键词用 Or 两两归并成一棵二叉树。
func (c *Client) searchCriteria() *imap.SearchCriteria {
	combined := subjectContains(c.keywords[0])
	for _, kw := range c.keywords[1:] {
		combined = imap.SearchCriteria{
			Or: [][2]imap.SearchCriteria{{combined, subjectContains(kw)}},
		}
	}

	combined.NotFlag = []imap.Flag{imap.FlagSeen}
	return &combined
}

func subjectContains(keyword string) imap.SearchCriteria {
	return imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{
			{Key: "Subject", Value: keyword},
		},
	}
}
