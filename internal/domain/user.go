package domain

import "time"

// User 表示注册用户及其邮箱接入配置。
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email        string     `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	PasswordHash string     `json:"-" gorm:"type:varchar(255)"` // 不返回给前端
	IsActive     bool       `json:"isActive" gorm:"default:true"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`

	// IMAP 接入配置。密码以密文存储，只有摄取管线
	// 在连接邮箱前的一瞬间解密，明文永不落库。
	IMAPHost     string `json:"imapHost,omitempty" gorm:"type:varchar(255)"`
	IMAPPort     int    `json:"imapPort,omitempty"`
	IMAPUser     string `json:"imapUser,omitempty" gorm:"type:varchar(255)"`
	IMAPPassword string `json:"-" gorm:"type:text"` // 加密后的密文
}

// HasMailboxCredentials 判断用户是否配置了完整的邮箱凭证。
func (u *User) HasMailboxCredentials() bool {
	return u.IMAPHost != "" && u.IMAPPort > 0 && u.IMAPUser != "" && u.IMAPPassword != ""
}

// MailboxCredential 写入凭证时的输入，密码为明文，仅在内存中存在。
type MailboxCredential struct {
	Host     string
	Port     int
	Username string
	Password string
}
