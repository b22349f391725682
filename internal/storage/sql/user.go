package sql

import (
	"database/sql"
	"errors"
	"time"

	"supportdesk/backend/internal/domain"
	"supportdesk/backend/internal/storage"
)

// ========== User Repository ==========

const userColumns = `id, email, password_hash, is_active, created_at, updated_at, last_login_at,
	imap_host, imap_port, imap_user, imap_password`

// scanUser 从一行记录扫描出用户
func scanUser(row interface{ Scan(...interface{}) error }) (*domain.User, error) {
	var u domain.User
	var lastLoginAt sql.NullTime
	var imapHost, imapUser, imapPassword sql.NullString
	var imapPort sql.NullInt64

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
		&lastLoginAt,
		&imapHost,
		&imapPort,
		&imapUser,
		&imapPassword,
	)
	if err != nil {
		return nil, err
	}

	if lastLoginAt.Valid {
		u.LastLoginAt = &lastLoginAt.Time
	}
	u.IMAPHost = imapHost.String
	u.IMAPPort = int(imapPort.Int64)
	u.IMAPUser = imapUser.String
	u.IMAPPassword = imapPassword.String

	return &u, nil
}

// CreateUser 创建新用户
func (s *Store) CreateUser(user *domain.User) error {
	query := s.rebind(`
		INSERT INTO users (id, email, password_hash, is_active, created_at, updated_at,
		                   imap_host, imap_port, imap_user, imap_password)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.Exec(query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
		user.IMAPHost,
		user.IMAPPort,
		user.IMAPUser,
		user.IMAPPassword,
	)
	if s.isDuplicateErr(err) {
		return storage.ErrEmailExists
	}
	return err
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)

	user, err := scanUser(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrUserNotFound
	}
	return user, err
}

// GetUserByEmail 根据注册邮箱获取用户
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower(?)`)

	user, err := scanUser(s.db.QueryRow(query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrUserNotFound
	}
	return user, err
}

// UpdateUser 整体更新用户
func (s *Store) UpdateUser(user *domain.User) error {
	query := s.rebind(`
		UPDATE users
		SET email = ?, password_hash = ?, is_active = ?, updated_at = ?,
		    imap_host = ?, imap_port = ?, imap_user = ?, imap_password = ?
		WHERE id = ?
	`)
	res, err := s.db.Exec(query,
		user.Email,
		user.PasswordHash,
		user.IsActive,
		time.Now().UTC(),
		user.IMAPHost,
		user.IMAPPort,
		user.IMAPUser,
		user.IMAPPassword,
		user.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// UpdateLastLogin 更新最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	query := s.rebind(`UPDATE users SET last_login_at = ? WHERE id = ?`)
	_, err := s.db.Exec(query, time.Now().UTC(), userID)
	return err
}

// UpdateMailboxCredentials 写入 IMAP 接入配置（密码必须已加密）
func (s *Store) UpdateMailboxCredentials(userID string, host string, port int, username, encryptedPassword string) error {
	query := s.rebind(`
		UPDATE users
		SET imap_host = ?, imap_port = ?, imap_user = ?, imap_password = ?, updated_at = ?
		WHERE id = ?
	`)
	res, err := s.db.Exec(query, host, port, username, encryptedPassword, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// ListUsersWithCredentials 返回配置了完整邮箱凭证的用户
func (s *Store) ListUsersWithCredentials() ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE imap_host <> '' AND imap_user <> '' AND imap_password <> '' AND imap_port > 0
		ORDER BY created_at ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
