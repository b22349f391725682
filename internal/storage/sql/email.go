package sql

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"supportdesk/backend/internal/domain"
	"supportdesk/backend/internal/storage"
)

// ========== Email Repository ==========

// CreateEmail 插入新邮件，Message-ID 冲突返回 ErrDuplicateMessage
func (s *Store) CreateEmail(email *domain.Email) error {
	info, err := json.Marshal(email.ExtractedInfo)
	if err != nil {
		return err
	}

	query := s.rebind(`
		INSERT INTO emails (id, message_id, user_id, sender, subject, body, received_at,
		                    sentiment, priority, extracted_info, draft_response, status,
		                    classify_attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = s.db.Exec(query,
		email.ID,
		email.MessageID,
		email.UserID,
		email.Sender,
		email.Subject,
		email.Body,
		email.ReceivedAt,
		email.Sentiment,
		email.Priority,
		string(info),
		email.DraftResponse,
		email.Status,
		email.ClassifyAttempts,
		email.CreatedAt,
		email.UpdatedAt,
	)
	if s.isDuplicateErr(err) {
		return storage.ErrDuplicateMessage
	}
	return err
}

const emailColumns = `id, message_id, user_id, sender, subject, body, received_at,
	sentiment, priority, extracted_info, draft_response, status,
	classify_attempts, created_at, updated_at`

// scanEmail 从一行记录扫描出邮件
func scanEmail(row interface{ Scan(...interface{}) error }) (*domain.Email, error) {
	var e domain.Email
	var info sql.NullString

	err := row.Scan(
		&e.ID,
		&e.MessageID,
		&e.UserID,
		&e.Sender,
		&e.Subject,
		&e.Body,
		&e.ReceivedAt,
		&e.Sentiment,
		&e.Priority,
		&info,
		&e.DraftResponse,
		&e.Status,
		&e.ClassifyAttempts,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if info.Valid && info.String != "" && info.String != "null" {
		if err := json.Unmarshal([]byte(info.String), &e.ExtractedInfo); err != nil {
			return nil, err
		}
	}

	return &e, nil
}

// GetEmail 根据 ID 获取邮件
func (s *Store) GetEmail(id string) (*domain.Email, error) {
	query := s.rebind(`SELECT ` + emailColumns + ` FROM emails WHERE id = ?`)

	email, err := scanEmail(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrEmailNotFound
	}
	return email, err
}

// ExistsByMessageID 判断 Message-ID 是否已入库
func (s *Store) ExistsByMessageID(messageID string) (bool, error) {
	query := s.rebind(`SELECT 1 FROM emails WHERE message_id = ? LIMIT 1`)

	var one int
	err := s.db.QueryRow(query, messageID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListEmails 按 priority 降序、receivedAt 降序返回邮件
func (s *Store) ListEmails(filter domain.EmailFilter) ([]domain.Email, error) {
	query := `SELECT ` + emailColumns + ` FROM emails WHERE 1=1`
	args := make([]interface{}, 0, 2)

	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY priority DESC, received_at DESC`

	rows, err := s.db.Query(s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := make([]domain.Email, 0)
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, *e)
	}
	return emails, rows.Err()
}

// ListPendingByUserID 返回用户名下待分类的邮件
func (s *Store) ListPendingByUserID(userID string) ([]domain.Email, error) {
	query := s.rebind(`SELECT ` + emailColumns + ` FROM emails
		WHERE user_id = ? AND status = ?
		ORDER BY received_at ASC`)

	rows, err := s.db.Query(query, userID, domain.StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := make([]domain.Email, 0)
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, *e)
	}
	return emails, rows.Err()
}

// UpdateClassification 原子写入分类结果并置为 PROCESSED
//
// WHERE status = 'PENDING' 保证 PROCESSED/RESOLVED 记录不会被覆盖，
// 四个分类字段和状态在同一条 UPDATE 中写入，外部读取不会看到半写记录。
func (s *Store) UpdateClassification(id string, result *domain.Classification) error {
	info, err := json.Marshal(result.ExtractedInfo)
	if err != nil {
		return err
	}

	query := s.rebind(`
		UPDATE emails
		SET sentiment = ?, priority = ?, extracted_info = ?, draft_response = ?,
		    status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`)
	res, err := s.db.Exec(query,
		result.Sentiment,
		result.Priority,
		string(info),
		result.DraftResponse,
		domain.StatusProcessed,
		time.Now().UTC(),
		id,
		domain.StatusPending,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// 区分记录不存在与状态不允许
		if _, err := s.GetEmail(id); err != nil {
			return err
		}
		return storage.ErrNotPending
	}
	return nil
}

// UpdateEmailStatus 更新邮件状态
func (s *Store) UpdateEmailStatus(id string, status domain.Status) error {
	query := s.rebind(`UPDATE emails SET status = ?, updated_at = ? WHERE id = ?`)

	res, err := s.db.Exec(query, status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrEmailNotFound
	}
	return nil
}

// IncrementClassifyAttempts 自增分类尝试计数
func (s *Store) IncrementClassifyAttempts(id string) error {
	query := s.rebind(`UPDATE emails SET classify_attempts = classify_attempts + 1 WHERE id = ?`)
	_, err := s.db.Exec(query, id)
	return err
}

// GetEmailStatistics 聚合用户名下的面板统计
func (s *Store) GetEmailStatistics(userID string) (*domain.EmailStatistics, error) {
	stats := domain.NewEmailStatistics()
	cutoff := time.Now().Add(-24 * time.Hour)

	query := s.rebind(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN received_at > ? THEN 1 ELSE 0 END), 0)
		FROM emails WHERE user_id = ?
	`)
	err := s.db.QueryRow(query, domain.StatusPending, domain.StatusResolved, cutoff, userID).
		Scan(&stats.Total, &stats.Pending, &stats.Resolved, &stats.Last24Hours)
	if err != nil {
		return nil, err
	}

	// 情感分布
	rows, err := s.db.Query(s.rebind(`
		SELECT sentiment, COUNT(*) FROM emails
		WHERE user_id = ? AND sentiment <> ''
		GROUP BY sentiment
	`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var sentiment domain.Sentiment
		var count int
		if err := rows.Scan(&sentiment, &count); err != nil {
			return nil, err
		}
		stats.SentimentCounts[sentiment] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 优先级分布
	prows, err := s.db.Query(s.rebind(`
		SELECT priority, COUNT(*) FROM emails
		WHERE user_id = ? AND priority <> ''
		GROUP BY priority
	`), userID)
	if err != nil {
		return nil, err
	}
	defer prows.Close()
	for prows.Next() {
		var priority domain.Priority
		var count int
		if err := prows.Scan(&priority, &count); err != nil {
			return nil, err
		}
		stats.PriorityCounts[priority] = count
	}
	return stats, prows.Err()
}
