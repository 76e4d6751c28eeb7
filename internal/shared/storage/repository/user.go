package repository

import (
	"context"
	"database/sql"
	"time"

	"portfolio-portal/internal/shared/model"
)

const userColumns = `id, name, email, password_hash, role, awarding_body, level,
	 approved, approved_by, approved_at, active, created_at, expires_at,
	 reset_token, reset_expires`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
		&u.AwardingBody, &u.Level, &u.Approved, &u.ApprovedBy, &u.ApprovedAt,
		&u.Active, &u.CreatedAt, &u.ExpiresAt, &u.ResetToken, &u.ResetExpires)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser 创建账户，邮箱唯一冲突由调用方通过 IsUniqueViolation 识别
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO users (id, name, email, password_hash, role, awarding_body, level,
		  approved, approved_by, approved_at, active, created_at, expires_at,
		  reset_token, reset_expires)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`),
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.AwardingBody, u.Level,
		u.Approved, u.ApprovedBy, u.ApprovedAt, u.Active, u.CreatedAt, u.ExpiresAt,
		u.ResetToken, u.ResetExpires,
	)
	return err
}

// GetUserByEmail 通过邮箱查找账户，不存在时返回 (nil, nil)
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+userColumns+` FROM users WHERE email = $1`), email)
	return scanUser(row)
}

// GetUserByID 通过 ID 查找账户，不存在时返回 (nil, nil)
func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+userColumns+` FROM users WHERE id = $1`), id)
	return scanUser(row)
}

// GetUserByResetToken 通过重置令牌查找账户，令牌有效期由调用方校验
func (s *Store) GetUserByResetToken(ctx context.Context, token string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+userColumns+` FROM users WHERE reset_token = $1`), token)
	return scanUser(row)
}

// ListUsers 列出全部账户（审核员视图）
func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	return s.queryUsers(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
}

// ListPendingUsers 列出待审核账户
func (s *Store) ListPendingUsers(ctx context.Context) ([]*model.User, error) {
	return s.queryUsers(ctx,
		`SELECT `+userColumns+` FROM users WHERE approved = $1 ORDER BY created_at DESC`,
		false)
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...any) ([]*model.User, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ApproveUser 审核通过：记录审批人与时间
func (s *Store) ApproveUser(ctx context.Context, id, approvedBy string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE users SET approved = $1, approved_by = $2, approved_at = $3 WHERE id = $4`),
		true, approvedBy, at, id)
	return err
}

// DeclineUser 拒绝账户：撤销审批并锁定
func (s *Store) DeclineUser(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE users SET approved = $1, active = $2 WHERE id = $3`),
		false, false, id)
	return err
}

// ReactivateUser 解除锁定，不恢复审批状态
func (s *Store) ReactivateUser(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE users SET active = $1 WHERE id = $2`), true, id)
	return err
}

// UpdateUserPassword 更新密码哈希并清除重置令牌
func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE users SET password_hash = $1, reset_token = NULL, reset_expires = NULL
		 WHERE id = $2`), passwordHash, id)
	return err
}

// SetResetToken 写入密码重置令牌及其过期时间
func (s *Store) SetResetToken(ctx context.Context, id, token string, expires time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE users SET reset_token = $1, reset_expires = $2 WHERE id = $3`),
		token, expires, id)
	return err
}
