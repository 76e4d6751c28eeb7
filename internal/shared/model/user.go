// Package model 共享数据模型
package model

import "time"

// UserRole 用户角色（封闭集合，授权判断统一走 Can）
type UserRole string

const (
	RoleLearner  UserRole = "learner"
	RoleAssessor UserRole = "assessor"
	RoleAdmin    UserRole = "admin"
)

// Can 角色授权判断：admin 是所有角色的超集
func (r UserRole) Can(required UserRole) bool {
	return r == required || r == RoleAdmin
}

// Valid 是否为已知角色
func (r UserRole) Valid() bool {
	switch r {
	case RoleLearner, RoleAssessor, RoleAdmin:
		return true
	}
	return false
}

// User 账户
//
// 生命周期：注册时 approved=false, active=true, expires_at=注册时间+30天；
// 审核员 Approve 后可登录；Decline 置 approved=false + active=false（锁定）；
// Reactivate 仅恢复 active，不恢复 approved。
type User struct {
	ID           string     `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"` // never expose in JSON
	Role         UserRole   `json:"role" db:"role"`
	AwardingBody string     `json:"awarding_body" db:"awarding_body"`
	Level        int        `json:"level" db:"level"`
	Approved     bool       `json:"approved" db:"approved"`
	ApprovedBy   *string    `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	Active       bool       `json:"active" db:"active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	ResetToken   *string    `json:"-" db:"reset_token"`
	ResetExpires *time.Time `json:"-" db:"reset_expires"`
}

// Expired 账户是否已过期（expires_at 为空视为永不过期）
func (u *User) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && now.After(*u.ExpiresAt)
}

// Summary 登录响应中返回的账户摘要（不含任何凭据字段）
type Summary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Role         UserRole `json:"role"`
	AwardingBody string   `json:"awarding_body"`
	Level        int      `json:"level"`
}

// Summary 生成账户摘要
func (u *User) Summary() Summary {
	return Summary{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		AwardingBody: u.AwardingBody,
		Level:        u.Level,
	}
}
