// Package sqlite SQLite 数据库驱动
//
// 提供 SQLite 连接管理、方言实现和自动 Schema 迁移。
// 适用于开发、测试和单机部署场景。
package sqlite

import (
	"database/sql"
	"fmt"

	"portfolio-portal/internal/shared/storage/dbutil"

	_ "modernc.org/sqlite"
)

// Dialect SQLite 方言实现
type Dialect struct{}

var _ dbutil.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() dbutil.DriverType {
	return dbutil.DriverSQLite
}

func (d *Dialect) Rebind(query string) string {
	return dbutil.RebindToQuestion(query)
}

func (d *Dialect) CurrentTimestamp() string {
	return "datetime('now')"
}

func (d *Dialect) BooleanLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (d *Dialect) AutoMigrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Open 创建 SQLite 数据库连接
// dsn 示例: "file:portal.db?cache=shared&mode=rwc" 或 ":memory:"
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// SQLite 优化设置
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	return db, nil
}

// NewDialect 创建 SQLite 方言
func NewDialect() *Dialect {
	return &Dialect{}
}

// schema SQLite 完整建表语句（与 PostgreSQL schema 等价）
const schema = `
-- users
CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(200) DEFAULT '',
    email VARCHAR(320) NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role VARCHAR(32) DEFAULT 'learner',
    awarding_body VARCHAR(100) DEFAULT '',
    level INTEGER DEFAULT 0,
    approved INTEGER DEFAULT 0,
    approved_by VARCHAR(64),
    approved_at DATETIME,
    active INTEGER DEFAULT 1,
    created_at DATETIME DEFAULT (datetime('now')),
    expires_at DATETIME,
    reset_token TEXT,
    reset_expires DATETIME
);

-- submissions
CREATE TABLE IF NOT EXISTS submissions (
    id VARCHAR(64) PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL REFERENCES users(id),
    title VARCHAR(300) DEFAULT '',
    description TEXT DEFAULT '',
    filename VARCHAR(300) NOT NULL,
    fileref TEXT NOT NULL,
    uploaded_at DATETIME DEFAULT (datetime('now'))
);

-- feedback
CREATE TABLE IF NOT EXISTS feedback (
    id VARCHAR(64) PRIMARY KEY,
    submission_id VARCHAR(64) NOT NULL REFERENCES submissions(id),
    assessor_id VARCHAR(64) NOT NULL REFERENCES users(id),
    comment TEXT DEFAULT '',
    filename VARCHAR(300),
    fileref TEXT,
    created_at DATETIME DEFAULT (datetime('now'))
);

-- resources
CREATE TABLE IF NOT EXISTS resources (
    id VARCHAR(64) PRIMARY KEY,
    title VARCHAR(300) NOT NULL,
    type VARCHAR(100) DEFAULT '',
    awarding_body VARCHAR(100) DEFAULT '',
    level INTEGER DEFAULT 0,
    filename VARCHAR(300) NOT NULL,
    fileref TEXT NOT NULL,
    uploaded_at DATETIME DEFAULT (datetime('now'))
);
`
