package repository

import (
	"context"
	"database/sql"
	"fmt"

	"portfolio-portal/internal/shared/model"
)

// CreateResource 创建资料记录
func (s *Store) CreateResource(ctx context.Context, r *model.Resource) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO resources (id, title, type, awarding_body, level, filename, fileref, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`),
		r.ID, r.Title, r.Type, r.AwardingBody, r.Level, r.FileName, r.FileRef, r.UploadedAt,
	)
	return err
}

// GetResource 获取单条资料，不存在时返回 (nil, nil)
func (s *Store) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	r := &model.Resource{}
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, title, type, awarding_body, level, filename, fileref, uploaded_at
		 FROM resources WHERE id = $1`), id,
	).Scan(&r.ID, &r.Title, &r.Type, &r.AwardingBody, &r.Level,
		&r.FileName, &r.FileRef, &r.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListResourcesForCohort 列出与指定认证机构+级别完全匹配的资料
// 学员视图专用：两个条件无条件生效，空的 awarding_body 也按空值匹配
func (s *Store) ListResourcesForCohort(ctx context.Context, awardingBody string, level int) ([]*model.Resource, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, title, type, awarding_body, level, filename, fileref, uploaded_at
		 FROM resources WHERE awarding_body = $1 AND level = $2
		 ORDER BY uploaded_at DESC`), awardingBody, level)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectResources(rows)
}

// ListResources 按可选的认证机构/级别过滤列出资料，最新在前
// 两个过滤条件均为精确匹配；nil level 表示不过滤级别
func (s *Store) ListResources(ctx context.Context, awardingBody string, level *int) ([]*model.Resource, error) {
	query := `SELECT id, title, type, awarding_body, level, filename, fileref, uploaded_at
		 FROM resources`
	var (
		conds []string
		args  []any
	)
	if awardingBody != "" {
		args = append(args, awardingBody)
		conds = append(conds, fmt.Sprintf("awarding_body = $%d", len(args)))
	}
	if level != nil {
		args = append(args, *level)
		conds = append(conds, fmt.Sprintf("level = $%d", len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY uploaded_at DESC"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectResources(rows)
}

func collectResources(rows *sql.Rows) ([]*model.Resource, error) {
	var resources []*model.Resource
	for rows.Next() {
		r := &model.Resource{}
		if err := rows.Scan(&r.ID, &r.Title, &r.Type, &r.AwardingBody, &r.Level,
			&r.FileName, &r.FileRef, &r.UploadedAt); err != nil {
			return nil, err
		}
		resources = append(resources, r)
	}
	return resources, rows.Err()
}
