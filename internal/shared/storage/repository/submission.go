package repository

import (
	"context"
	"database/sql"

	"portfolio-portal/internal/shared/model"
)

// CreateSubmission 创建作业记录
func (s *Store) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO submissions (id, user_id, title, description, filename, fileref, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`),
		sub.ID, sub.UserID, sub.Title, sub.Description, sub.FileName, sub.FileRef, sub.UploadedAt,
	)
	return err
}

// GetSubmission 获取单条作业，不存在时返回 (nil, nil)
func (s *Store) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	sub := &model.Submission{}
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, user_id, title, description, filename, fileref, uploaded_at
		 FROM submissions WHERE id = $1`), id,
	).Scan(&sub.ID, &sub.UserID, &sub.Title, &sub.Description,
		&sub.FileName, &sub.FileRef, &sub.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ListSubmissionsByOwner 列出某账户自己的全部作业（不含学员联查列）
func (s *Store) ListSubmissionsByOwner(ctx context.Context, userID string) ([]*model.Submission, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, user_id, title, description, filename, fileref, uploaded_at
		 FROM submissions WHERE user_id = $1 ORDER BY uploaded_at DESC`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*model.Submission
	for rows.Next() {
		sub := &model.Submission{}
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Title, &sub.Description,
			&sub.FileName, &sub.FileRef, &sub.UploadedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ListSubmissions 审核员视图：全部作业，联查学员身份
// learnerID 非空时仅返回该学员的作业
func (s *Store) ListSubmissions(ctx context.Context, learnerID string) ([]*model.Submission, error) {
	query := `SELECT a.id, a.user_id, a.title, a.description, a.filename, a.fileref, a.uploaded_at,
		  COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(u.awarding_body, ''), COALESCE(u.level, 0)
		 FROM submissions a LEFT JOIN users u ON u.id = a.user_id`
	var args []any
	if learnerID != "" {
		query += ` WHERE a.user_id = $1`
		args = append(args, learnerID)
	}
	query += ` ORDER BY a.uploaded_at DESC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*model.Submission
	for rows.Next() {
		sub := &model.Submission{}
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Title, &sub.Description,
			&sub.FileName, &sub.FileRef, &sub.UploadedAt,
			&sub.OwnerName, &sub.OwnerEmail, &sub.OwnerAwardingBody, &sub.OwnerLevel); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// CreateFeedback 创建反馈记录（创建后不可修改）
func (s *Store) CreateFeedback(ctx context.Context, fb *model.Feedback) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO feedback (id, submission_id, assessor_id, comment, filename, fileref, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`),
		fb.ID, fb.SubmissionID, fb.AssessorID, fb.Comment, fb.FileName, fb.FileRef, fb.CreatedAt,
	)
	return err
}

// GetFeedback 获取单条反馈，联查所属作业的拥有者 ID
func (s *Store) GetFeedback(ctx context.Context, id string) (*model.Feedback, error) {
	fb := &model.Feedback{}
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT f.id, f.submission_id, f.assessor_id, f.comment, f.filename, f.fileref, f.created_at,
		  COALESCE(a.user_id, '')
		 FROM feedback f LEFT JOIN submissions a ON a.id = f.submission_id
		 WHERE f.id = $1`), id,
	).Scan(&fb.ID, &fb.SubmissionID, &fb.AssessorID, &fb.Comment,
		&fb.FileName, &fb.FileRef, &fb.CreatedAt, &fb.OwnerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fb, nil
}

// ListFeedbackBySubmission 列出某作业的全部反馈，联查审核员姓名，最新在前
func (s *Store) ListFeedbackBySubmission(ctx context.Context, submissionID string) ([]*model.Feedback, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT f.id, f.submission_id, f.assessor_id, f.comment, f.filename, f.fileref, f.created_at,
		  COALESCE(u.name, '')
		 FROM feedback f LEFT JOIN users u ON u.id = f.assessor_id
		 WHERE f.submission_id = $1 ORDER BY f.created_at DESC`), submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fbs []*model.Feedback
	for rows.Next() {
		fb := &model.Feedback{}
		if err := rows.Scan(&fb.ID, &fb.SubmissionID, &fb.AssessorID, &fb.Comment,
			&fb.FileName, &fb.FileRef, &fb.CreatedAt, &fb.AssessorName); err != nil {
			return nil, err
		}
		fbs = append(fbs, fb)
	}
	return fbs, rows.Err()
}

// DeleteFeedbackBySubmission 删除某作业的全部反馈行（级联删除第二步）
func (s *Store) DeleteFeedbackBySubmission(ctx context.Context, submissionID string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM feedback WHERE submission_id = $1`), submissionID)
	return err
}

// DeleteSubmission 删除作业行（级联删除最后一步）
func (s *Store) DeleteSubmission(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM submissions WHERE id = $1`), id)
	return err
}
