// Package repository SQLite 集成测试
//
// 使用 SQLite 内存数据库验证 repository 层所有存储接口的正确性。
// 无需外部数据库依赖，可在任何环境下运行。
package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"portfolio-portal/internal/shared/model"
	"portfolio-portal/internal/shared/storage/dbutil"
	sqlitedriver "portfolio-portal/internal/shared/storage/driver/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore 创建用于测试的 SQLite 内存数据库 Store
func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlitedriver.Open(":memory:")
	require.NoError(t, err)
	dialect := sqlitedriver.NewDialect()
	require.NoError(t, dialect.AutoMigrate(db))
	store := NewStore(db, dialect)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestUser(id, email string, role model.UserRole) *model.User {
	now := time.Now().Truncate(time.Second)
	expires := now.Add(30 * 24 * time.Hour)
	return &model.User{
		ID:           id,
		Name:         "Test User",
		Email:        email,
		PasswordHash: "$2a$10$fakehash",
		Role:         role,
		AwardingBody: "NCFE",
		Level:        3,
		Active:       true,
		CreatedAt:    now,
		ExpiresAt:    &expires,
	}
}

// ============================================================================
// Dialect 基础测试
// ============================================================================

func TestDialectTypes(t *testing.T) {
	d := sqlitedriver.NewDialect()
	assert.Equal(t, dbutil.DriverSQLite, d.DriverType())
	assert.Equal(t, "datetime('now')", d.CurrentTimestamp())
	assert.Equal(t, "1", d.BooleanLiteral(true))
	assert.Equal(t, "0", d.BooleanLiteral(false))
}

func TestRebind(t *testing.T) {
	d := sqlitedriver.NewDialect()
	assert.Equal(t, "SELECT * FROM users WHERE id = ? AND email = ?",
		d.Rebind("SELECT * FROM users WHERE id = $1 AND email = $2"))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))
	assert.True(t, IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: users.email")))
	assert.True(t, IsUniqueViolation(errors.New(`duplicate key value violates unique constraint "users_email_key" (SQLSTATE 23505)`)))
}

// ============================================================================
// User 测试
// ============================================================================

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := newTestUser("usr-001", "learner@example.org", model.RoleLearner)
	require.NoError(t, s.CreateUser(ctx, u))

	// Get by email
	got, err := s.GetUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, model.RoleLearner, got.Role)
	assert.Equal(t, "NCFE", got.AwardingBody)
	assert.Equal(t, 3, got.Level)
	assert.False(t, got.Approved)
	assert.True(t, got.Active)
	require.NotNil(t, got.ExpiresAt)

	// Get by ID
	got, err = s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.Email, got.Email)

	// Not found 返回 (nil, nil)
	got, err = s.GetUserByID(ctx, "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, newTestUser("usr-001", "dup@example.org", model.RoleLearner)))

	err := s.CreateUser(ctx, newTestUser("usr-002", "dup@example.org", model.RoleLearner))
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	// 重复注册不产生新行
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserApprovalLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := newTestUser("usr-001", "learner@example.org", model.RoleLearner)
	require.NoError(t, s.CreateUser(ctx, u))

	// 初始状态：待审核
	pending, err := s.ListPendingUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	// Approve
	at := time.Now().Truncate(time.Second)
	require.NoError(t, s.ApproveUser(ctx, u.ID, "usr-assessor", at))
	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Approved)
	require.NotNil(t, got.ApprovedBy)
	assert.Equal(t, "usr-assessor", *got.ApprovedBy)
	require.NotNil(t, got.ApprovedAt)

	pending, err = s.ListPendingUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 0)

	// Decline：撤销审批并锁定
	require.NoError(t, s.DeclineUser(ctx, u.ID))
	got, err = s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.Approved)
	assert.False(t, got.Active)

	// Reactivate：只解锁，不恢复审批
	require.NoError(t, s.ReactivateUser(ctx, u.ID))
	got, err = s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.False(t, got.Approved)
}

func TestResetTokenRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := newTestUser("usr-001", "learner@example.org", model.RoleLearner)
	require.NoError(t, s.CreateUser(ctx, u))

	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, s.SetResetToken(ctx, u.ID, "tok-abc", expires))

	got, err := s.GetUserByResetToken(ctx, "tok-abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
	require.NotNil(t, got.ResetExpires)

	// 未知令牌返回 (nil, nil)
	got, err = s.GetUserByResetToken(ctx, "tok-unknown")
	require.NoError(t, err)
	assert.Nil(t, got)

	// 更新密码后令牌被清除
	require.NoError(t, s.UpdateUserPassword(ctx, u.ID, "$2a$10$newhash"))
	got, err = s.GetUserByResetToken(ctx, "tok-abc")
	require.NoError(t, err)
	assert.Nil(t, got)

	byID, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$newhash", byID.PasswordHash)
	assert.Nil(t, byID.ResetToken)
	assert.Nil(t, byID.ResetExpires)
}

// ============================================================================
// Submission / Feedback 测试
// ============================================================================

func newTestSubmission(id, userID string, at time.Time) *model.Submission {
	return &model.Submission{
		ID:         id,
		UserID:     userID,
		Title:      "Unit 2 evidence",
		FileName:   "evidence.pdf",
		FileRef:    "/uploads/assignments/evidence.pdf",
		UploadedAt: at,
	}
}

func TestSubmissionCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	owner := newTestUser("usr-owner", "owner@example.org", model.RoleLearner)
	require.NoError(t, s.CreateUser(ctx, owner))

	sub := newTestSubmission("sub-001", owner.ID, now)
	sub.Description = "First draft"
	require.NoError(t, s.CreateSubmission(ctx, sub))

	got, err := s.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, owner.ID, got.UserID)
	assert.Equal(t, "Unit 2 evidence", got.Title)
	assert.Equal(t, "First draft", got.Description)
	assert.Equal(t, "evidence.pdf", got.FileName)

	got, err = s.GetSubmission(ctx, "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListSubmissionsByOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	owner := newTestUser("usr-owner", "owner@example.org", model.RoleLearner)
	other := newTestUser("usr-other", "other@example.org", model.RoleLearner)
	require.NoError(t, s.CreateUser(ctx, owner))
	require.NoError(t, s.CreateUser(ctx, other))

	require.NoError(t, s.CreateSubmission(ctx, newTestSubmission("sub-001", owner.ID, now.Add(-time.Hour))))
	require.NoError(t, s.CreateSubmission(ctx, newTestSubmission("sub-002", owner.ID, now)))
	require.NoError(t, s.CreateSubmission(ctx, newTestSubmission("sub-003", other.ID, now)))

	subs, err := s.ListSubmissionsByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	// 最新在前
	assert.Equal(t, "sub-002", subs[0].ID)
	assert.Equal(t, "sub-001", subs[1].ID)
}

func TestListSubmissionsWithOwnerJoin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	owner := newTestUser("usr-owner", "owner@example.org", model.RoleLearner)
	owner.Name = "Jo Learner"
	require.NoError(t, s.CreateUser(ctx, owner))
	require.NoError(t, s.CreateSubmission(ctx, newTestSubmission("sub-001", owner.ID, now)))

	// 全量视图联查学员身份
	subs, err := s.ListSubmissions(ctx, "")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "Jo Learner", subs[0].OwnerName)
	assert.Equal(t, "owner@example.org", subs[0].OwnerEmail)
	assert.Equal(t, "NCFE", subs[0].OwnerAwardingBody)
	assert.Equal(t, 3, subs[0].OwnerLevel)

	// 按学员过滤
	subs, err = s.ListSubmissions(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	subs, err = s.ListSubmissions(ctx, "usr-nobody")
	require.NoError(t, err)
	assert.Len(t, subs, 0)
}

func TestFeedbackLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	owner := newTestUser("usr-owner", "owner@example.org", model.RoleLearner)
	assessor := newTestUser("usr-assessor", "assessor@example.org", model.RoleAssessor)
	assessor.Name = "Sam Assessor"
	require.NoError(t, s.CreateUser(ctx, owner))
	require.NoError(t, s.CreateUser(ctx, assessor))
	require.NoError(t, s.CreateSubmission(ctx, newTestSubmission("sub-001", owner.ID, now)))

	fileName := "annotated.pdf"
	fileRef := "/uploads/feedback/annotated.pdf"
	fb1 := &model.Feedback{
		ID:           "fbk-001",
		SubmissionID: "sub-001",
		AssessorID:   assessor.ID,
		Comment:      "Good start",
		CreatedAt:    now.Add(-time.Minute),
	}
	fb2 := &model.Feedback{
		ID:           "fbk-002",
		SubmissionID: "sub-001",
		AssessorID:   assessor.ID,
		Comment:      "See attached notes",
		FileName:     &fileName,
		FileRef:      &fileRef,
		CreatedAt:    now,
	}
	require.NoError(t, s.CreateFeedback(ctx, fb1))
	require.NoError(t, s.CreateFeedback(ctx, fb2))

	// GetFeedback 联查作业拥有者
	got, err := s.GetFeedback(ctx, "fbk-002")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, owner.ID, got.OwnerID)
	assert.True(t, got.HasFile())
	require.NotNil(t, got.FileName)
	assert.Equal(t, "annotated.pdf", *got.FileName)

	got, err = s.GetFeedback(ctx, "fbk-missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	// 列表联查审核员姓名，最新在前
	fbs, err := s.ListFeedbackBySubmission(ctx, "sub-001")
	require.NoError(t, err)
	require.Len(t, fbs, 2)
	assert.Equal(t, "fbk-002", fbs[0].ID)
	assert.Equal(t, "Sam Assessor", fbs[0].AssessorName)
	assert.False(t, fbs[1].HasFile())
}

func TestDeleteSubmissionCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	owner := newTestUser("usr-owner", "owner@example.org", model.RoleLearner)
	assessor := newTestUser("usr-assessor", "assessor@example.org", model.RoleAssessor)
	require.NoError(t, s.CreateUser(ctx, owner))
	require.NoError(t, s.CreateUser(ctx, assessor))
	require.NoError(t, s.CreateSubmission(ctx, newTestSubmission("sub-001", owner.ID, now)))
	require.NoError(t, s.CreateFeedback(ctx, &model.Feedback{
		ID: "fbk-001", SubmissionID: "sub-001", AssessorID: assessor.ID,
		Comment: "ok", CreatedAt: now,
	}))

	// 级联顺序：反馈行 → 作业行
	require.NoError(t, s.DeleteFeedbackBySubmission(ctx, "sub-001"))
	fbs, err := s.ListFeedbackBySubmission(ctx, "sub-001")
	require.NoError(t, err)
	assert.Len(t, fbs, 0)

	require.NoError(t, s.DeleteSubmission(ctx, "sub-001"))
	sub, err := s.GetSubmission(ctx, "sub-001")
	require.NoError(t, err)
	assert.Nil(t, sub)
}

// ============================================================================
// Resource 测试
// ============================================================================

func newTestResource(id, body string, level int, at time.Time) *model.Resource {
	return &model.Resource{
		ID:           id,
		Title:        "Marking guide",
		Type:         "guide",
		AwardingBody: body,
		Level:        level,
		FileName:     "guide.pdf",
		FileRef:      "/uploads/resources/guide.pdf",
		UploadedAt:   at,
	}
}

func TestResourceCohortFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	require.NoError(t, s.CreateResource(ctx, newTestResource("res-001", "NCFE", 3, now)))
	require.NoError(t, s.CreateResource(ctx, newTestResource("res-002", "NCFE", 2, now.Add(time.Second))))
	require.NoError(t, s.CreateResource(ctx, newTestResource("res-003", "TQUK", 3, now.Add(2*time.Second))))

	// 学员视图：严格双条件匹配
	resources, err := s.ListResourcesForCohort(ctx, "NCFE", 3)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "res-001", resources[0].ID)

	// 空 awarding_body 的学员不会看到全部资源
	resources, err = s.ListResourcesForCohort(ctx, "", 3)
	require.NoError(t, err)
	assert.Len(t, resources, 0)

	// 审核员视图：无过滤返回全部，最新在前
	resources, err = s.ListResources(ctx, "", nil)
	require.NoError(t, err)
	require.Len(t, resources, 3)
	assert.Equal(t, "res-003", resources[0].ID)

	// 审核员按条件筛选
	level := 3
	resources, err = s.ListResources(ctx, "NCFE", &level)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "res-001", resources[0].ID)

	resources, err = s.ListResources(ctx, "TQUK", nil)
	require.NoError(t, err)
	assert.Len(t, resources, 1)
}

func TestResourceGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := newTestResource("res-001", "NCFE", 3, time.Now().Truncate(time.Second))
	require.NoError(t, s.CreateResource(ctx, r))

	got, err := s.GetResource(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.MatchesCohort("NCFE", 3))
	assert.False(t, got.MatchesCohort("NCFE", 2))
	assert.False(t, got.MatchesCohort("TQUK", 3))

	got, err = s.GetResource(ctx, "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}
