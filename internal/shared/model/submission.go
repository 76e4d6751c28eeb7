package model

import "time"

// Submission 学员上传的作业文件
//
// FileRef 为 blob 存储引用：本地后端是磁盘路径，远程后端是对象 key 或 URL。
type Submission struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	FileName    string    `json:"filename" db:"filename"`
	FileRef     string    `json:"-" db:"fileref"`
	UploadedAt  time.Time `json:"uploaded_at" db:"uploaded_at"`

	// 审核员列表视图中联查的学员信息
	OwnerName         string `json:"student_name,omitempty"`
	OwnerEmail        string `json:"student_email,omitempty"`
	OwnerAwardingBody string `json:"student_awarding_body,omitempty"`
	OwnerLevel        int    `json:"student_level,omitempty"`

	// 附带的反馈列表（最新在前）
	Feedback []*Feedback `json:"feedback"`
}

// Feedback 审核员对某份作业的反馈，创建后不可修改，
// 仅随所属 Submission 级联删除。
type Feedback struct {
	ID           string    `json:"id" db:"id"`
	SubmissionID string    `json:"submission_id" db:"submission_id"`
	AssessorID   string    `json:"assessor_id" db:"assessor_id"`
	Comment      string    `json:"comment" db:"comment"`
	FileName     *string   `json:"filename,omitempty" db:"filename"`
	FileRef      *string   `json:"-" db:"fileref"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	// 联查的审核员姓名
	AssessorName string `json:"assessor_name,omitempty"`

	// 联查的所属作业拥有者 ID（下载授权用）
	OwnerID string `json:"-"`
}

// HasFile 是否附带了修订文件
func (f *Feedback) HasFile() bool {
	return f.FileRef != nil && *f.FileRef != ""
}
