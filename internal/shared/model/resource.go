package model

import "time"

// Resource 审核员发布的参考资料，无归属账户。
// 学员只能看到与自身 awarding_body + level 完全匹配的条目。
type Resource struct {
	ID           string    `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	Type         string    `json:"type" db:"type"`
	AwardingBody string    `json:"awarding_body" db:"awarding_body"`
	Level        int       `json:"level" db:"level"`
	FileName     string    `json:"filename" db:"filename"`
	FileRef      string    `json:"-" db:"fileref"`
	UploadedAt   time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// MatchesCohort 资源是否属于指定的认证机构与级别
func (r *Resource) MatchesCohort(awardingBody string, level int) bool {
	return r.AwardingBody == awardingBody && r.Level == level
}
