package model

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID 生成带类型前缀的实体 ID，如 "usr-6f1c..."
func NewID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
