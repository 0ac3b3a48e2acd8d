package models

import (
	"github.com/google/uuid"
)

// newID 生成实体主键，所有表统一使用 UUID 字符串
func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
