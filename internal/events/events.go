package events

import (
	"time"
)

const (
	StreamName     = "KRAFINK"
	SubjectPattern = "krafink.>"

	SubjectUserRegistered  = "krafink.user.registered"
	SubjectPostCreated     = "krafink.post.created"
	SubjectPostDeleted     = "krafink.post.deleted"
	SubjectFollowCreated   = "krafink.follow.created"
	SubjectUserBlocked     = "krafink.user.blocked"
	SubjectReportSubmitted = "krafink.report.submitted"
)

// Envelope 发布到事件流的统一结构
type Envelope struct {
	Subject    string      `json:"subject"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// Publisher 领域事件发布。实现必须非阻塞，失败只记录日志
type Publisher interface {
	Publish(subject string, data interface{})
	Close()
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}
func (nopPublisher) Close()                      {}

// Nop 未配置 NATS 时使用
func Nop() Publisher {
	return nopPublisher{}
}
