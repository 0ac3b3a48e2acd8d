package services

import (
	"errors"

	"gorm.io/gorm"
)

// Kind 错误分类，由 handler 映射为 HTTP 状态码
type Kind int

const (
	KindInternal Kind = iota
	KindConflict
	KindInvalidCredentials
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindInvalidOperation
	KindTooManyRequests
)

var (
	ErrEmailTaken         = errors.New("Email already registered")
	ErrUsernameTaken      = errors.New("Username already taken")
	ErrDuplicate          = errors.New("Resource already exists")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrUnauthorized       = errors.New("Invalid token")
	ErrTokenExpired       = errors.New("Token expired")
	ErrUserGone           = errors.New("User not found")
	ErrForbidden          = errors.New("Not allowed")
	ErrNotAdmin           = errors.New("Admin access required")
	ErrBlocked            = errors.New("Action not allowed between blocked users")

	ErrUserNotFound         = errors.New("User not found")
	ErrPostNotFound         = errors.New("Post not found")
	ErrCommentNotFound      = errors.New("Comment not found")
	ErrNotificationNotFound = errors.New("Notification not found")
	ErrConversationNotFound = errors.New("Conversation not found")
	ErrReportNotFound       = errors.New("Report not found")

	ErrSelfFollow         = errors.New("Cannot follow yourself")
	ErrSelfBlock          = errors.New("Cannot block yourself")
	ErrSelfMessage        = errors.New("Cannot message yourself")
	ErrSelfReport         = errors.New("Cannot report yourself")
	ErrNestedReply        = errors.New("Replies can only be added to top-level comments")
	ErrInvalidTargetType  = errors.New("Invalid target type")
	ErrInvalidVisibility  = errors.New("Visibility must be public or followers")
	ErrInvalidStatus      = errors.New("Invalid report status")
	ErrEmptyContent       = errors.New("Content cannot be empty")
	ErrInvalidInput       = errors.New("Invalid input")
	ErrUnsupportedImage   = errors.New("Only jpeg, png, gif and webp images are allowed")
	ErrImageTooLarge      = errors.New("Image is too large")
	ErrTooManyAttempts    = errors.New("Too many login attempts, try again later")
	ErrInvalidMessageType = errors.New("Message type must be text or image")
)

var kinds = map[error]Kind{
	ErrEmailTaken:           KindConflict,
	ErrUsernameTaken:        KindConflict,
	ErrDuplicate:            KindConflict,
	ErrInvalidCredentials:   KindInvalidCredentials,
	ErrTooManyAttempts:      KindTooManyRequests,
	ErrUnauthorized:         KindUnauthorized,
	ErrTokenExpired:         KindUnauthorized,
	ErrUserGone:             KindUnauthorized,
	ErrForbidden:            KindForbidden,
	ErrNotAdmin:             KindForbidden,
	ErrBlocked:              KindForbidden,
	ErrUserNotFound:         KindNotFound,
	ErrPostNotFound:         KindNotFound,
	ErrCommentNotFound:      KindNotFound,
	ErrNotificationNotFound: KindNotFound,
	ErrConversationNotFound: KindNotFound,
	ErrReportNotFound:       KindNotFound,
	ErrSelfFollow:           KindInvalidOperation,
	ErrSelfBlock:            KindInvalidOperation,
	ErrSelfMessage:          KindInvalidOperation,
	ErrSelfReport:           KindInvalidOperation,
	ErrNestedReply:          KindInvalidOperation,
	ErrInvalidTargetType:    KindInvalidOperation,
	ErrInvalidVisibility:    KindInvalidOperation,
	ErrInvalidStatus:        KindInvalidOperation,
	ErrEmptyContent:         KindInvalidOperation,
	ErrInvalidInput:         KindInvalidOperation,
	ErrUnsupportedImage:     KindInvalidOperation,
	ErrImageTooLarge:        KindInvalidOperation,
	ErrInvalidMessageType:   KindInvalidOperation,
}

// KindOf 返回错误分类，未知错误视为内部错误
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if k, ok := kinds[e]; ok {
			return k
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return KindConflict
	}
	return KindInternal
}

// notFound 将 gorm 的记录不存在转换为领域错误
func notFound(err error, domainErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainErr
	}
	return err
}

// conflict 唯一索引冲突（并发重复写入）统一转换为 ErrDuplicate
func conflict(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}
