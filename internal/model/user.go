package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxEventTypeNameLength は面接種別名の最大文字数です
const MaxEventTypeNameLength = 18

// Developer は空き枠・予約・面接種別を所有する利用者です
type Developer struct {
	ID             uuid.UUID `db:"id"`
	Role           Role      `db:"role"`
	DisplayName    string    `db:"display_name"`
	Email          string    `db:"email"`
	TelegramChatID *string   `db:"telegram_chat_id"`
	PublicToken    string    `db:"public_token"`
	CreatedAt      time.Time `db:"created_at"`
}

// EventType は開発者ごとの面接種別です
type EventType struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DeveloperID uuid.UUID `db:"developer_id" json:"developerId"`
	Name        string    `db:"name" json:"name"`
}

// NormalizeEventTypeName trims name and enforces the length rule.
func NormalizeEventTypeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", InvalidArgument("event type name is required")
	}
	if len([]rune(trimmed)) > MaxEventTypeNameLength {
		return "", InvalidArgument("event type name must be at most %d characters", MaxEventTypeNameLength)
	}
	return trimmed, nil
}
