package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by record lookups that match nothing for the caller.
var ErrNotFound = errors.New("record not found")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MemoryRecord is one turn of a user's conversation history. Records are
// append-only; CreatedAt is assigned by the store at insert time.
type MemoryRecord struct {
	ID        int64     `json:"-"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	ToolName  string    `json:"tool_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
