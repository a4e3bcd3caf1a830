package models

import "time"

// Event is a calendar entry created on behalf of a user.
type Event struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	StartTime   string    `json:"start_time"`
	Type        string    `json:"type"`
	Priority    string    `json:"priority,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Contract is the subset of a stored contract the assistant can read.
type Contract struct {
	ID         string   `json:"id"`
	UserID     string   `json:"user_id"`
	Name       string   `json:"name"`
	ClientName string   `json:"client_name"`
	Type       string   `json:"type"`
	Status     string   `json:"status"`
	RiskLevel  string   `json:"risk_level"`
	Score      *float64 `json:"score"`
	Content    string   `json:"content"`
}
