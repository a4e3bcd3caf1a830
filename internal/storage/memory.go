package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codepacceproduct/clausify/internal/models"
)

// MemoryRepo persists conversation turns in harvey_memory.
type MemoryRepo struct {
	db *sql.DB
}

func NewMemoryRepo(db *sql.DB) *MemoryRepo {
	return &MemoryRepo{db: db}
}

// AddMemory appends one record. CreatedAt is always assigned here.
func (r *MemoryRepo) AddMemory(ctx context.Context, rec models.MemoryRecord) error {
	if rec.UserID == "" {
		return errors.New("user_id is required")
	}
	var toolName sql.NullString
	if rec.ToolName != "" {
		toolName = sql.NullString{String: rec.ToolName, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO harvey_memory (user_id, role, content, tool_name, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.UserID, string(rec.Role), rec.Content, toolName, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// RecentMemory returns up to limit records for the user, newest first.
func (r *MemoryRepo) RecentMemory(ctx context.Context, userID string, limit int) ([]models.MemoryRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, role, content, tool_name, created_at FROM harvey_memory
		WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query memory: %w", err)
	}
	defer rows.Close()

	var records []models.MemoryRecord
	for rows.Next() {
		var (
			rec      models.MemoryRecord
			role     string
			toolName sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &role, &rec.Content, &toolName, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		rec.Role = models.Role(role)
		rec.ToolName = toolName.String
		records = append(records, rec)
	}
	return records, rows.Err()
}
