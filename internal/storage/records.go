package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codepacceproduct/clausify/internal/models"
)

const defaultEventPriority = "medium"

// EventRepo stores calendar events.
type EventRepo struct {
	db *sql.DB
}

func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{db: db}
}

// CreateEvent inserts the event and returns the stored row.
func (r *EventRepo) CreateEvent(ctx context.Context, ev models.Event) (*models.Event, error) {
	if ev.UserID == "" {
		return nil, errors.New("user_id is required")
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Priority == "" {
		ev.Priority = defaultEventPriority
	}
	ev.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, user_id, title, description, date, start_time, type, priority, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.UserID, ev.Title, ev.Description, ev.Date, ev.StartTime, ev.Type, ev.Priority, ev.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return &ev, nil
}

// ContractRepo reads contracts. Every lookup is scoped by owner.
type ContractRepo struct {
	db *sql.DB
}

func NewContractRepo(db *sql.DB) *ContractRepo {
	return &ContractRepo{db: db}
}

// GetContract returns the contract with id owned by userID, or
// models.ErrNotFound.
func (r *ContractRepo) GetContract(ctx context.Context, id, userID string) (*models.Contract, error) {
	var (
		c       models.Contract
		score   sql.NullFloat64
		content sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, client_name, type, status, risk_level, score, content
		FROM contracts WHERE id = ? AND user_id = ? LIMIT 1`,
		id, userID,
	).Scan(&c.ID, &c.UserID, &c.Name, &c.ClientName, &c.Type, &c.Status, &c.RiskLevel, &score, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query contract: %w", err)
	}
	if score.Valid {
		c.Score = &score.Float64
	}
	c.Content = content.String
	return &c, nil
}

// SaveContract inserts or replaces a contract row.
func (r *ContractRepo) SaveContract(ctx context.Context, c models.Contract) error {
	if c.ID == "" || c.UserID == "" {
		return errors.New("contract id and user_id are required")
	}
	var score sql.NullFloat64
	if c.Score != nil {
		score = sql.NullFloat64{Float64: *c.Score, Valid: true}
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin contract tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM contracts WHERE id = ?`, c.ID); err != nil {
		return fmt.Errorf("replace contract: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO contracts (id, user_id, name, client_name, type, status, risk_level, score, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.ClientName, c.Type, c.Status, c.RiskLevel, score, c.Content, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert contract: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit contract: %w", err)
	}
	return nil
}
