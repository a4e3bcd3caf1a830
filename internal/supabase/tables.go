package supabase

import (
	"context"
	"errors"
	"time"

	"github.com/supabase-community/postgrest-go"

	"github.com/codepacceproduct/clausify/internal/models"
)

const (
	memoryTable    = "harvey_memory"
	eventsTable    = "events"
	contractsTable = "contracts"
)

const contractColumns = "id,user_id,name,client_name,type,status,risk_level,score,content"

type memoryRow struct {
	UserID    string  `json:"user_id"`
	Role      string  `json:"role"`
	Content   string  `json:"content"`
	ToolName  *string `json:"tool_name"`
	CreatedAt string  `json:"created_at"`
}

type eventRow struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	StartTime   string  `json:"start_time"`
	Type        string  `json:"type"`
	Priority    *string `json:"priority"`
	CreatedAt   string  `json:"created_at"`
}

// timestamp columns may come back with or without a zone offset
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(v string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// AddMemory inserts into harvey_memory. created_at comes from the column
// default.
func (c *Client) AddMemory(ctx context.Context, rec models.MemoryRecord) error {
	if rec.UserID == "" {
		return errors.New("user_id is required")
	}
	row := struct {
		UserID   string  `json:"user_id"`
		Role     string  `json:"role"`
		Content  string  `json:"content"`
		ToolName *string `json:"tool_name"`
	}{UserID: rec.UserID, Role: string(rec.Role), Content: rec.Content}
	if rec.ToolName != "" {
		row.ToolName = &rec.ToolName
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()
	_, _, err := c.rest.From(memoryTable).Insert(row, false, "", "minimal", "").ExecuteWithContext(ctx)
	return wrap(memoryTable, err)
}

// RecentMemory returns up to limit records for userID, newest first.
func (c *Client) RecentMemory(ctx context.Context, userID string, limit int) ([]models.MemoryRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()

	var rows []memoryRow
	_, err := c.rest.From(memoryTable).
		Select("user_id,role,content,tool_name,created_at", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		ExecuteToWithContext(ctx, &rows)
	if err != nil {
		return nil, wrap(memoryTable, err)
	}
	records := make([]models.MemoryRecord, 0, len(rows))
	for _, r := range rows {
		rec := models.MemoryRecord{
			UserID:    r.UserID,
			Role:      models.Role(r.Role),
			Content:   r.Content,
			CreatedAt: parseTimestamp(r.CreatedAt),
		}
		if r.ToolName != nil {
			rec.ToolName = *r.ToolName
		}
		records = append(records, rec)
	}
	return records, nil
}

// CreateEvent inserts into events and returns the stored representation.
func (c *Client) CreateEvent(ctx context.Context, ev models.Event) (*models.Event, error) {
	payload := map[string]any{
		"user_id":     ev.UserID,
		"title":       ev.Title,
		"description": ev.Description,
		"date":        ev.Date,
		"start_time":  ev.StartTime,
		"type":        ev.Type,
	}
	if ev.Priority != "" {
		payload["priority"] = ev.Priority
	}

	ctx, cancel := c.bound(ctx)
	defer cancel()

	var rows []eventRow
	_, err := c.rest.From(eventsTable).
		Insert(payload, false, "", "representation", "").
		ExecuteToWithContext(ctx, &rows)
	if err != nil {
		return nil, wrap(eventsTable, err)
	}
	if len(rows) == 0 {
		return nil, errors.New("supabase: insert into events returned no rows")
	}
	r := rows[0]
	stored := &models.Event{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		Date:        r.Date,
		StartTime:   r.StartTime,
		Type:        r.Type,
		CreatedAt:   parseTimestamp(r.CreatedAt),
	}
	if r.Priority != nil {
		stored.Priority = *r.Priority
	}
	return stored, nil
}

// GetContract fetches one contract owned by userID, or models.ErrNotFound.
func (c *Client) GetContract(ctx context.Context, id, userID string) (*models.Contract, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	var rows []models.Contract
	_, err := c.rest.From(contractsTable).
		Select(contractColumns, "", false).
		Eq("id", id).
		Eq("user_id", userID).
		Limit(1, "").
		ExecuteToWithContext(ctx, &rows)
	if err != nil {
		return nil, wrap(contractsTable, err)
	}
	if len(rows) == 0 {
		return nil, models.ErrNotFound
	}
	return &rows[0], nil
}

// SaveContract upserts a contract row by id.
func (c *Client) SaveContract(ctx context.Context, ct models.Contract) error {
	if ct.ID == "" || ct.UserID == "" {
		return errors.New("contract id and user_id are required")
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()
	_, _, err := c.rest.From(contractsTable).
		Upsert([]models.Contract{ct}, "id", "minimal", "").
		ExecuteWithContext(ctx)
	return wrap(contractsTable, err)
}
