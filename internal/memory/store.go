package memory

import (
	"context"
	"time"

	"github.com/codepacceproduct/clausify/internal/log"
	"github.com/codepacceproduct/clausify/internal/models"
)

// DefaultLimit is how many records a dispatch loads as context.
const DefaultLimit = 8

// Backend is a persistence target for memory records. Both the SQL
// repository and the REST data API client implement it.
type Backend interface {
	AddMemory(ctx context.Context, rec models.MemoryRecord) error
	RecentMemory(ctx context.Context, userID string, limit int) ([]models.MemoryRecord, error)
}

// Store is a best-effort façade over a Backend. It never returns errors: a
// nil backend makes every call a no-op and backend failures are logged.
type Store struct {
	backend Backend
	timeout time.Duration
}

// NewStore wraps backend. A nil backend yields a disabled store.
func NewStore(backend Backend, timeout time.Duration) *Store {
	return &Store{backend: backend, timeout: timeout}
}

// Enabled reports whether records are actually persisted.
func (s *Store) Enabled() bool {
	return s != nil && s.backend != nil
}

// Add appends one record for userID.
func (s *Store) Add(ctx context.Context, userID string, role models.Role, content, toolName string) {
	if !s.Enabled() {
		return
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.backend.AddMemory(ctx, models.MemoryRecord{
		UserID:   userID,
		Role:     role,
		Content:  content,
		ToolName: toolName,
	})
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).
			Str("user_id", userID).
			Str("role", string(role)).
			Str("tool", toolName).
			Msg("memory write dropped")
	}
}

// Recent returns at most limit records for userID, newest first. Failures
// yield an empty slice.
func (s *Store) Recent(ctx context.Context, userID string, limit int) []models.MemoryRecord {
	if !s.Enabled() || limit <= 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	records, err := s.backend.RecentMemory(ctx, userID, limit)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("user_id", userID).Msg("memory read failed")
		return nil
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return records
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
