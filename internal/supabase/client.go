package supabase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"

	"github.com/codepacceproduct/clausify/internal/config"
)

// Client talks to the PostgREST endpoint of a Supabase project using the
// service-role key.
type Client struct {
	rest    *postgrest.Client
	timeout time.Duration
}

// New returns a client for cfg.
func New(cfg config.SupabaseConfig) (*Client, error) {
	if !cfg.Configured() {
		return nil, errors.New("supabase url and service role key are required")
	}
	rest, err := postgrest.NewClientWithError(strings.TrimRight(cfg.URL, "/")+"/rest/v1", "public", map[string]string{
		"apikey":        cfg.ServiceRoleKey,
		"Authorization": "Bearer " + cfg.ServiceRoleKey,
	})
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}
	return &Client{rest: rest, timeout: cfg.Timeout()}, nil
}

// bound applies the configured request timeout on top of ctx.
func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func wrap(table string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("supabase %s: %w", table, err)
}
