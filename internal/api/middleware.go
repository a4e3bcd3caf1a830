package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codepacceproduct/clausify/internal/auth"
	"github.com/codepacceproduct/clausify/internal/service/assistant"
	"github.com/codepacceproduct/clausify/internal/worker"
)

// RequestLogger attaches a per-request logger to the request context and
// logs one line per request once it completes.
func RequestLogger(base *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		logger := base.With().Str("request_id", reqID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Header("X-Request-Id", reqID)

		c.Next()

		ev := logger.Info()
		if c.Writer.Status() >= 500 {
			ev = logger.Error()
		}
		if userID, ok := auth.UserIDFromContext(c); ok {
			ev = ev.Str("user_id", userID)
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

// Pooled runs every dispatch through pool so that the turns of one user
// execute in arrival order.
func Pooled(pool *worker.Pool, d Dispatcher) Dispatcher {
	return &pooledDispatcher{pool: pool, inner: d}
}

type pooledDispatcher struct {
	pool  *worker.Pool
	inner Dispatcher
}

func (p *pooledDispatcher) Run(ctx context.Context, command, userID string) (*assistant.Outcome, error) {
	var out *assistant.Outcome
	err := p.pool.Do(ctx, userID, func(ctx context.Context) error {
		var err error
		out, err = p.inner.Run(ctx, command, userID)
		return err
	})
	return out, err
}
