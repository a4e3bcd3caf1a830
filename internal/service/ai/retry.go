package ai

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/codepacceproduct/clausify/internal/log"
)

// retryingModel bounds every Generate attempt by timeout and retries failed
// attempts up to retries extra times. Streams are passed through untouched.
type retryingModel struct {
	inner      model.ToolCallingChatModel
	retries    int
	timeout    time.Duration
	newBackOff func() backoff.BackOff
}

// WithRetry wraps m. retries is the number of extra attempts after the first.
func WithRetry(m model.ToolCallingChatModel, retries int, timeout time.Duration) model.ToolCallingChatModel {
	if retries < 0 {
		retries = 0
	}
	return &retryingModel{
		inner:      m,
		retries:    retries,
		timeout:    timeout,
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 300 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}

func (m *retryingModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	attempt := 0
	op := func() (*schema.Message, error) {
		attempt++
		attemptCtx, cancel := m.attemptContext(ctx)
		defer cancel()

		msg, err := m.inner.Generate(attemptCtx, input, opts...)
		if err == nil {
			return msg, nil
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		log.FromCtx(ctx).Warn().Err(err).Int("attempt", attempt).Msg("chat model call failed")
		return nil, err
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(m.newBackOff()),
		backoff.WithMaxTries(uint(m.retries+1)),
	)
}

func (m *retryingModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return m.inner.Stream(ctx, input, opts...)
}

func (m *retryingModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	inner, err := m.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &retryingModel{
		inner:      inner,
		retries:    m.retries,
		timeout:    m.timeout,
		newBackOff: m.newBackOff,
	}, nil
}

func (m *retryingModel) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}
