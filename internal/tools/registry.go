package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/codepacceproduct/clausify/internal/models"
)

// EventStore persists calendar events.
type EventStore interface {
	CreateEvent(ctx context.Context, ev models.Event) (*models.Event, error)
}

// ContractStore reads contracts scoped to their owner. A miss is
// models.ErrNotFound.
type ContractStore interface {
	GetContract(ctx context.Context, id, userID string) (*models.Contract, error)
}

// Deps are the backing services the handlers need. Nil stores make their
// tools answer with StatusSkip.
type Deps struct {
	Events    EventStore
	Contracts ContractStore
	// Timeout bounds each store call. Zero means no extra bound.
	Timeout time.Duration
	// Now is overridable for tests.
	Now func() time.Time
}

// Registry is the fixed set of tools offered to the model.
type Registry struct {
	tools map[Name]*Tool
	order []Name
}

// NewRegistry builds the registry with all tools bound to deps.
func NewRegistry(deps Deps) *Registry {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	h := &handlers{deps: deps}
	list := []*Tool{
		h.createEventTool(),
		h.analyzeContractTool(),
		searchCaseLawTool(),
		sendChatMessageTool(),
		createVersionTool(),
		openPlaybookTool(),
		runCalculationTool(),
		updateSettingTool(),
	}
	r := &Registry{tools: make(map[Name]*Tool, len(list))}
	for _, t := range list {
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r
}

// Infos returns the tool schemas in registration order.
func (r *Registry) Infos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, n := range r.order {
		infos = append(infos, r.tools[n].Info())
	}
	return infos
}

// Invoke runs the named tool on behalf of userID. An unknown name is
// ErrUnknownTool; malformed arguments are ErrInvalidArguments.
func (r *Registry) Invoke(ctx context.Context, name, rawArgs, userID string) (Result, error) {
	t, ok := r.tools[Name(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t.Invoke(WithUserID(ctx, userID), rawArgs)
}

type handlers struct {
	deps Deps
}

func (h *handlers) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.deps.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.deps.Timeout)
}
