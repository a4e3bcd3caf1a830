package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/codepacceproduct/clausify/internal/log"
	"github.com/codepacceproduct/clausify/internal/memory"
	"github.com/codepacceproduct/clausify/internal/models"
	"github.com/codepacceproduct/clausify/internal/tools"
)

// SystemPrompt is the fixed persona instruction sent first on every turn.
const SystemPrompt = "Você é Harvey, assistente jurídico executivo da plataforma Clausify. " +
	"Você pode executar ações reais no sistema. " +
	"Sempre utilize ferramentas quando necessário. " +
	"Responda em português de forma objetiva."

// ErrMalformedArguments means the model asked for a tool with arguments
// that are not valid JSON or do not fit the tool's parameters.
var ErrMalformedArguments = errors.New("malformed tool arguments")

// Outcome is the result of one dispatch: either a tool ran, or the model
// answered in free text.
type Outcome struct {
	Tool  tools.Name
	Data  tools.Result
	Reply string
}

func (o *Outcome) ToolExecuted() bool {
	return o != nil && o.Tool != ""
}

// Payload is the value returned to callers: {"tool","data"} for a tool
// call, the reply text otherwise, or nil for an empty reply.
func (o *Outcome) Payload() any {
	if o == nil {
		return nil
	}
	if o.ToolExecuted() {
		return map[string]any{"tool": o.Tool, "data": o.Data}
	}
	if o.Reply == "" {
		return nil
	}
	return o.Reply
}

// Text renders the outcome as a single string, used for speech.
func (o *Outcome) Text() string {
	if o == nil {
		return ""
	}
	if o.ToolExecuted() {
		buf, err := json.Marshal(o.Payload())
		if err != nil {
			return ""
		}
		return string(buf)
	}
	return o.Reply
}

// Options tune how much history a dispatch loads.
type Options struct {
	HistoryLimit int
	// TokenBudget caps the rendered history; zero disables the cap.
	TokenBudget int
	Counter     memory.TokenCounter
}

// Dispatcher runs one command through the model and at most one tool.
type Dispatcher struct {
	chatModel model.ToolCallingChatModel
	registry  *tools.Registry
	memory    *memory.Store
	opts      Options
}

// NewDispatcher binds the registry's schemas to chatModel.
func NewDispatcher(chatModel model.ToolCallingChatModel, registry *tools.Registry, store *memory.Store, opts Options) (*Dispatcher, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}
	bound, err := chatModel.WithTools(registry.Infos())
	if err != nil {
		return nil, fmt.Errorf("bind tools: %w", err)
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = memory.DefaultLimit
	}
	if store == nil {
		store = memory.NewStore(nil, 0)
	}
	return &Dispatcher{
		chatModel: bound,
		registry:  registry,
		memory:    store,
		opts:      opts,
	}, nil
}

// Run executes one command for userID. LLM failures and malformed tool
// arguments return an error and leave memory untouched.
func (d *Dispatcher) Run(ctx context.Context, command, userID string) (*Outcome, error) {
	logger := log.FromCtx(ctx).With().Str("user_id", userID).Logger()

	history := d.memory.Recent(ctx, userID, d.opts.HistoryLimit)
	history = memory.Window(history, d.opts.TokenBudget, d.opts.Counter)

	messages := []*schema.Message{schema.SystemMessage(SystemPrompt)}
	if block := memory.RenderHistory(history); block != "" {
		messages = append(messages, schema.SystemMessage(block))
	}
	messages = append(messages, schema.UserMessage(command))

	resp, err := d.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	if resp == nil {
		return nil, errors.New("generate: empty response")
	}

	// memory writes outlive a caller that went away after the model answered
	writeCtx := context.WithoutCancel(ctx)

	if len(resp.ToolCalls) > 0 {
		if len(resp.ToolCalls) > 1 {
			logger.Debug().Int("tool_calls", len(resp.ToolCalls)).Msg("only the first tool call is executed")
		}
		call := resp.ToolCalls[0].Function
		if strings.TrimSpace(call.Arguments) != "" && !json.Valid([]byte(call.Arguments)) {
			return nil, fmt.Errorf("%w: %s", ErrMalformedArguments, call.Name)
		}

		result, err := d.registry.Invoke(ctx, call.Name, call.Arguments, userID)
		switch {
		case errors.Is(err, tools.ErrUnknownTool):
			logger.Warn().Str("tool", call.Name).Msg("model requested unknown tool, answering in text")
		case errors.Is(err, tools.ErrInvalidArguments):
			return nil, fmt.Errorf("%w: %v", ErrMalformedArguments, err)
		case err != nil:
			return nil, fmt.Errorf("invoke %s: %w", call.Name, err)
		default:
			encoded, err := json.Marshal(result)
			if err != nil {
				return nil, fmt.Errorf("encode %s result: %w", call.Name, err)
			}
			d.memory.Add(writeCtx, userID, models.RoleUser, command, "")
			d.memory.Add(writeCtx, userID, models.RoleAssistant, string(encoded), call.Name)

			logger.Info().Str("tool", call.Name).Str("status", string(result.Status())).Msg("tool executed")
			return &Outcome{Tool: tools.Name(call.Name), Data: result}, nil
		}
	}

	d.memory.Add(writeCtx, userID, models.RoleUser, command, "")
	if strings.TrimSpace(resp.Content) != "" {
		d.memory.Add(writeCtx, userID, models.RoleAssistant, resp.Content, "")
	}
	logger.Info().Int("reply_len", len(resp.Content)).Msg("plain reply")
	return &Outcome{Reply: resp.Content}, nil
}
