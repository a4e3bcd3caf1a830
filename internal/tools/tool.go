package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/codepacceproduct/clausify/internal/log"
)

// Name identifies a tool. The set is closed and the values are part of the
// contract with the model provider, so they never change.
type Name string

const (
	CreateEvent     Name = "criar_evento"
	AnalyzeContract Name = "analisar_contrato"
	SearchCaseLaw   Name = "consultar_jurisprudencia"
	SendChatMessage Name = "enviar_mensagem_chat"
	CreateVersion   Name = "criar_versao"
	OpenPlaybook    Name = "acessar_playbook"
	RunCalculation  Name = "executar_calculo"
	UpdateSetting   Name = "atualizar_config"
)

// Status is the outcome class every Result carries.
type Status string

const (
	StatusOK       Status = "ok"
	StatusSkip     Status = "skip"
	StatusError    Status = "error"
	StatusNotFound Status = "not_found"
)

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// Result is the JSON-serializable payload of a tool. It always has "status".
type Result map[string]any

func (r Result) Status() Status {
	switch s := r["status"].(type) {
	case Status:
		return s
	case string:
		return Status(s)
	}
	return ""
}

type userIDKey struct{}

// WithUserID attaches the caller identity the handlers act for.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the identity set by WithUserID.
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey{}).(string)
	return userID
}

// Tool wraps an eino invokable tool with required-key checks and panic
// recovery.
type Tool struct {
	info     *schema.ToolInfo
	required []string
	run      tool.InvokableTool
}

func (t *Tool) Name() Name {
	return Name(t.info.Name)
}

func (t *Tool) Info() *schema.ToolInfo {
	return t.info
}

// Invoke checks rawArgs and runs the tool. Only argument problems come back
// as errors; handler failures, including panics, become a StatusError
// result.
func (t *Tool) Invoke(ctx context.Context, rawArgs string) (res Result, err error) {
	if strings.TrimSpace(rawArgs) == "" {
		rawArgs = "{}"
	}
	if err := t.checkArgs(rawArgs); err != nil {
		return nil, err
	}
	defer func() {
		if p := recover(); p != nil {
			log.FromCtx(ctx).Error().Str("tool", t.info.Name).Interface("panic", p).Msg("tool handler panicked")
			res, err = Result{"status": StatusError, "motivo": "Falha interna ao executar a ferramenta."}, nil
		}
	}()

	// handlers never fail, so an error here is a type mismatch in the arguments
	out, err := t.run.InvokableRun(ctx, rawArgs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", t.info.Name, err)
	}
	return res, nil
}

// newTool binds a typed handler through eino's utils.NewTool. The caller
// identity travels in the context.
func newTool[T any](name Name, desc string, params *schema.ParamsOneOf, required []string,
	fn func(ctx context.Context, args *T, userID string) Result) *Tool {
	info := &schema.ToolInfo{
		Name:        string(name),
		Desc:        desc,
		ParamsOneOf: params,
	}
	required = append([]string(nil), required...)
	sort.Strings(required)

	return &Tool{
		info:     info,
		required: required,
		run: utils.NewTool(info, func(ctx context.Context, args *T) (Result, error) {
			return fn(ctx, args, UserIDFromContext(ctx)), nil
		}),
	}
}

// newParamsTool is newTool for a flat ParameterInfo map.
func newParamsTool[T any](name Name, desc string, params map[string]*schema.ParameterInfo,
	fn func(ctx context.Context, args *T, userID string) Result) *Tool {
	var required []string
	for k, p := range params {
		if p.Required {
			required = append(required, k)
		}
	}
	return newTool(name, desc, schema.NewParamsOneOfByParams(params), required, fn)
}

// checkArgs parses the argument object and checks required keys.
func (t *Tool) checkArgs(raw string) error {
	var args map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidArguments, t.info.Name, err)
	}
	if args == nil {
		return fmt.Errorf("%w: %s: arguments must be an object", ErrInvalidArguments, t.info.Name)
	}
	var missing []string
	for _, name := range t.required {
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s: missing %v", ErrInvalidArguments, t.info.Name, missing)
	}
	return nil
}
