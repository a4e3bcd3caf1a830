package assistant

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codepacceproduct/clausify/internal/config"
	"github.com/codepacceproduct/clausify/internal/memory"
	"github.com/codepacceproduct/clausify/internal/models"
	"github.com/codepacceproduct/clausify/internal/storage"
	"github.com/codepacceproduct/clausify/internal/tools"
)

type scriptedModel struct {
	reply *schema.Message
	err   error
	seen  [][]*schema.Message
	tools []*schema.ToolInfo
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.seen = append(m.seen, input)
	if m.err != nil {
		return nil, m.err
	}
	return m.reply, nil
}

func (m *scriptedModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func (m *scriptedModel) WithTools(infos []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.tools = infos
	return m, nil
}

func toolCall(name, args string) schema.ToolCall {
	return schema.ToolCall{ID: "call_" + name, Type: "function", Function: schema.FunctionCall{Name: name, Arguments: args}}
}

type fixture struct {
	db         *sql.DB
	model      *scriptedModel
	dispatcher *Dispatcher
}

func newFixture(t *testing.T, reply *schema.Message) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := storage.Open(ctx, "sqlite3", config.DatabaseConfig{DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.Migrate(ctx, db, "sqlite3"))

	m := &scriptedModel{reply: reply}
	registry := tools.NewRegistry(tools.Deps{
		Events:    storage.NewEventRepo(db),
		Contracts: storage.NewContractRepo(db),
	})
	d, err := NewDispatcher(m, registry, memory.NewStore(storage.NewMemoryRepo(db), 0), Options{})
	require.NoError(t, err)
	return &fixture{db: db, model: m, dispatcher: d}
}

func (f *fixture) records(t *testing.T, userID string) []models.MemoryRecord {
	t.Helper()
	recs, err := storage.NewMemoryRepo(f.db).RecentMemory(context.Background(), userID, 100)
	require.NoError(t, err)
	return recs
}

func TestDispatcherBindsAllTools(t *testing.T) {
	f := newFixture(t, schema.AssistantMessage("ok", nil))
	require.Len(t, f.model.tools, 8)
	assert.Equal(t, string(tools.CreateEvent), f.model.tools[0].Name)
}

func TestPlainReplyWritesCommandAndReply(t *testing.T) {
	f := newFixture(t, schema.AssistantMessage("Olá! Como posso ajudar?", nil))

	out, err := f.dispatcher.Run(context.Background(), "oi", "u1")
	require.NoError(t, err)
	assert.False(t, out.ToolExecuted())
	assert.Equal(t, "Olá! Como posso ajudar?", out.Payload())

	recs := f.records(t, "u1")
	require.Len(t, recs, 2)
	assert.Equal(t, models.RoleAssistant, recs[0].Role)
	assert.Equal(t, "Olá! Como posso ajudar?", recs[0].Content)
	assert.Equal(t, models.RoleUser, recs[1].Role)
	assert.Equal(t, "oi", recs[1].Content)
}

func TestEmptyReplyWritesOnlyCommand(t *testing.T) {
	f := newFixture(t, schema.AssistantMessage("", nil))

	out, err := f.dispatcher.Run(context.Background(), "oi", "u1")
	require.NoError(t, err)
	assert.Nil(t, out.Payload())
	assert.Len(t, f.records(t, "u1"), 1)
}

func TestToolCallRunsFirstToolOnly(t *testing.T) {
	f := newFixture(t, schema.AssistantMessage("", []schema.ToolCall{
		toolCall("consultar_jurisprudencia", `{"consulta":"dano moral"}`),
		toolCall("enviar_mensagem_chat", `{"mensagem":"x"}`),
	}))

	out, err := f.dispatcher.Run(context.Background(), "pesquise dano moral", "u1")
	require.NoError(t, err)
	require.True(t, out.ToolExecuted())
	assert.Equal(t, tools.SearchCaseLaw, out.Tool)
	assert.Equal(t, tools.StatusOK, out.Data.Status())

	recs := f.records(t, "u1")
	require.Len(t, recs, 2)
	assert.Equal(t, "consultar_jurisprudencia", recs[0].ToolName)
	var stored map[string]any
	require.NoError(t, json.Unmarshal([]byte(recs[0].Content), &stored))
	assert.Equal(t, "consulta_jurisprudencia", stored["tipo"])
	assert.Equal(t, "pesquise dano moral", recs[1].Content)
	assert.Empty(t, recs[1].ToolName)
}

func TestCreateEventEndToEnd(t *testing.T) {
	f := newFixture(t, schema.AssistantMessage("", []schema.ToolCall{
		toolCall("criar_evento", `{"data":"2024-05-01","descricao":"Reunião com cliente"}`),
	}))

	out, err := f.dispatcher.Run(context.Background(), "Marque uma reunião amanhã às 10h", "u1")
	require.NoError(t, err)

	payload, err := json.Marshal(out.Payload())
	require.NoError(t, err)
	var body struct {
		Tool string         `json:"tool"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(payload, &body))
	assert.Equal(t, "criar_evento", body.Tool)
	assert.Equal(t, "ok", body.Data["status"])
	assert.Equal(t, "2024-05-01", body.Data["date"])
	assert.Equal(t, "meeting", body.Data["event_type"])

	var n int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM events WHERE user_id = ?`, "u1").Scan(&n))
	assert.Equal(t, 1, n)
	assert.Len(t, f.records(t, "u1"), 2)
}

func TestMalformedArgumentsFailWithoutMemoryWrites(t *testing.T) {
	for _, args := range []string{`{"consulta": `, `{}`, `{"consulta": 42}`} {
		f := newFixture(t, schema.AssistantMessage("", []schema.ToolCall{
			toolCall("consultar_jurisprudencia", args),
		}))
		_, err := f.dispatcher.Run(context.Background(), "pesquise", "u1")
		require.Error(t, err, args)
		assert.True(t, errors.Is(err, ErrMalformedArguments), args)
		assert.Empty(t, f.records(t, "u1"), args)
	}
}

func TestModelFailurePropagatesWithoutMemoryWrites(t *testing.T) {
	f := newFixture(t, nil)
	f.model.err = errors.New("connection reset")

	_, err := f.dispatcher.Run(context.Background(), "oi", "u1")
	require.Error(t, err)
	assert.Empty(t, f.records(t, "u1"))
}

func TestUnknownToolFallsBackToText(t *testing.T) {
	f := newFixture(t, schema.AssistantMessage("Não posso fazer isso.", []schema.ToolCall{
		toolCall("apagar_tudo", `{}`),
	}))

	out, err := f.dispatcher.Run(context.Background(), "apague tudo", "u1")
	require.NoError(t, err)
	assert.False(t, out.ToolExecuted())
	assert.Equal(t, "Não posso fazer isso.", out.Reply)
	assert.Len(t, f.records(t, "u1"), 2)
}

func TestHistoryIsSentOldestFirstAsSecondSystemMessage(t *testing.T) {
	f := newFixture(t, schema.AssistantMessage("resposta", nil))
	ctx := context.Background()

	_, err := f.dispatcher.Run(ctx, "primeiro", "u1")
	require.NoError(t, err)
	require.Len(t, f.model.seen[0], 2)
	assert.Equal(t, SystemPrompt, f.model.seen[0][0].Content)
	assert.Equal(t, schema.User, f.model.seen[0][1].Role)

	_, err = f.dispatcher.Run(ctx, "segundo", "u1")
	require.NoError(t, err)
	msgs := f.model.seen[1]
	require.Len(t, msgs, 3)
	assert.Equal(t, schema.System, msgs[1].Role)
	history := msgs[1].Content
	assert.True(t, strings.HasPrefix(history, "\n\nContexto recente:\n"))
	assert.Less(t, strings.Index(history, "user: primeiro"), strings.Index(history, "assistant: resposta"))
	assert.Equal(t, "segundo", msgs[2].Content)
}

func TestHistoryIsPerUser(t *testing.T) {
	f := newFixture(t, schema.AssistantMessage("resposta", nil))
	ctx := context.Background()

	_, err := f.dispatcher.Run(ctx, "segredo do u1", "u1")
	require.NoError(t, err)
	_, err = f.dispatcher.Run(ctx, "oi", "u2")
	require.NoError(t, err)

	assert.Len(t, f.model.seen[1], 2)
}

func TestHistoryLimitDefaultsToEight(t *testing.T) {
	f := newFixture(t, schema.AssistantMessage("r", nil))
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		_, err := f.dispatcher.Run(ctx, "cmd", "u1")
		require.NoError(t, err)
	}
	last := f.model.seen[len(f.model.seen)-1]
	lines := strings.Split(strings.TrimPrefix(last[1].Content, "\n\nContexto recente:\n"), "\n")
	assert.Len(t, lines, 8)
}

func TestDisabledMemoryStillDispatches(t *testing.T) {
	m := &scriptedModel{reply: schema.AssistantMessage("ok", nil)}
	d, err := NewDispatcher(m, tools.NewRegistry(tools.Deps{}), nil, Options{})
	require.NoError(t, err)

	out, err := d.Run(context.Background(), "oi", "u1")
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Payload())
	assert.Len(t, m.seen[0], 2)
}
