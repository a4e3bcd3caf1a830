package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codepacceproduct/clausify/internal/models"
)

type fakeEvents struct {
	got models.Event
	err error
}

func (f *fakeEvents) CreateEvent(_ context.Context, ev models.Event) (*models.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.got = ev
	ev.ID = "ev-1"
	ev.Priority = "medium"
	ev.CreatedAt = time.Date(2024, 4, 30, 12, 0, 0, 0, time.UTC)
	return &ev, nil
}

type fakeContracts struct {
	rows map[string]models.Contract
	err  error
}

func (f *fakeContracts) GetContract(_ context.Context, id, userID string) (*models.Contract, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.rows[id]
	if !ok || c.UserID != userID {
		return nil, models.ErrNotFound
	}
	return &c, nil
}

type panicEvents struct{}

func (panicEvents) CreateEvent(context.Context, models.Event) (*models.Event, error) {
	panic("boom")
}

var fixedNow = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

func TestRegistryExposesFixedToolSet(t *testing.T) {
	r := NewRegistry(Deps{})
	want := []Name{
		CreateEvent, AnalyzeContract, SearchCaseLaw, SendChatMessage,
		CreateVersion, OpenPlaybook, RunCalculation, UpdateSetting,
	}
	infos := r.Infos()
	require.Len(t, infos, len(want))
	for i, info := range infos {
		assert.Equal(t, string(want[i]), info.Name)
		assert.NotEmpty(t, info.Desc)
		js, err := info.ParamsOneOf.ToJSONSchema()
		require.NoError(t, err)
		assert.NotEmpty(t, js.Required, info.Name)
	}
}

func TestToolSchemasDeclareTypes(t *testing.T) {
	for _, info := range NewRegistry(Deps{}).Infos() {
		js, err := info.ParamsOneOf.ToJSONSchema()
		require.NoError(t, err, info.Name)
		buf, err := json.Marshal(js)
		require.NoError(t, err, info.Name)

		var wire struct {
			Type       string                    `json:"type"`
			Properties map[string]map[string]any `json:"properties"`
			Required   []string                  `json:"required"`
		}
		require.NoError(t, json.Unmarshal(buf, &wire), string(buf))
		assert.Equal(t, "object", wire.Type, info.Name)
		require.NotEmpty(t, wire.Properties, info.Name)
		for _, key := range wire.Required {
			assert.Contains(t, wire.Properties, key, info.Name)
		}
		for prop, def := range wire.Properties {
			switch typ := def["type"].(type) {
			case string:
				assert.NotEmpty(t, typ, "%s.%s in %s", info.Name, prop, buf)
			case []any:
				assert.NotEmpty(t, typ, "%s.%s in %s", info.Name, prop, buf)
			default:
				t.Errorf("%s.%s has no usable type: %s", info.Name, prop, buf)
			}
		}
	}
}

func TestUpdateSettingAcceptsAnyValue(t *testing.T) {
	r := NewRegistry(Deps{})
	for _, valor := range []string{`"pt-BR"`, `3`, `true`, `null`, `[1,2]`} {
		res, err := r.Invoke(context.Background(), string(UpdateSetting), `{"chave":"k","valor":`+valor+`}`, "u1")
		require.NoError(t, err, valor)
		assert.Equal(t, StatusOK, res.Status(), valor)
	}
}

func TestInvokeCarriesUserIDInContext(t *testing.T) {
	ctx := WithUserID(context.Background(), "u9")
	assert.Equal(t, "u9", UserIDFromContext(ctx))
	assert.Equal(t, "", UserIDFromContext(context.Background()))

	res, err := NewRegistry(Deps{}).Invoke(context.Background(), string(OpenPlaybook), `{"topico":"NDA"}`, "u9")
	require.NoError(t, err)
	assert.Equal(t, "u9", res["user_id"])
}

func TestRegistryRejectsUnknownTool(t *testing.T) {
	_, err := NewRegistry(Deps{}).Invoke(context.Background(), "apagar_tudo", `{}`, "u1")
	assert.True(t, errors.Is(err, ErrUnknownTool))
}

func TestInvokeRejectsMalformedAndIncompleteArguments(t *testing.T) {
	r := NewRegistry(Deps{})
	ctx := context.Background()

	_, err := r.Invoke(ctx, string(SearchCaseLaw), `{"consulta":`, "u1")
	assert.True(t, errors.Is(err, ErrInvalidArguments))

	_, err = r.Invoke(ctx, string(CreateVersion), `{"documento_id":"d1"}`, "u1")
	assert.True(t, errors.Is(err, ErrInvalidArguments))

	_, err = r.Invoke(ctx, string(RunCalculation), `{"tipo":"juros","parametros":"nope"}`, "u1")
	assert.True(t, errors.Is(err, ErrInvalidArguments))

	_, err = r.Invoke(ctx, string(SearchCaseLaw), `[1,2]`, "u1")
	assert.True(t, errors.Is(err, ErrInvalidArguments))

	_, err = r.Invoke(ctx, string(SearchCaseLaw), `null`, "u1")
	assert.True(t, errors.Is(err, ErrInvalidArguments))
}

func TestInvokeTreatsBlankArgumentsAsEmptyObject(t *testing.T) {
	_, err := NewRegistry(Deps{}).Invoke(context.Background(), string(SearchCaseLaw), "  ", "u1")
	assert.True(t, errors.Is(err, ErrInvalidArguments), "required keys are still enforced")
}

func TestStubToolsEchoInput(t *testing.T) {
	r := NewRegistry(Deps{})
	ctx := context.Background()

	cases := []struct {
		name  Name
		args  string
		check func(t *testing.T, res Result)
	}{
		{SearchCaseLaw, `{"consulta":"dano moral"}`, func(t *testing.T, res Result) {
			assert.Equal(t, "consulta_jurisprudencia", res["tipo"])
			assert.Equal(t, "dano moral", res["consulta"])
			assert.Equal(t, "Resultado de consulta de jurisprudência simulado.", res["resumo"])
		}},
		{SendChatMessage, `{"mensagem":"olá equipe"}`, func(t *testing.T, res Result) {
			assert.Equal(t, "mensagem_clausichat", res["tipo"])
			assert.Equal(t, "olá equipe", res["mensagem"])
		}},
		{CreateVersion, `{"documento_id":"doc-9","descricao":"ajuste"}`, func(t *testing.T, res Result) {
			assert.Equal(t, "criar_versao", res["tipo"])
			assert.Equal(t, "doc-9", res["documento_id"])
			assert.Equal(t, "ajuste", res["descricao"])
		}},
		{OpenPlaybook, `{"topico":"NDA"}`, func(t *testing.T, res Result) {
			assert.Equal(t, "acessar_playbook", res["tipo"])
			assert.Equal(t, "Playbook consultado de forma simulada.", res["resumo"])
		}},
		{RunCalculation, `{"tipo":"juros","parametros":{"taxa":1.5}}`, func(t *testing.T, res Result) {
			assert.Equal(t, "executar_calculo", res["tipo"])
			assert.Equal(t, "juros", res["calculo"])
			assert.Equal(t, map[string]any{"taxa": 1.5}, res["parametros"])
		}},
		{UpdateSetting, `{"chave":"idioma","valor":{"code":"pt-BR"}}`, func(t *testing.T, res Result) {
			assert.Equal(t, "atualizar_config", res["tipo"])
			assert.Equal(t, "idioma", res["chave"])
			assert.Equal(t, map[string]any{"code": "pt-BR"}, res["valor"])
		}},
	}
	for _, tc := range cases {
		t.Run(string(tc.name), func(t *testing.T) {
			res, err := r.Invoke(ctx, string(tc.name), tc.args, "u1")
			require.NoError(t, err)
			assert.Equal(t, StatusOK, res.Status())
			assert.Equal(t, "u1", res["user_id"])
			tc.check(t, res)

			_, err = json.Marshal(res)
			assert.NoError(t, err)
		})
	}
}

func TestCreateEventSkipsWithoutStore(t *testing.T) {
	res, err := NewRegistry(Deps{}).Invoke(context.Background(), string(CreateEvent),
		`{"data":"2024-05-01","descricao":"Reunião"}`, "u1")
	require.NoError(t, err)
	assert.Equal(t, StatusSkip, res.Status())
	assert.Equal(t, "evento_calendario", res["tipo"])
	assert.Equal(t, "2024-05-01", res["data"])
}

func TestCreateEventStoresParsedDate(t *testing.T) {
	events := &fakeEvents{}
	r := NewRegistry(Deps{Events: events, Now: fixedNow})

	res, err := r.Invoke(context.Background(), string(CreateEvent),
		`{"data":"2024-05-01T14:30","descricao":"Reunião com cliente ACME"}`, "u1")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status())
	assert.Equal(t, "2024-05-01", events.got.Date)
	assert.Equal(t, "14:30", events.got.StartTime)
	assert.Equal(t, "meeting", events.got.Type)
	assert.Equal(t, "u1", events.got.UserID)
	assert.Equal(t, "ev-1", res["id"])
	assert.Equal(t, "meeting", res["event_type"])
	assert.Equal(t, "Reunião com cliente ACME", res["title"])
}

func TestCreateEventFallsBackToNow(t *testing.T) {
	events := &fakeEvents{}
	r := NewRegistry(Deps{Events: events, Now: fixedNow})

	res, err := r.Invoke(context.Background(), string(CreateEvent),
		`{"data":"amanhã de manhã","descricao":""}`, "u1")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status())
	assert.Equal(t, "2025-01-02", events.got.Date)
	assert.Equal(t, "03:04", events.got.StartTime)
	assert.Equal(t, "Evento criado pelo Harvey", events.got.Title)
}

func TestCreateEventTruncatesTitleByRunes(t *testing.T) {
	events := &fakeEvents{}
	r := NewRegistry(Deps{Events: events, Now: fixedNow})
	desc := strings.Repeat("ç", 100)

	_, err := r.Invoke(context.Background(), string(CreateEvent), `{"data":"2024-05-01","descricao":"`+desc+`"}`, "u1")
	require.NoError(t, err)
	assert.Equal(t, 80, len([]rune(events.got.Title)))
	assert.Equal(t, desc, events.got.Description)
}

func TestCreateEventStoreFailureIsErrorResult(t *testing.T) {
	r := NewRegistry(Deps{Events: &fakeEvents{err: errors.New("timeout")}})
	res, err := r.Invoke(context.Background(), string(CreateEvent), `{"data":"2024-05-01","descricao":"x"}`, "u1")
	require.NoError(t, err)
	assert.Equal(t, StatusError, res.Status())
	assert.Contains(t, res["motivo"], "timeout")
}

func TestHandlerPanicBecomesErrorResult(t *testing.T) {
	r := NewRegistry(Deps{Events: panicEvents{}})
	res, err := r.Invoke(context.Background(), string(CreateEvent), `{"data":"2024-05-01","descricao":"x"}`, "u1")
	require.NoError(t, err)
	assert.Equal(t, StatusError, res.Status())
}

func TestAnalyzeContractIsScopedToOwner(t *testing.T) {
	score := 91.0
	contracts := &fakeContracts{rows: map[string]models.Contract{
		"c1": {ID: "c1", UserID: "owner", Name: "Locação", ClientName: "ACME", Type: "locacao",
			Status: "ativo", RiskLevel: "baixo", Score: &score, Content: "cláusulas"},
	}}
	r := NewRegistry(Deps{Contracts: contracts})
	ctx := context.Background()

	res, err := r.Invoke(ctx, string(AnalyzeContract), `{"contrato_id":"c1"}`, "owner")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status())
	assert.Equal(t, "analise_contrato", res["tipo"])
	assert.Equal(t, "Locação", res["name"])
	assert.Equal(t, "ativo", res["contract_status"])
	assert.Equal(t, true, res["has_content"])

	res, err = r.Invoke(ctx, string(AnalyzeContract), `{"contrato_id":"c1"}`, "intruder")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, res.Status())
	assert.Equal(t, "Contrato não encontrado para este usuário.", res["mensagem"])
	assert.NotContains(t, res, "name")
}

func TestAnalyzeContractSkipAndError(t *testing.T) {
	ctx := context.Background()
	res, err := NewRegistry(Deps{}).Invoke(ctx, string(AnalyzeContract), `{"contrato_id":"c1"}`, "u1")
	require.NoError(t, err)
	assert.Equal(t, StatusSkip, res.Status())

	r := NewRegistry(Deps{Contracts: &fakeContracts{err: errors.New("connection refused")}})
	res, err = r.Invoke(ctx, string(AnalyzeContract), `{"contrato_id":"c1"}`, "u1")
	require.NoError(t, err)
	assert.Equal(t, StatusError, res.Status())
}

func TestParseEventDateLayouts(t *testing.T) {
	for _, in := range []string{"2024-05-01", "2024-05-01T09:15", "2024-05-01 09:15:00", "2024-05-01T09:15:00-03:00"} {
		got := parseEventDate(in, fixedNow)
		assert.Equal(t, 2024, got.Year(), in)
		assert.Equal(t, time.May, got.Month(), in)
	}
}
