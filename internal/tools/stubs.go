package tools

import (
	"context"
	"encoding/json"

	"github.com/cloudwego/eino/schema"
	"github.com/eino-contrib/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// The tools below have no backing service yet; they acknowledge the request
// by echoing it back.

type searchCaseLawArgs struct {
	Consulta string `json:"consulta"`
}

func searchCaseLawTool() *Tool {
	return newParamsTool(SearchCaseLaw,
		"Consulta jurisprudência sobre um tema jurídico.",
		map[string]*schema.ParameterInfo{
			"consulta": {Desc: "Tema ou pergunta a pesquisar.", Type: schema.String, Required: true},
		},
		func(_ context.Context, args *searchCaseLawArgs, userID string) Result {
			return Result{
				"status":   StatusOK,
				"tipo":     "consulta_jurisprudencia",
				"consulta": args.Consulta,
				"user_id":  userID,
				"resumo":   "Resultado de consulta de jurisprudência simulado.",
			}
		},
	)
}

type sendChatMessageArgs struct {
	Mensagem string `json:"mensagem"`
}

func sendChatMessageTool() *Tool {
	return newParamsTool(SendChatMessage,
		"Envia uma mensagem no chat interno da plataforma.",
		map[string]*schema.ParameterInfo{
			"mensagem": {Desc: "Texto da mensagem.", Type: schema.String, Required: true},
		},
		func(_ context.Context, args *sendChatMessageArgs, userID string) Result {
			return Result{
				"status":   StatusOK,
				"tipo":     "mensagem_clausichat",
				"mensagem": args.Mensagem,
				"user_id":  userID,
			}
		},
	)
}

type createVersionArgs struct {
	DocumentoID string `json:"documento_id"`
	Descricao   string `json:"descricao"`
}

func createVersionTool() *Tool {
	return newParamsTool(CreateVersion,
		"Cria uma nova versão de um documento.",
		map[string]*schema.ParameterInfo{
			"documento_id": {Desc: "Identificador do documento.", Type: schema.String, Required: true},
			"descricao":    {Desc: "Descrição da alteração.", Type: schema.String, Required: true},
		},
		func(_ context.Context, args *createVersionArgs, userID string) Result {
			return Result{
				"status":       StatusOK,
				"tipo":         "criar_versao",
				"documento_id": args.DocumentoID,
				"descricao":    args.Descricao,
				"user_id":      userID,
			}
		},
	)
}

type openPlaybookArgs struct {
	Topico string `json:"topico"`
}

func openPlaybookTool() *Tool {
	return newParamsTool(OpenPlaybook,
		"Consulta o playbook jurídico sobre um tópico.",
		map[string]*schema.ParameterInfo{
			"topico": {Desc: "Tópico do playbook.", Type: schema.String, Required: true},
		},
		func(_ context.Context, args *openPlaybookArgs, userID string) Result {
			return Result{
				"status":  StatusOK,
				"tipo":    "acessar_playbook",
				"topico":  args.Topico,
				"user_id": userID,
				"resumo":  "Playbook consultado de forma simulada.",
			}
		},
	)
}

type runCalculationArgs struct {
	Tipo       string         `json:"tipo"`
	Parametros map[string]any `json:"parametros"`
}

func runCalculationTool() *Tool {
	return newParamsTool(RunCalculation,
		"Executa um cálculo jurídico ou financeiro.",
		map[string]*schema.ParameterInfo{
			"tipo":       {Desc: "Tipo de cálculo, por exemplo correção monetária.", Type: schema.String, Required: true},
			"parametros": {Desc: "Parâmetros do cálculo.", Type: schema.Object, Required: true},
		},
		func(_ context.Context, args *runCalculationArgs, userID string) Result {
			return Result{
				"status":     StatusOK,
				"tipo":       "executar_calculo",
				"calculo":    args.Tipo,
				"parametros": args.Parametros,
				"user_id":    userID,
			}
		},
	)
}

type updateSettingArgs struct {
	Chave string          `json:"chave"`
	Valor json.RawMessage `json:"valor"`
}

// anyJSONType lists every JSON Schema type, since "valor" may be any JSON value.
var anyJSONType = []string{"string", "number", "integer", "boolean", "object", "array", "null"}

func updateSettingTool() *Tool {
	props := orderedmap.New[string, *jsonschema.Schema]()
	props.Set("chave", &jsonschema.Schema{Type: string(schema.String), Description: "Nome da configuração."})
	props.Set("valor", &jsonschema.Schema{TypeEnhanced: anyJSONType, Description: "Novo valor da configuração."})
	required := []string{"chave", "valor"}

	return newTool(UpdateSetting,
		"Atualiza uma configuração do usuário.",
		schema.NewParamsOneOfByJSONSchema(&jsonschema.Schema{
			Type:       string(schema.Object),
			Properties: props,
			Required:   required,
		}),
		required,
		func(_ context.Context, args *updateSettingArgs, userID string) Result {
			return Result{
				"status":  StatusOK,
				"tipo":    "atualizar_config",
				"chave":   args.Chave,
				"valor":   args.Valor,
				"user_id": userID,
			}
		},
	)
}
