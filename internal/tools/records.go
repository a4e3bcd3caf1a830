package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"

	"github.com/codepacceproduct/clausify/internal/log"
	"github.com/codepacceproduct/clausify/internal/models"
)

const (
	defaultEventTitle = "Evento criado pelo Harvey"
	maxTitleRunes     = 80
	eventTypeMeeting  = "meeting"

	motivoNoEventStore    = "Armazenamento de eventos não configurado."
	motivoNoContractStore = "Armazenamento de contratos não configurado."
	contractNotFound      = "Contrato não encontrado para este usuário."
)

// eventDateLayouts are tried in order; the first that parses wins.
var eventDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

type createEventArgs struct {
	Data      string `json:"data"`
	Descricao string `json:"descricao"`
}

func (h *handlers) createEventTool() *Tool {
	return newParamsTool(CreateEvent,
		"Cria um evento na agenda do usuário.",
		map[string]*schema.ParameterInfo{
			"data": {
				Desc:     "Data e hora do evento em formato ISO 8601, por exemplo 2024-05-01 ou 2024-05-01T14:30.",
				Type:     schema.String,
				Required: true,
			},
			"descricao": {
				Desc:     "Descrição do evento.",
				Type:     schema.String,
				Required: true,
			},
		},
		h.createEvent,
	)
}

func (h *handlers) createEvent(ctx context.Context, args *createEventArgs, userID string) Result {
	if h.deps.Events == nil {
		return Result{
			"status":    StatusSkip,
			"tipo":      "evento_calendario",
			"motivo":    motivoNoEventStore,
			"data":      args.Data,
			"descricao": args.Descricao,
			"user_id":   userID,
		}
	}

	when := parseEventDate(args.Data, h.deps.Now)
	ev := models.Event{
		UserID:      userID,
		Title:       eventTitle(args.Descricao),
		Description: args.Descricao,
		Date:        when.Format("2006-01-02"),
		StartTime:   when.Format("15:04"),
		Type:        eventTypeMeeting,
	}

	ctx, cancel := h.withTimeout(ctx)
	defer cancel()
	stored, err := h.deps.Events.CreateEvent(ctx, ev)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("user_id", userID).Msg("create event failed")
		return Result{
			"status":  StatusError,
			"tipo":    "evento_calendario",
			"motivo":  fmt.Sprintf("Falha ao inserir evento: %v", err),
			"user_id": userID,
		}
	}

	return Result{
		"status":      StatusOK,
		"tipo":        "evento_calendario",
		"id":          stored.ID,
		"user_id":     stored.UserID,
		"title":       stored.Title,
		"description": stored.Description,
		"date":        stored.Date,
		"start_time":  stored.StartTime,
		"event_type":  stored.Type,
		"priority":    stored.Priority,
		"created_at":  stored.CreatedAt,
	}
}

// parseEventDate accepts ISO-8601 style input and falls back to the current
// UTC time when nothing matches.
func parseEventDate(v string, now func() time.Time) time.Time {
	v = strings.TrimSpace(v)
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return now().UTC()
}

func eventTitle(desc string) string {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return defaultEventTitle
	}
	if utf8.RuneCountInString(desc) <= maxTitleRunes {
		return desc
	}
	return string([]rune(desc)[:maxTitleRunes])
}

type analyzeContractArgs struct {
	ContratoID string `json:"contrato_id"`
}

func (h *handlers) analyzeContractTool() *Tool {
	return newParamsTool(AnalyzeContract,
		"Analisa um contrato do usuário a partir do seu identificador.",
		map[string]*schema.ParameterInfo{
			"contrato_id": {
				Desc:     "Identificador do contrato.",
				Type:     schema.String,
				Required: true,
			},
		},
		h.analyzeContract,
	)
}

func (h *handlers) analyzeContract(ctx context.Context, args *analyzeContractArgs, userID string) Result {
	base := Result{
		"tipo":        "analise_contrato",
		"contrato_id": args.ContratoID,
		"user_id":     userID,
	}
	if h.deps.Contracts == nil {
		base["status"] = StatusSkip
		base["motivo"] = motivoNoContractStore
		return base
	}

	ctx, cancel := h.withTimeout(ctx)
	defer cancel()
	c, err := h.deps.Contracts.GetContract(ctx, args.ContratoID, userID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		base["status"] = StatusNotFound
		base["mensagem"] = contractNotFound
		return base
	case err != nil:
		log.FromCtx(ctx).Error().Err(err).Str("user_id", userID).Str("contract_id", args.ContratoID).Msg("load contract failed")
		base["status"] = StatusError
		base["motivo"] = fmt.Sprintf("Falha ao consultar contrato: %v", err)
		return base
	}

	base["status"] = StatusOK
	base["name"] = c.Name
	base["client_name"] = c.ClientName
	base["contract_type"] = c.Type
	base["contract_status"] = c.Status
	base["risk_level"] = c.RiskLevel
	base["score"] = c.Score
	base["has_content"] = strings.TrimSpace(c.Content) != ""
	return base
}
