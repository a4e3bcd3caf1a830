package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codepacceproduct/clausify/internal/auth"
	"github.com/codepacceproduct/clausify/internal/log"
	"github.com/codepacceproduct/clausify/internal/service/assistant"
	"github.com/codepacceproduct/clausify/internal/service/voice"
	"github.com/codepacceproduct/clausify/internal/worker"
)

const (
	defaultMaxUploadBytes = 25 << 20
	genericFailure        = "Erro ao executar Harvey"
)

// Dispatcher runs one assistant turn for a user.
type Dispatcher interface {
	Run(ctx context.Context, command, userID string) (*assistant.Outcome, error)
}

// VoicePipeline handles one recorded command end to end.
type VoicePipeline interface {
	Handle(ctx context.Context, userID, filename string, audio io.Reader) (*voice.Result, error)
}

type Options struct {
	// Voice is optional; without it the voice routes answer 503.
	Voice          VoicePipeline
	AudioDir       string
	MaxUploadBytes int64
}

// Handler wires HTTP routes to the dispatcher and the voice pipeline.
type Handler struct {
	dispatcher Dispatcher
	voice      VoicePipeline
	verifier   *auth.Verifier
	audioDir   string
	maxUpload  int64
}

// NewHandler constructs a Handler instance.
func NewHandler(dispatcher Dispatcher, verifier *auth.Verifier, opts Options) *Handler {
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &Handler{
		dispatcher: dispatcher,
		voice:      opts.Voice,
		verifier:   verifier,
		audioDir:   opts.AudioDir,
		maxUpload:  maxUpload,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)
	if h.audioDir != "" {
		router.Static("/audio", h.audioDir)
	}

	signed := router.Group("/")
	signed.Use(h.verifier.Middleware())
	for _, prefix := range []string{"/assistant", "/harvey"} {
		signed.POST(prefix, h.runCommand)
		signed.POST(prefix+"/voice", h.runVoice)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type commandRequest struct {
	Command string `json:"command"`
}

func (h *Handler) runCommand(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Command) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	logger := log.FromCtx(ctx)
	logger.Info().Str("user_id", userID).Msg("assistant start")
	out, err := h.dispatcher.Run(ctx, req.Command, userID)
	if err != nil {
		h.fail(c, userID, err)
		return
	}
	logger.Info().Str("user_id", userID).Bool("tool", out.ToolExecuted()).Msg("assistant end")
	c.JSON(http.StatusOK, gin.H{"result": out.Payload()})
}

func (h *Handler) runVoice(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	if h.voice == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "voice is not configured"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return
	}
	defer f.Close()

	res, err := h.voice.Handle(c.Request.Context(), userID, file.Filename, f)
	if err != nil {
		h.fail(c, userID, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// fail logs the full error and answers without internal detail.
func (h *Handler) fail(c *gin.Context, userID string, err error) {
	if errors.Is(err, worker.ErrBusy) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
		return
	}
	log.FromCtx(c.Request.Context()).Error().Err(err).
		Str("user_id", userID).
		Str("path", c.FullPath()).
		Msg("assistant failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": genericFailure})
}

func (h *Handler) authorizedUserID(c *gin.Context) (string, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return "", false
	}
	return userID, true
}
