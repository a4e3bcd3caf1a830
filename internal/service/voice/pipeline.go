package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/codepacceproduct/clausify/internal/log"
	"github.com/codepacceproduct/clausify/internal/service/assistant"
	"github.com/codepacceproduct/clausify/internal/textconv"
)

// Runner executes one assistant turn.
type Runner interface {
	Run(ctx context.Context, command, userID string) (*assistant.Outcome, error)
}

// Result is the voice endpoint response body.
type Result struct {
	Transcription string `json:"transcription"`
	ResponseText  any    `json:"response_text"`
	AudioFile     string `json:"audio_file"`
	AudioURL      string `json:"audio_url"`
}

// Pipeline runs upload, transcription, dispatch and speech synthesis.
type Pipeline struct {
	stt    Transcriber
	tts    Synthesizer
	runner Runner
	store  *AudioStore
}

func NewPipeline(stt Transcriber, tts Synthesizer, runner Runner, store *AudioStore) *Pipeline {
	return &Pipeline{stt: stt, tts: tts, runner: runner, store: store}
}

// Handle processes one recording. The upload is kept on disk until the
// cleaner removes it.
func (p *Pipeline) Handle(ctx context.Context, userID, filename string, audio io.Reader) (*Result, error) {
	logger := log.FromCtx(ctx)
	logger.Info().Str("user_id", userID).Str("file_name", filename).Msg("voice request")

	input, err := p.store.SaveInput(filename, audio)
	if err != nil {
		return nil, err
	}
	text, err := p.transcribe(ctx, input)
	if err != nil {
		return nil, err
	}

	out, err := p.runner.Run(ctx, text, userID)
	if err != nil {
		return nil, err
	}

	res := &Result{Transcription: text, ResponseText: out.Payload()}
	speech := speechText(out)
	if speech == "" {
		logger.Info().Str("user_id", userID).Msg("empty reply, skipping speech")
		return res, nil
	}

	name, err := p.synthesize(ctx, speech)
	if err != nil {
		return nil, err
	}
	res.AudioFile = p.store.RelPath(name)
	res.AudioURL = p.store.URL(name)

	logger.Info().
		Str("user_id", userID).
		Str("transcription", text).
		Str("audio_file", res.AudioFile).
		Msg("voice response")
	return res, nil
}

func (p *Pipeline) transcribe(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()
	text, err := p.stt.Transcribe(ctx, filepath.Base(path), f)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("transcription failed")
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (p *Pipeline) synthesize(ctx context.Context, text string) (string, error) {
	f, name, err := p.store.CreateResponse()
	if err != nil {
		return "", err
	}
	err = p.tts.Synthesize(ctx, text, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("speech synthesis failed")
		if rerr := p.store.Remove(name); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return "", err
	}
	return name, nil
}

// speechText reads tool results out as their JSON text and flattens
// markdown in free-text replies.
func speechText(out *assistant.Outcome) string {
	if out.ToolExecuted() {
		return out.Text()
	}
	return textconv.ToSpeech(out.Reply)
}
