package memory

import (
	"context"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/codepacceproduct/clausify/internal/log"
	"github.com/codepacceproduct/clausify/internal/models"
)

// TokenCounter estimates the prompt cost of a piece of text.
type TokenCounter interface {
	Count(text string) int
}

// HeuristicCounter counts runes plus a small fixed overhead per line. It is
// deterministic and needs no encoding tables.
type HeuristicCounter struct{}

const lineOverhead = 4

func (HeuristicCounter) Count(text string) int {
	return utf8.RuneCountInString(text) + lineOverhead
}

// TiktokenCounter uses the cl100k_base encoding, or HeuristicCounter when
// the encoding could not be loaded.
type TiktokenCounter struct {
	tk *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the encoding once, up front.
func NewTiktokenCounter(ctx context.Context) *TiktokenCounter {
	tk, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("tiktoken unavailable, using heuristic token count")
		return &TiktokenCounter{}
	}
	return &TiktokenCounter{tk: tk}
}

func (c *TiktokenCounter) Count(text string) int {
	if c == nil || c.tk == nil {
		return HeuristicCounter{}.Count(text)
	}
	return len(c.tk.Encode(text, nil, nil)) + lineOverhead
}

// Window drops the oldest records until the rendered lines fit budget.
// records are newest first; a budget <= 0 disables trimming. The newest
// record is always kept.
func Window(records []models.MemoryRecord, budget int, counter TokenCounter) []models.MemoryRecord {
	if budget <= 0 || len(records) == 0 {
		return records
	}
	if counter == nil {
		counter = HeuristicCounter{}
	}
	used := 0
	for i, rec := range records {
		used += counter.Count(renderLine(rec))
		if used > budget && i > 0 {
			return records[:i]
		}
	}
	return records
}
