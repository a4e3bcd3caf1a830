package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/codepacceproduct/clausify/internal/models"
)

const historyHeader = "\n\nContexto recente:\n"

// RenderHistory formats records (newest first, as returned by Recent) into
// the oldest-first context block sent to the model. No records, no block.
func RenderHistory(records []models.MemoryRecord) string {
	if len(records) == 0 {
		return ""
	}
	lines := make([]string, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		lines = append(lines, renderLine(records[i]))
	}
	return historyHeader + strings.Join(lines, "\n")
}

func renderLine(rec models.MemoryRecord) string {
	ts := ""
	if !rec.CreatedAt.IsZero() {
		ts = rec.CreatedAt.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("[%s] %s: %s", ts, rec.Role, rec.Content)
}
