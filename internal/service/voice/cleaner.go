package voice

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/codepacceproduct/clausify/internal/log"
)

// DefaultAudioTTL is how long stored audio survives when no TTL is set.
const DefaultAudioTTL = 24 * time.Hour

// Cleaner periodically removes stored audio older than a TTL.
type Cleaner struct {
	dir  string
	ttl  time.Duration
	now  func() time.Time
	cron *rcron.Cron
}

func NewCleaner(dir string, ttl time.Duration) *Cleaner {
	if ttl <= 0 {
		ttl = DefaultAudioTTL
	}
	return &Cleaner{dir: dir, ttl: ttl, now: time.Now}
}

// Start schedules Sweep with a cron expression such as "@every 30m" and stops the
// schedule when ctx ends.
func (c *Cleaner) Start(ctx context.Context, schedule string) error {
	logger := log.FromCtx(ctx)
	c.cron = rcron.New()
	if _, err := c.cron.AddFunc(schedule, func() {
		removed, err := c.Sweep()
		if err != nil {
			logger.Error().Err(err).Msg("audio cleanup failed")
			return
		}
		if removed > 0 {
			logger.Info().Int("removed", removed).Msg("audio cleanup")
		}
	}); err != nil {
		return err
	}
	c.cron.Start()
	logger.Info().Str("schedule", schedule).Dur("ttl", c.ttl).Msg("audio cleaner started")

	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return nil
}

func (c *Cleaner) Stop() {
	if c.cron == nil {
		return
	}
	stopCtx := c.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
	}
}

// Sweep deletes expired input_* and response_* files and reports how many
// were removed. Other files in the directory are left alone.
func (c *Cleaner) Sweep() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	cutoff := c.now().Add(-c.ttl)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasPrefix(name, "input_") || strings.HasPrefix(name, "response_")) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !os.IsNotExist(err) {
			continue
		}
		removed++
	}
	return removed, nil
}
