package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/codepacceproduct/clausify/internal/config"
	"github.com/codepacceproduct/clausify/internal/log"
	"github.com/codepacceproduct/clausify/internal/memory"
	"github.com/codepacceproduct/clausify/internal/models"
	"github.com/codepacceproduct/clausify/internal/service/ai"
	"github.com/codepacceproduct/clausify/internal/service/assistant"
	"github.com/codepacceproduct/clausify/internal/storage"
	"github.com/codepacceproduct/clausify/internal/supabase"
	"github.com/codepacceproduct/clausify/internal/tools"
)

// contractSaver is implemented by both record backends.
type contractSaver interface {
	SaveContract(ctx context.Context, c models.Contract) error
}

// stores holds the backends selected by configuration. Any of them may be
// nil when the matching backend is "none".
type stores struct {
	db        *sql.DB
	memory    memory.Backend
	events    tools.EventStore
	contracts tools.ContractStore
	saver     contractSaver
}

func (s *stores) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// openStores connects the SQL database (running migrations) and the
// Supabase client as needed by the memory and records backends.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	logger := log.FromCtx(ctx)
	s := &stores{}

	memBackend, recBackend := cfg.MemoryBackend(), cfg.RecordsBackend()
	if memBackend == config.BackendSQL || recBackend == config.BackendSQL {
		db, err := openDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.db = db
	}

	var supa *supabase.Client
	if memBackend == config.BackendSupabase || recBackend == config.BackendSupabase {
		var err error
		supa, err = supabase.New(cfg.Supabase)
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	switch memBackend {
	case config.BackendSQL:
		s.memory = storage.NewMemoryRepo(s.db)
	case config.BackendSupabase:
		s.memory = supa
	}
	switch recBackend {
	case config.BackendSQL:
		s.events = storage.NewEventRepo(s.db)
		repo := storage.NewContractRepo(s.db)
		s.contracts, s.saver = repo, repo
	case config.BackendSupabase:
		s.events, s.contracts, s.saver = supa, supa, supa
	}

	logger.Info().
		Str("memory_backend", memBackend).
		Str("records_backend", recBackend).
		Msg("storage ready")
	return s, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	driver, dbCfg, ok := cfg.SelectedDatabase()
	if !ok {
		return nil, errors.New("no database driver configured")
	}
	log.FromCtx(ctx).Info().Str("driver", driver).Msg("opening database")
	db, err := storage.Open(ctx, driver, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := storage.Migrate(ctx, db, driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// newDispatcher builds the chat model and binds the tool registry to it.
func newDispatcher(ctx context.Context, cfg *config.Config, s *stores) (*assistant.Dispatcher, error) {
	chatModel, err := ai.NewChatModel(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("init chat model: %w", err)
	}
	registry := tools.NewRegistry(tools.Deps{
		Events:    s.events,
		Contracts: s.contracts,
		Timeout:   cfg.Supabase.Timeout(),
	})
	store := memory.NewStore(s.memory, cfg.Memory.StoreTimeout())

	opts := assistant.Options{
		HistoryLimit: cfg.Memory.HistoryLimit,
		TokenBudget:  cfg.Memory.TokenBudget,
	}
	if opts.TokenBudget > 0 {
		opts.Counter = memory.NewTiktokenCounter(ctx)
	}
	return assistant.NewDispatcher(chatModel, registry, store, opts)
}
