package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config" yaml:"basic_config"`
	Database    DatabaseSelection         `json:"database" yaml:"database"`
	Databases   map[string]DatabaseConfig `json:"databases" yaml:"databases"`
	Storage     StorageConfig             `json:"storage" yaml:"storage"`
	LLM         LLMConfig                 `json:"llm" yaml:"llm"`
	Voice       VoiceConfig               `json:"voice" yaml:"voice"`
	Supabase    SupabaseConfig            `json:"supabase" yaml:"supabase"`
	Redis       RedisConfig               `json:"redis" yaml:"redis"`
	Security    SecurityConfig            `json:"security" yaml:"security"`
	Memory      MemoryConfig              `json:"memory" yaml:"memory"`
}

type BasicConfig struct {
	ServerAddress      string `json:"server_address" yaml:"server_address" env:"HARVEY_ADDR"`
	PublicBaseURL      string `json:"public_base_url" yaml:"public_base_url" env:"HARVEY_PUBLIC_URL"`
	AudioDir           string `json:"audio_dir" yaml:"audio_dir" env:"HARVEY_AUDIO_DIR"`
	AudioTTLMinutes    int    `json:"audio_ttl_minutes" yaml:"audio_ttl_minutes" env:"HARVEY_AUDIO_TTL_MINUTES"`
	AudioCleanSchedule string `json:"audio_clean_schedule" yaml:"audio_clean_schedule" env:"HARVEY_AUDIO_CLEAN_SCHEDULE"`
	LogFile            string `json:"log_file" yaml:"log_file" env:"HARVEY_LOG_FILE"`
	Debug              bool   `json:"debug" yaml:"debug" env:"HARVEY_DEBUG"`
	MaxWorkers         int    `json:"max_workers" yaml:"max_workers" env:"HARVEY_MAX_WORKERS"`
	QueueTimeoutSecs   int    `json:"queue_timeout_seconds" yaml:"queue_timeout_seconds" env:"HARVEY_QUEUE_TIMEOUT"`
}

// DatabaseSelection picks one entry of Databases. DSN overrides the entry's DSN.
type DatabaseSelection struct {
	Driver string `json:"driver" yaml:"driver" env:"HARVEY_DB"`
	DSN    string `json:"dsn" yaml:"dsn" env:"DATABASE_URL"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" yaml:"dsn"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"db_name" yaml:"db_name"`
	Params   string `json:"params" yaml:"params"`
}

// Backend names accepted by StorageConfig.
const (
	BackendAuto     = ""
	BackendSQL      = "sql"
	BackendSupabase = "supabase"
	BackendNone     = "none"
)

// StorageConfig chooses where memory records and domain records (events,
// contracts) live.
type StorageConfig struct {
	Memory  string `json:"memory" yaml:"memory" env:"HARVEY_MEMORY_BACKEND"`
	Records string `json:"records" yaml:"records" env:"HARVEY_RECORDS_BACKEND"`
}

type LLMConfig struct {
	Provider       string `json:"provider" yaml:"provider" env:"HARVEY_LLM_PROVIDER"`
	Model          string `json:"model" yaml:"model" env:"HARVEY_LLM_MODEL"`
	BaseURL        string `json:"base_url" yaml:"base_url" env:"HARVEY_LLM_BASE_URL"`
	APIKey         string `json:"api_key" yaml:"api_key" env:"OPENAI_API_KEY"`
	MaxTokens      int    `json:"max_tokens" yaml:"max_tokens" env:"HARVEY_LLM_MAX_TOKENS"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds" env:"HARVEY_LLM_TIMEOUT"`
	// MaxRetries is unset (nil) for the default of 2; 0 disables retries.
	MaxRetries     *int   `json:"max_retries" yaml:"max_retries" env:"HARVEY_LLM_MAX_RETRIES"`
}

type VoiceConfig struct {
	APIKey         string `json:"api_key" yaml:"api_key" env:"HARVEY_VOICE_API_KEY"`
	BaseURL        string `json:"base_url" yaml:"base_url" env:"HARVEY_VOICE_BASE_URL"`
	STTModel       string `json:"stt_model" yaml:"stt_model" env:"HARVEY_STT_MODEL"`
	TTSModel       string `json:"tts_model" yaml:"tts_model" env:"HARVEY_TTS_MODEL"`
	Voice          string `json:"voice" yaml:"voice" env:"HARVEY_TTS_VOICE"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds" env:"HARVEY_VOICE_TIMEOUT"`
	MaxRetries     *int   `json:"max_retries" yaml:"max_retries" env:"HARVEY_VOICE_MAX_RETRIES"`
	MaxUploadMB    int    `json:"max_upload_mb" yaml:"max_upload_mb" env:"HARVEY_VOICE_MAX_UPLOAD_MB"`
}

type SupabaseConfig struct {
	URL            string `json:"url" yaml:"url" env:"SUPABASE_URL"`
	ServiceRoleKey string `json:"service_role_key" yaml:"service_role_key" env:"SUPABASE_SERVICE_ROLE_KEY"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds" env:"SUPABASE_TIMEOUT"`
}

// Configured reports whether both the URL and the service key are present.
func (s SupabaseConfig) Configured() bool {
	return s.URL != "" && s.ServiceRoleKey != ""
}

type RedisConfig struct {
	Host     string `json:"host" yaml:"host" env:"REDIS_HOST"`
	Port     int    `json:"port" yaml:"port" env:"REDIS_PORT"`
	Username string `json:"username" yaml:"username" env:"REDIS_USERNAME"`
	Password string `json:"password" yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `json:"db" yaml:"db" env:"REDIS_DB"`
}

// Enabled reports whether a redis host was configured at all.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

type SecurityConfig struct {
	SharedSecret        string `json:"shared_secret" yaml:"shared_secret" env:"HARVEY_SHARED_SECRET"`
	MaxSkewSeconds      int    `json:"max_skew_seconds" yaml:"max_skew_seconds" env:"HARVEY_MAX_SKEW_SECONDS"`
	ReplayWindowSeconds int    `json:"replay_window_seconds" yaml:"replay_window_seconds" env:"HARVEY_REPLAY_WINDOW_SECONDS"`
}

type MemoryConfig struct {
	HistoryLimit        int `json:"history_limit" yaml:"history_limit" env:"HARVEY_HISTORY_LIMIT"`
	TokenBudget         int `json:"token_budget" yaml:"token_budget" env:"HARVEY_HISTORY_TOKEN_BUDGET"`
	StoreTimeoutSeconds int `json:"store_timeout_seconds" yaml:"store_timeout_seconds" env:"HARVEY_MEMORY_TIMEOUT"`
}

const (
	defaultServerAddress = ":8000"
	defaultPublicBaseURL = "http://localhost:8000"
	defaultAudioDir      = "audio"
	defaultCleanSchedule = "@every 30m"
	defaultProvider      = "openai"
	defaultModel         = "gpt-4o-mini"
	defaultMaxRetries    = 2
)

// Load reads configuration from the provided path, falling back to
// HARVEY_CONFIG and then config.json. A missing default file is not an error;
// the service can run from environment variables alone. Environment values
// override file values.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	explicit := path != ""
	if path == "" {
		path = os.Getenv("HARVEY_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(absPath)
	switch {
	case err == nil:
		if err := decode(absPath, data, &cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()
	cfg.resolvePaths(filepath.Dir(absPath))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode yaml config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	b := &c.BasicConfig
	if b.ServerAddress == "" {
		b.ServerAddress = defaultServerAddress
	}
	if b.PublicBaseURL == "" {
		b.PublicBaseURL = defaultPublicBaseURL
	}
	b.PublicBaseURL = strings.TrimRight(b.PublicBaseURL, "/")
	if b.AudioDir == "" {
		b.AudioDir = defaultAudioDir
	}
	if b.AudioTTLMinutes <= 0 {
		b.AudioTTLMinutes = 24 * 60
	}
	if b.AudioCleanSchedule == "" {
		b.AudioCleanSchedule = defaultCleanSchedule
	}
	if b.MaxWorkers <= 0 {
		b.MaxWorkers = 16
	}
	if b.QueueTimeoutSecs <= 0 {
		b.QueueTimeoutSecs = 30
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = defaultProvider
	}
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 20
	}
	c.LLM.MaxRetries = retriesOrDefault(c.LLM.MaxRetries)
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 1024
	}

	v := &c.Voice
	if v.APIKey == "" && c.LLM.Provider == "openai" {
		v.APIKey = c.LLM.APIKey
	}
	if v.BaseURL == "" && c.LLM.Provider == "openai" {
		v.BaseURL = c.LLM.BaseURL
	}
	if v.STTModel == "" {
		v.STTModel = "whisper-1"
	}
	if v.TTSModel == "" {
		v.TTSModel = "gpt-4o-mini-tts"
	}
	if v.Voice == "" {
		v.Voice = "alloy"
	}
	if v.TimeoutSeconds <= 0 {
		v.TimeoutSeconds = 30
	}
	v.MaxRetries = retriesOrDefault(v.MaxRetries)
	if v.MaxUploadMB <= 0 {
		v.MaxUploadMB = 25
	}

	c.Supabase.URL = strings.TrimRight(c.Supabase.URL, "/")
	if c.Supabase.TimeoutSeconds <= 0 {
		c.Supabase.TimeoutSeconds = 15
	}

	if c.Redis.Enabled() && c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}

	if c.Security.ReplayWindowSeconds <= 0 {
		c.Security.ReplayWindowSeconds = 300
	}

	if c.Memory.HistoryLimit <= 0 {
		c.Memory.HistoryLimit = 8
	}
	if c.Memory.StoreTimeoutSeconds <= 0 {
		c.Memory.StoreTimeoutSeconds = 5
	}

	c.Database.Driver = strings.ToLower(c.Database.Driver)
	c.Storage.Memory = strings.ToLower(c.Storage.Memory)
	c.Storage.Records = strings.ToLower(c.Storage.Records)
}

// retriesOrDefault fills an unset retry count and clamps negatives to 0.
func retriesOrDefault(n *int) *int {
	v := defaultMaxRetries
	if n != nil {
		v = max(*n, 0)
	}
	return &v
}

// resolvePaths anchors relative sqlite DSNs at the config file directory.
func (c *Config) resolvePaths(baseDir string) {
	for name, db := range c.Databases {
		if !isSQLite(name) || db.DSN == "" || db.DSN == ":memory:" {
			continue
		}
		if strings.HasPrefix(db.DSN, "file:") || filepath.IsAbs(db.DSN) {
			continue
		}
		db.DSN = filepath.Join(baseDir, db.DSN)
		c.Databases[name] = db
	}
}

func (c *Config) validate() error {
	for _, b := range []string{c.Storage.Memory, c.Storage.Records} {
		switch b {
		case BackendAuto, BackendSQL, BackendSupabase, BackendNone:
		default:
			return fmt.Errorf("unknown storage backend %q", b)
		}
	}
	if c.Storage.Memory == BackendSQL || c.Storage.Records == BackendSQL {
		if c.Database.Driver == "" {
			return errors.New("storage backend sql requires database.driver")
		}
	}
	if c.Storage.Memory == BackendSupabase || c.Storage.Records == BackendSupabase {
		if !c.Supabase.Configured() {
			return errors.New("storage backend supabase requires supabase.url and supabase.service_role_key")
		}
	}
	return nil
}

// SelectedDatabase returns the connection settings for Database.Driver, with
// the DSN override applied. ok is false when no driver is configured.
func (c *Config) SelectedDatabase() (string, DatabaseConfig, bool) {
	driver := c.Database.Driver
	if driver == "" {
		return "", DatabaseConfig{}, false
	}
	db := c.Databases[driver]
	if c.Database.DSN != "" {
		db.DSN = c.Database.DSN
	}
	return driver, db, true
}

// MemoryBackend resolves the automatic choice: SQL when a database is
// configured, else Supabase when configured, else none.
func (c *Config) MemoryBackend() string {
	if c.Storage.Memory != BackendAuto {
		return c.Storage.Memory
	}
	if c.Database.Driver != "" {
		return BackendSQL
	}
	if c.Supabase.Configured() {
		return BackendSupabase
	}
	return BackendNone
}

// RecordsBackend resolves the automatic choice: Supabase when configured,
// else SQL when a database is configured, else none.
func (c *Config) RecordsBackend() string {
	if c.Storage.Records != BackendAuto {
		return c.Storage.Records
	}
	if c.Supabase.Configured() {
		return BackendSupabase
	}
	if c.Database.Driver != "" {
		return BackendSQL
	}
	return BackendNone
}

func (l LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// Retries is the retry budget after defaults were applied.
func (l LLMConfig) Retries() int {
	if l.MaxRetries == nil {
		return defaultMaxRetries
	}
	return *l.MaxRetries
}

func (v VoiceConfig) Retries() int {
	if v.MaxRetries == nil {
		return defaultMaxRetries
	}
	return *v.MaxRetries
}

func (v VoiceConfig) Timeout() time.Duration {
	return time.Duration(v.TimeoutSeconds) * time.Second
}

func (v VoiceConfig) MaxUploadBytes() int64 {
	return int64(v.MaxUploadMB) << 20
}

func (s SupabaseConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (s SecurityConfig) MaxSkew() time.Duration {
	return time.Duration(s.MaxSkewSeconds) * time.Second
}

func (s SecurityConfig) ReplayWindow() time.Duration {
	return time.Duration(s.ReplayWindowSeconds) * time.Second
}

func (m MemoryConfig) StoreTimeout() time.Duration {
	return time.Duration(m.StoreTimeoutSeconds) * time.Second
}

func (b BasicConfig) QueueTimeout() time.Duration {
	return time.Duration(b.QueueTimeoutSecs) * time.Second
}

func (b BasicConfig) AudioTTL() time.Duration {
	return time.Duration(b.AudioTTLMinutes) * time.Minute
}

func isSQLite(driver string) bool {
	d := strings.ToLower(driver)
	return d == "sqlite" || d == "sqlite3"
}
