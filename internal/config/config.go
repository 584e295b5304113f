package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/memcontext-mcp/internal/chunker"
	"github.com/dshills/memcontext-mcp/internal/embedder"
	"github.com/dshills/memcontext-mcp/internal/hybrid"
	"github.com/dshills/memcontext-mcp/internal/indexer"
	"github.com/dshills/memcontext-mcp/internal/searcher"
	"github.com/dshills/memcontext-mcp/internal/storage"
	"github.com/dshills/memcontext-mcp/pkg/types"
)

// Environment variables
const (
	EnvWorkspaceDir      = "MEMCTX_WORKSPACE_DIR"
	EnvDBPath            = "MEMCTX_DB_PATH"
	EnvDataDir           = "MEMCTX_DATA_DIR"
	EnvOwner             = "MEMCTX_OWNER"
	EnvEmbeddingProvider = "MEMCTX_EMBEDDING_PROVIDER"
	EnvEmbeddingModel    = "MEMCTX_EMBEDDING_MODEL"
	EnvEmbeddingBaseURL  = "MEMCTX_EMBEDDING_BASE_URL"
	EnvLogLevel          = "MEMCTX_LOG_LEVEL"
)

// Lexical engines
const (
	EngineFTS5  = "fts5"
	EngineBleve = "bleve"
)

// Defaults not owned by another package
const (
	DefaultOwner     = "default"
	DefaultDataDir   = ".memcontext"
	DefaultCacheSize = 10000
	DefaultDebounce  = 250 * time.Millisecond
	DefaultLogLevel  = "info"
	configFileName   = "config.toml"
)

// File mirrors the TOML file. Pointer fields distinguish an explicit zero
// from an absent key.
type File struct {
	WorkspaceDir string `toml:"workspace_dir"`
	DataDir      string `toml:"data_dir"`
	DBPath       string `toml:"db_path"`
	Owner        string `toml:"owner"`
	Enabled      *bool  `toml:"enabled"`

	Embedding EmbeddingFile `toml:"embedding"`
	Chunking  ChunkingFile  `toml:"chunking"`
	Query     QueryFile     `toml:"query"`
	Sync      SyncFile      `toml:"sync"`
	Log       LogFile       `toml:"log"`
}

// EmbeddingFile is the [embedding] table
type EmbeddingFile struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	Dimension *int   `toml:"dimension"`
	CacheSize *int   `toml:"cache_size"`
}

// ChunkingFile is the [chunking] table
type ChunkingFile struct {
	Tokens  *int `toml:"tokens"`
	Overlap *int `toml:"overlap"`
}

// QueryFile is the [query] table
type QueryFile struct {
	VectorWeight        *float64 `toml:"vector_weight"`
	TextWeight          *float64 `toml:"text_weight"`
	MinScore            *float64 `toml:"min_score"`
	MaxResults          *int     `toml:"max_results"`
	SnippetChars        *int     `toml:"snippet_chars"`
	CandidateMultiplier *int     `toml:"candidate_multiplier"`
	MaxCandidates       *int     `toml:"max_candidates"`
	RankFloor           *float64 `toml:"rank_floor"`
	DistanceSpan        *float64 `toml:"distance_span"`
	LexicalEngine       string   `toml:"lexical_engine"`
}

// SyncFile is the [sync] table
type SyncFile struct {
	Workers  *int   `toml:"workers"`
	Watch    *bool  `toml:"watch"`
	Debounce string `toml:"debounce"`
}

// LogFile is the [log] table
type LogFile struct {
	Level  string `toml:"level"`
	Pretty *bool  `toml:"pretty"`
	File   string `toml:"file"`
}

// Overrides carries values set on the command line
type Overrides struct {
	WorkspaceDir string
	DBPath       string
	Provider     string
	LogLevel     string
}

// Config is the fully resolved configuration
type Config struct {
	WorkspaceDir string
	DataDir      string
	DBPath       string
	Owner        string
	Enabled      bool

	Embedding embedder.Config

	TokensPerChunk int
	OverlapTokens  int

	Weights             hybrid.Weights
	Normalizer          hybrid.Normalizer
	MinScore            float64
	MaxResults          int
	SnippetChars        int
	CandidateMultiplier int
	MaxCandidates       int
	LexicalEngine       string

	Workers  int
	Watch    bool
	Debounce time.Duration

	LogLevel  string
	LogPretty bool
	LogFile   string
}

// DefaultPath returns ~/.memcontext/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultDataDir, configFileName), nil
}

// Load reads a TOML file. A missing file is an error only when the path was
// given explicitly; an empty path means the default location.
func Load(path string) (*File, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return &File{}, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return &File{}, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrInvalidConfig, path, err)
	}
	return &f, nil
}

// ApplyEnv overlays environment variables read through getenv
func (f *File) ApplyEnv(getenv func(string) string) {
	setString(&f.WorkspaceDir, getenv(EnvWorkspaceDir))
	setString(&f.DBPath, getenv(EnvDBPath))
	setString(&f.DataDir, getenv(EnvDataDir))
	setString(&f.Owner, getenv(EnvOwner))
	setString(&f.Embedding.Provider, getenv(EnvEmbeddingProvider))
	setString(&f.Embedding.Model, getenv(EnvEmbeddingModel))
	setString(&f.Embedding.BaseURL, getenv(EnvEmbeddingBaseURL))
	setString(&f.Log.Level, getenv(EnvLogLevel))
}

// ApplyOverrides overlays command line values
func (f *File) ApplyOverrides(o Overrides) {
	setString(&f.WorkspaceDir, o.WorkspaceDir)
	setString(&f.DBPath, o.DBPath)
	setString(&f.Embedding.Provider, o.Provider)
	setString(&f.Log.Level, o.LogLevel)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// Resolve fills every default and validates the result. API keys come from
// getenv so they never need to live in the file.
func (f *File) Resolve(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		WorkspaceDir: f.WorkspaceDir,
		DataDir:      f.DataDir,
		DBPath:       f.DBPath,
		Owner:        f.Owner,
		Enabled:      boolOr(f.Enabled, true),

		Embedding: embedder.Config{
			Provider:     strings.ToLower(f.Embedding.Provider),
			Model:        f.Embedding.Model,
			APIKey:       f.Embedding.APIKey,
			BaseURL:      f.Embedding.BaseURL,
			Dimension:    intOr(f.Embedding.Dimension, 0),
			CacheSize:    intOr(f.Embedding.CacheSize, DefaultCacheSize),
			JinaAPIKey:   getenv(embedder.EnvJinaAPIKey),
			OpenAIAPIKey: getenv(embedder.EnvOpenAIAPIKey),
		},

		TokensPerChunk: intOr(f.Chunking.Tokens, chunker.DefaultTokensPerChunk),
		OverlapTokens:  intOr(f.Chunking.Overlap, chunker.DefaultOverlapTokens),

		Weights: hybrid.Weights{
			Vector: floatOr(f.Query.VectorWeight, hybrid.DefaultVectorWeight),
			Text:   floatOr(f.Query.TextWeight, hybrid.DefaultTextWeight),
		},
		Normalizer: hybrid.Normalizer{
			RankFloor:    floatOr(f.Query.RankFloor, hybrid.DefaultRankFloor),
			DistanceSpan: floatOr(f.Query.DistanceSpan, hybrid.DefaultDistanceSpan),
		},
		MinScore:            floatOr(f.Query.MinScore, searcher.DefaultMinScore),
		MaxResults:          intOr(f.Query.MaxResults, searcher.DefaultMaxResults),
		SnippetChars:        intOr(f.Query.SnippetChars, searcher.DefaultSnippetChars),
		CandidateMultiplier: intOr(f.Query.CandidateMultiplier, searcher.DefaultCandidateMultiplier),
		MaxCandidates:       intOr(f.Query.MaxCandidates, searcher.DefaultMaxCandidates),
		LexicalEngine:       strings.ToLower(f.Query.LexicalEngine),

		Workers:  intOr(f.Sync.Workers, indexer.DefaultWorkers),
		Watch:    boolOr(f.Sync.Watch, true),
		Debounce: DefaultDebounce,

		LogLevel:  strings.ToLower(f.Log.Level),
		LogPretty: boolOr(f.Log.Pretty, false),
		LogFile:   f.Log.File,
	}

	if cfg.WorkspaceDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		cfg.WorkspaceDir = wd
	}
	abs, err := filepath.Abs(cfg.WorkspaceDir)
	if err != nil {
		return nil, fmt.Errorf("%w: workspace dir: %v", types.ErrInvalidConfig, err)
	}
	cfg.WorkspaceDir = abs

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, DefaultDataDir)
	}
	if cfg.Owner == "" {
		cfg.Owner = DefaultOwner
	}
	if cfg.DBPath == "" {
		cfg.DBPath = storage.DefaultDBPath(cfg.DataDir, cfg.Owner)
	}
	if cfg.LexicalEngine == "" {
		cfg.LexicalEngine = EngineFTS5
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if f.Sync.Debounce != "" {
		d, err := time.ParseDuration(f.Sync.Debounce)
		if err != nil {
			return nil, fmt.Errorf("%w: sync.debounce: %v", types.ErrInvalidConfig, err)
		}
		cfg.Debounce = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects malformed values
func (c *Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if err := c.Normalizer.Validate(); err != nil {
		return err
	}

	switch {
	case c.TokensPerChunk <= 0:
		return invalid("chunking.tokens must be positive, got %d", c.TokensPerChunk)
	case c.OverlapTokens < 0:
		return invalid("chunking.overlap must not be negative, got %d", c.OverlapTokens)
	case math.IsNaN(c.MinScore) || c.MinScore < 0 || c.MinScore > 1:
		return invalid("query.min_score must be within [0,1], got %v", c.MinScore)
	case c.MaxResults <= 0:
		return invalid("query.max_results must be positive, got %d", c.MaxResults)
	case c.SnippetChars <= 0:
		return invalid("query.snippet_chars must be positive, got %d", c.SnippetChars)
	case c.CandidateMultiplier <= 0:
		return invalid("query.candidate_multiplier must be positive, got %d", c.CandidateMultiplier)
	case c.MaxCandidates <= 0:
		return invalid("query.max_candidates must be positive, got %d", c.MaxCandidates)
	case c.Workers <= 0:
		return invalid("sync.workers must be positive, got %d", c.Workers)
	case c.Debounce <= 0:
		return invalid("sync.debounce must be positive, got %s", c.Debounce)
	case c.Embedding.Dimension < 0:
		return invalid("embedding.dimension must not be negative, got %d", c.Embedding.Dimension)
	case c.Embedding.CacheSize < 0:
		return invalid("embedding.cache_size must not be negative, got %d", c.Embedding.CacheSize)
	}

	switch c.Embedding.Provider {
	case "", embedder.ProviderJina, embedder.ProviderOpenAI, embedder.ProviderLocal, embedder.ProviderNone:
	default:
		return invalid("unknown embedding provider %q", c.Embedding.Provider)
	}

	switch c.LexicalEngine {
	case EngineFTS5, EngineBleve:
	default:
		return invalid("unknown lexical engine %q", c.LexicalEngine)
	}

	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return invalid("unknown log level %q", c.LogLevel)
	}
	return nil
}

// SearcherConfig projects the query settings
func (c *Config) SearcherConfig() searcher.Config {
	return searcher.Config{
		Weights:             c.Weights,
		Normalizer:          c.Normalizer,
		MaxResults:          c.MaxResults,
		MinScore:            c.MinScore,
		SnippetChars:        c.SnippetChars,
		CandidateMultiplier: c.CandidateMultiplier,
		MaxCandidates:       c.MaxCandidates,
		Disabled:            !c.Enabled,
	}
}

// IndexerConfig projects the sync settings for one workspace
func (c *Config) IndexerConfig(workspaceID int64) indexer.Config {
	return indexer.Config{
		Root:           c.WorkspaceDir,
		WorkspaceID:    workspaceID,
		Sources:        indexer.DefaultSourceRules(),
		TokensPerChunk: c.TokensPerChunk,
		OverlapTokens:  c.OverlapTokens,
		Workers:        c.Workers,
		Disabled:       !c.Enabled,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{types.ErrInvalidConfig}, args...)...)
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
