package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"

	"unirag-ingestor/internal/models"
)

// ErrConfig marks missing or invalid configuration. It is always fatal and is
// reported before any network or database work starts.
var ErrConfig = errors.New("config error")

// Embedding service types.
const (
	ServiceOpenAI = "OPENAI"
	ServiceGoogle = "GOOGLE"
	ServiceOllama = "OLLAMA"
)

// Store types.
const (
	StorePostgres = "POSTGRES"
	StoreChromem  = "CHROMEM"
)

// Postgres drivers.
const (
	DriverPG = "pgdriver"
	DriverPQ = "pq"
)

// StatuteStrategy is the strategy that requires all three selectors.
const StatuteStrategy = "gesetze_im_internet_html"

const (
	defaultChunkSize      = 1000
	defaultChunkOverlap   = 200
	defaultModelOpenAI    = "text-embedding-3-small"
	defaultModelGoogle    = "text-embedding-004"
	defaultModelOllama    = "nomic-embed-text"
	defaultOllamaBaseURL  = "http://localhost:11434"
	defaultChromemPath    = "./chromemdb"
	defaultFetchTimeout   = 30
	defaultEmbedTimeout   = 120
	defaultPersistTimeout = 60
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

type Selectors struct {
	ParagraphContainer string `yaml:"paragraph_container"`
	TitleSelector      string `yaml:"title_selector"`
	ContentSelector    string `yaml:"content_selector"`
}

type ChunkingConfig struct {
	SemanticSeparator string `yaml:"semantischer_separator"`
	ChunkSize         int    `yaml:"fallback_chunk_size"`
	ChunkOverlap      int    `yaml:"fallback_chunk_overlap"`
	AddChunkIndex     bool   `yaml:"add_chunk_index"`
}

type EmbeddingConfig struct {
	ServiceType   string `yaml:"EMBEDDING_SERVICE_TYPE"`
	ModelOpenAI   string `yaml:"EMBEDDING_MODEL_OPENAI"`
	ModelGoogle   string `yaml:"EMBEDDING_MODEL_GOOGLE"`
	ModelOllama   string `yaml:"EMBEDDING_MODEL_OLLAMA"`
	OpenAIBaseURL string `yaml:"OPENAI_BASE_URL"`
	OllamaBaseURL string `yaml:"OLLAMA_BASE_URL"`
	BatchSize     int    `yaml:"EMBEDDING_BATCH_SIZE"`

	// credentials, env only
	OpenAIKey string `yaml:"-"`
	GoogleKey string `yaml:"-"`
}

// Model returns the model name configured for the selected service.
func (e EmbeddingConfig) Model() string {
	switch e.ServiceType {
	case ServiceGoogle:
		return e.ModelGoogle
	case ServiceOllama:
		return e.ModelOllama
	default:
		return e.ModelOpenAI
	}
}

type DatabaseConfig struct {
	StoreType     string `yaml:"STORE_TYPE"`
	Driver        string `yaml:"DB_DRIVER"`
	TableName     string `yaml:"DB_TABLE_NAME"`
	ConnectionURI string `yaml:"DB_CONNECTION_URI"`
	ChromemPath   string `yaml:"CHROMEM_PATH"`
	Debug         bool   `yaml:"DB_DEBUG"`
}

// Timeouts are in seconds.
type Timeouts struct {
	Fetch   int `yaml:"fetch"`
	Embed   int `yaml:"embed"`
	Persist int `yaml:"persist"`
}

func (t Timeouts) FetchDuration() time.Duration   { return time.Duration(t.Fetch) * time.Second }
func (t Timeouts) EmbedDuration() time.Duration   { return time.Duration(t.Embed) * time.Second }
func (t Timeouts) PersistDuration() time.Duration { return time.Duration(t.Persist) * time.Second }

// Config is the validated, read-only configuration of one ingestion run.
type Config struct {
	ParserStrategy string         `yaml:"parser_strategy"`
	TargetURL      string         `yaml:"target_url"`
	SourceID       string         `yaml:"source_id"`
	UserAgent      string         `yaml:"user_agent"`
	Selectors      Selectors      `yaml:"selectors"`
	Chunking       ChunkingConfig `yaml:"chunking_strategy"`
	Timeouts       Timeouts       `yaml:"timeouts"`

	Embedding EmbeddingConfig `yaml:",inline"`
	Database  DatabaseConfig  `yaml:",inline"`
}

// LoadConfig reads the config file, overlays the environment and validates
// the result. JSON files are accepted since JSON is a subset of YAML.
func LoadConfig(path string) (*Config, error) {
	return load(path, (*Config).Validate)
}

// LoadDryRunConfig is LoadConfig for runs that stop after chunking. Embedding
// credentials and store settings are not required.
func LoadDryRunConfig(path string) (*Config, error) {
	return load(path, (*Config).ValidateSource)
}

func load(path string, validate func(*Config) error) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}
	return parse(data, os.LookupEnv, validate)
}

// Parse decodes raw config bytes and applies the env overlay returned by
// lookup. It is split from LoadConfig so tests can supply their own env.
func Parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	return parse(data, lookup, (*Config).Validate)
}

// ParseDryRun is Parse with the checks of ValidateSource only.
func ParseDryRun(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	return parse(data, lookup, (*Config).ValidateSource)
}

func parse(data []byte, lookup func(string) (string, bool), validate func(*Config) error) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrConfig, err)
	}
	cfg.applyEnv(lookup)
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	overlay := map[string]*string{
		"DB_CONNECTION_URI":      &c.Database.ConnectionURI,
		"DB_TABLE_NAME":          &c.Database.TableName,
		"DB_DRIVER":              &c.Database.Driver,
		"STORE_TYPE":             &c.Database.StoreType,
		"CHROMEM_PATH":           &c.Database.ChromemPath,
		"EMBEDDING_SERVICE_TYPE": &c.Embedding.ServiceType,
		"EMBEDDING_MODEL_OPENAI": &c.Embedding.ModelOpenAI,
		"EMBEDDING_MODEL_GOOGLE": &c.Embedding.ModelGoogle,
		"EMBEDDING_MODEL_OLLAMA": &c.Embedding.ModelOllama,
		"OPENAI_BASE_URL":        &c.Embedding.OpenAIBaseURL,
		"OLLAMA_BASE_URL":        &c.Embedding.OllamaBaseURL,
		"OPENAI_API_KEY":         &c.Embedding.OpenAIKey,
		"GOOGLE_API_KEY":         &c.Embedding.GoogleKey,
	}
	for key, dst := range overlay {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = models.DefaultUserAgent
	}
	if c.Chunking.ChunkSize == 0 {
		c.Chunking.ChunkSize = defaultChunkSize
		if c.Chunking.ChunkOverlap == 0 {
			c.Chunking.ChunkOverlap = defaultChunkOverlap
		}
	}

	c.Embedding.ServiceType = strings.ToUpper(strings.TrimSpace(c.Embedding.ServiceType))
	if c.Embedding.ServiceType == "" {
		c.Embedding.ServiceType = ServiceOpenAI
	}
	if c.Embedding.ModelOpenAI == "" {
		c.Embedding.ModelOpenAI = defaultModelOpenAI
	}
	if c.Embedding.ModelGoogle == "" {
		c.Embedding.ModelGoogle = defaultModelGoogle
	}
	if c.Embedding.ModelOllama == "" {
		c.Embedding.ModelOllama = defaultModelOllama
	}
	if c.Embedding.OllamaBaseURL == "" {
		c.Embedding.OllamaBaseURL = defaultOllamaBaseURL
	}

	c.Database.StoreType = strings.ToUpper(strings.TrimSpace(c.Database.StoreType))
	if c.Database.StoreType == "" {
		c.Database.StoreType = StorePostgres
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPG
	}
	if c.Database.ChromemPath == "" {
		c.Database.ChromemPath = defaultChromemPath
	}

	if c.Timeouts.Fetch <= 0 {
		c.Timeouts.Fetch = defaultFetchTimeout
	}
	if c.Timeouts.Embed <= 0 {
		c.Timeouts.Embed = defaultEmbedTimeout
	}
	if c.Timeouts.Persist <= 0 {
		c.Timeouts.Persist = defaultPersistTimeout
	}
}

// Validate checks the configuration. All failures wrap ErrConfig.
func (c *Config) Validate() error {
	if err := c.ValidateSource(); err != nil {
		return err
	}
	if err := c.validateEmbedding(); err != nil {
		return err
	}
	return c.validateDatabase()
}

// ValidateSource checks what fetching, parsing and chunking need.
func (c *Config) ValidateSource() error {
	if c.ParserStrategy == "" {
		return fmt.Errorf("%w: parser_strategy is required", ErrConfig)
	}
	if c.TargetURL == "" {
		return fmt.Errorf("%w: target_url is required", ErrConfig)
	}
	if c.SourceID == "" {
		return fmt.Errorf("%w: source_id is required", ErrConfig)
	}
	if c.ParserStrategy == StatuteStrategy {
		if err := c.Selectors.Validate(); err != nil {
			return err
		}
	}

	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("%w: fallback_chunk_size must be positive, got %d", ErrConfig, c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("%w: fallback_chunk_overlap (%d) must be in [0, %d)", ErrConfig, c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}
	return nil
}

func (c *Config) validateEmbedding() error {
	switch c.Embedding.ServiceType {
	case ServiceOpenAI:
		if c.Embedding.OpenAIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is missing from the environment", ErrConfig)
		}
	case ServiceGoogle:
		if c.Embedding.GoogleKey == "" {
			return fmt.Errorf("%w: GOOGLE_API_KEY is missing from the environment", ErrConfig)
		}
	case ServiceOllama:
	default:
		return fmt.Errorf("%w: unknown embedding service %q", ErrConfig, c.Embedding.ServiceType)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if !tableNameRe.MatchString(c.Database.TableName) {
		return fmt.Errorf("%w: DB_TABLE_NAME %q is not a valid table name", ErrConfig, c.Database.TableName)
	}
	switch c.Database.StoreType {
	case StorePostgres:
		if c.Database.ConnectionURI == "" {
			return fmt.Errorf("%w: DB_CONNECTION_URI is required", ErrConfig)
		}
		if c.Database.Driver != DriverPG && c.Database.Driver != DriverPQ {
			return fmt.Errorf("%w: unknown DB_DRIVER %q", ErrConfig, c.Database.Driver)
		}
	case StoreChromem:
	default:
		return fmt.Errorf("%w: unknown STORE_TYPE %q", ErrConfig, c.Database.StoreType)
	}
	return nil
}

// Validate checks that all three selectors are present and compile.
func (s Selectors) Validate() error {
	for _, f := range []struct{ name, sel string }{
		{"paragraph_container", s.ParagraphContainer},
		{"title_selector", s.TitleSelector},
		{"content_selector", s.ContentSelector},
	} {
		name, sel := f.name, f.sel
		if strings.TrimSpace(sel) == "" {
			return fmt.Errorf("%w: selectors.%s is required", ErrConfig, name)
		}
		if _, err := cascadia.Compile(sel); err != nil {
			return fmt.Errorf("%w: selectors.%s %q: %v", ErrConfig, name, sel, err)
		}
	}
	return nil
}
