package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/queryglass/queryglass/pkg/models"
)

// Config holds all configuration for queryglass.
// Configuration can come from YAML file (config.yaml) or environment
// variables. Environment variables always override YAML values. Secrets
// (API keys, passwords, connection strings) must only come from env.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8090"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// LLM holds the language-model endpoint used for synthesis and repair.
	LLM LLMConfig `yaml:"llm"`

	// Embedding holds the text-embedding endpoint used by the semantic store.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Store is the PostgreSQL database backing the semantic document store.
	Store StoreConfig `yaml:"store"`

	// Target is the relational database questions are answered against.
	Target TargetConfig `yaml:"target"`

	// Policy configures the static caller-context fallback.
	Policy PolicyConfig `yaml:"policy"`

	// Synthesis selects the orchestrator variant and its bounds.
	Synthesis SynthesisConfig `yaml:"synthesis"`
}

// LLMConfig holds language-model endpoint configuration.
type LLMConfig struct {
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Endpoint string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o"`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
}

// EmbeddingConfig holds embedding endpoint configuration. The embedding
// endpoint is always OpenAI-compatible, even when the chat provider is not.
type EmbeddingConfig struct {
	Endpoint string `yaml:"endpoint" env:"EMBEDDING_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	APIKey   string `yaml:"-" env:"EMBEDDING_API_KEY"` // Secret - not in YAML
}

// StoreConfig holds the semantic-store backing database (PostgreSQL with
// the pgvector extension).
type StoreConfig struct {
	Host       string `yaml:"host" env:"STORE_PGHOST" env-default:"localhost"`
	Port       int    `yaml:"port" env:"STORE_PGPORT" env-default:"5432"`
	User       string `yaml:"user" env:"STORE_PGUSER" env-default:"queryglass"`
	Password   string `yaml:"-" env:"STORE_PGPASSWORD"` // Secret - not in YAML
	Database   string `yaml:"database" env:"STORE_PGDATABASE" env-default:"queryglass"`
	SSLMode    string `yaml:"ssl_mode" env:"STORE_PGSSLMODE" env-default:"disable"`
	MaxConns   int32  `yaml:"max_conns" env:"STORE_PGMAX_CONNS" env-default:"10"`
	CorpusPath string `yaml:"corpus_path" env:"STORE_CORPUS_PATH" env-default:"corpus.yaml"`
}

// TargetConfig holds the connection string of the reporting database that
// generated SQL runs against.
type TargetConfig struct {
	ConnString string `yaml:"-" env:"TARGET_DATABASE_URL"` // Secret - not in YAML
}

// PolicyConfig holds the static caller-context fallback used when no
// session collaborator resolves one.
type PolicyConfig struct {
	DefaultRole        string `yaml:"default_role" env:"POLICY_DEFAULT_ROLE" env-default:"tenant"`
	DefaultTenantID    int64  `yaml:"default_tenant_id" env:"POLICY_DEFAULT_TENANT_ID" env-default:"0"`
	DefaultTenantName  string `yaml:"default_tenant_name" env:"POLICY_DEFAULT_TENANT_NAME" env-default:""`
	DefaultSubTenantID int64  `yaml:"default_sub_tenant_id" env:"POLICY_DEFAULT_SUB_TENANT_ID" env-default:"0"`
}

// SynthesisConfig selects the orchestrator variant and execution bounds.
type SynthesisConfig struct {
	// Mode is one of: single_pass, multi_agent, retrieval.
	Mode string `yaml:"mode" env:"SYNTHESIS_MODE" env-default:"retrieval"`
	// MaxRepairRetries bounds execution attempts in the repair loop.
	MaxRepairRetries int `yaml:"max_repair_retries" env:"SYNTHESIS_MAX_REPAIR_RETRIES" env-default:"3"`
	// MaxToolSteps bounds tool-calling iterations in retrieval mode.
	MaxToolSteps int `yaml:"max_tool_steps" env:"SYNTHESIS_MAX_TOOL_STEPS" env-default:"10"`
	// ResponseTimeoutSeconds caps the streamed response end to end.
	ResponseTimeoutSeconds int `yaml:"response_timeout_seconds" env:"SYNTHESIS_RESPONSE_TIMEOUT_SECONDS" env-default:"120"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. When no config.yaml exists, environment variables alone are
// used. Missing required credentials is a fatal configuration error
// surfaced here, before any synthesis begins.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every required credential is present. Any missing
// value is fatal; the engine never starts in a partially degraded state.
func (c *Config) Validate() error {
	var missing []string

	if c.LLM.Endpoint == "" {
		missing = append(missing, "LLM_ENDPOINT")
	}
	if c.LLM.Model == "" {
		missing = append(missing, "LLM_MODEL")
	}
	if c.LLM.APIKey == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if c.Embedding.Endpoint == "" {
		missing = append(missing, "EMBEDDING_ENDPOINT")
	}
	if c.Embedding.APIKey == "" {
		missing = append(missing, "EMBEDDING_API_KEY")
	}
	if c.Target.ConnString == "" {
		missing = append(missing, "TARGET_DATABASE_URL")
	}
	if c.Store.Password == "" {
		missing = append(missing, "STORE_PGPASSWORD")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch c.Synthesis.Mode {
	case "single_pass", "multi_agent", "retrieval":
	default:
		return fmt.Errorf("unknown synthesis mode %q (want single_pass, multi_agent or retrieval)", c.Synthesis.Mode)
	}

	// Retrieval mode needs a tool-calling chat client, which the
	// anthropic provider does not offer. Catching the mismatch here
	// keeps it a startup error instead of failing every request.
	if c.Synthesis.Mode == "retrieval" && c.LLM.Provider == "anthropic" {
		return fmt.Errorf("synthesis mode %q is not supported by llm provider %q (use single_pass or multi_agent)",
			c.Synthesis.Mode, c.LLM.Provider)
	}

	return nil
}

// CallerFallback builds the static CallerContext used when no session
// collaborator resolves one.
func (c *Config) CallerFallback() models.CallerContext {
	caller := models.CallerContext{
		TenantID:   c.Policy.DefaultTenantID,
		TenantName: c.Policy.DefaultTenantName,
		Role:       models.Role(c.Policy.DefaultRole),
	}
	if c.Policy.DefaultSubTenantID != 0 {
		sub := c.Policy.DefaultSubTenantID
		caller.SubTenantID = &sub
	}
	return caller
}

// ConnectionString returns a PostgreSQL connection string for the
// semantic-store backing database.
func (c *StoreConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
