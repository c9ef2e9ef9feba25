package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryglass/queryglass/pkg/models"
)

func validConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Endpoint: "https://api.openai.com/v1",
			Model:    "gpt-4o",
			APIKey:   "sk-test",
		},
		Embedding: EmbeddingConfig{
			Endpoint: "https://api.openai.com/v1",
			Model:    "text-embedding-3-small",
			APIKey:   "sk-test",
		},
		Store: StoreConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "queryglass",
			Password: "secret",
			Database: "queryglass",
			SSLMode:  "disable",
		},
		Target: TargetConfig{ConnString: "postgres://app:pw@localhost/reports"},
		Synthesis: SynthesisConfig{
			Mode:             "retrieval",
			MaxRepairRetries: 3,
		},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateReportsEveryMissingCredential(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.APIKey = ""
	cfg.Target.ConnString = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_API_KEY")
	assert.Contains(t, err.Error(), "TARGET_DATABASE_URL")
}

func TestValidateRejectsUnknownSynthesisMode(t *testing.T) {
	cfg := validConfig()
	cfg.Synthesis.Mode = "oracle"

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "synthesis mode"))
}

func TestValidateRejectsRetrievalWithAnthropic(t *testing.T) {
	cfg := validConfig()
	cfg.LLM.Provider = "anthropic"
	cfg.Synthesis.Mode = "retrieval"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic")

	cfg.Synthesis.Mode = "multi_agent"
	require.NoError(t, cfg.Validate())
}

func TestCallerFallback(t *testing.T) {
	cfg := validConfig()
	cfg.Policy = PolicyConfig{
		DefaultRole:        "sub_tenant",
		DefaultTenantID:    7,
		DefaultTenantName:  "Archdiocese of Boston",
		DefaultSubTenantID: 12,
	}

	caller := cfg.CallerFallback()
	assert.Equal(t, models.RoleSubTenant, caller.Role)
	assert.Equal(t, int64(7), caller.TenantID)
	require.NotNil(t, caller.SubTenantID)
	assert.Equal(t, int64(12), *caller.SubTenantID)
}

func TestStoreConnectionString(t *testing.T) {
	cfg := validConfig()
	conn := cfg.Store.ConnectionString()
	assert.Contains(t, conn, "host=localhost")
	assert.Contains(t, conn, "dbname=queryglass")
}
