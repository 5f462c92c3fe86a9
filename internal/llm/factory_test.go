package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		cfg          FactoryConfig
		wantProvider string
		wantModel    string
	}{
		{
			name: "openai",
			cfg: FactoryConfig{
				Provider:   "openai",
				Timeout:    30 * time.Second,
				MaxRetries: 3,
				OpenAI: OpenAIConfig{
					APIKey:  "sk-test-key",
					Model:   "gpt-4",
					BaseURL: "https://api.electronhub.top/v1/",
				},
			},
			wantProvider: "openai",
			wantModel:    "gpt-4",
		},
		{
			name: "anthropic",
			cfg: FactoryConfig{
				Provider:   "anthropic",
				Timeout:    45 * time.Second,
				MaxRetries: 2,
				Anthropic: AnthropicConfig{
					APIKey: "sk-ant-test-key",
					Model:  "claude-sonnet-4-20250514",
				},
			},
			wantProvider: "anthropic",
			wantModel:    "claude-sonnet-4-20250514",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client, err := NewClient(tt.cfg)
			require.NoError(t, err)
			require.NotNil(t, client)
			assert.Equal(t, tt.wantProvider, client.Provider())
			assert.Equal(t, tt.wantModel, client.Model())
		})
	}
}

func TestNewClient_Unsupported(t *testing.T) {
	t.Parallel()

	for _, provider := range []string{"", "cohere", "OpenAI"} {
		client, err := NewClient(FactoryConfig{Provider: provider})
		require.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "unsupported LLM provider")
	}
}
