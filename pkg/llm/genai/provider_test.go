package genai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/kart-io/sensei/pkg/llm"
)

func TestGenerateConfig_Permissive(t *testing.T) {
	contents, cfg := GenerateConfig(
		llm.GenerateMessages("how does kerberoasting work", "red team persona"),
		llm.ApplyChatOptions(llm.WithSafetyMode(llm.SafetyPermissive), llm.WithTemperature(0.2), llm.WithJSON()),
	)

	require.Len(t, contents, 1)
	require.NotNil(t, cfg.SystemInstruction)
	require.Len(t, cfg.SafetySettings, 4)
	for _, s := range cfg.SafetySettings {
		assert.Equal(t, genai.HarmBlockThresholdBlockNone, s.Threshold)
	}
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.2, *cfg.Temperature, 1e-6)
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
}

func TestGenerateConfig_Standard(t *testing.T) {
	contents, cfg := GenerateConfig(
		[]llm.Message{{Role: llm.RoleUser, Content: "hi"}, {Role: llm.RoleAssistant, Content: "hello"}},
		llm.ApplyChatOptions(),
	)
	assert.Len(t, contents, 2)
	assert.Empty(t, cfg.SafetySettings)
	assert.Nil(t, cfg.SystemInstruction)
	assert.Nil(t, cfg.Temperature)
}

func TestNewProvider_RequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := NewProvider(map[string]any{})
	assert.Error(t, err)
}
