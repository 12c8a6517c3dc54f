package biz

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sensei/internal/model"
)

func writePrompts(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestPersonaSet_Defaults(t *testing.T) {
	s := NewPersonaSet("")
	assert.Equal(t, DefaultRouterPrompt, s.RouterPrompt())
	for _, c := range model.AllCategories() {
		assert.NotEmpty(t, s.Persona(c.Policy().Persona))
	}
	assert.Equal(t, "SYSTEM: You are a Red Team Operator.", s.Persona(model.PersonaRed))
}

func TestPersonaSet_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	writePrompts(t, path, `
agents:
  red_team:
    prompt: "You are a patient red teamer."
  Novice:
    prompt: "Explain like I'm five."
  router:
    prompt: "route it"
  casual:
    prompt: "   "
`)
	s := NewPersonaSet("")
	require.NoError(t, s.Load(path))

	assert.Equal(t, "You are a patient red teamer.", s.Persona(model.PersonaRed))
	assert.Equal(t, "Explain like I'm five.", s.Persona(model.PersonaNovice))
	assert.Equal(t, "route it", s.RouterPrompt())
	assert.Equal(t, defaultPersona(model.PersonaCasual), s.Persona(model.PersonaCasual))
}

func TestPersonaSet_MissingFileIsNotAnError(t *testing.T) {
	s := NewPersonaSet("router")
	require.NoError(t, s.Load(filepath.Join(t.TempDir(), "absent.yaml")))
	assert.Equal(t, "router", s.RouterPrompt())
}

func TestPersonaSet_MalformedKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	writePrompts(t, path, "agents:\n  red:\n    prompt: first\n")
	s := NewPersonaSet("")
	require.NoError(t, s.Load(path))

	writePrompts(t, path, "agents: [unclosed")
	require.Error(t, s.Load(path))
	assert.Equal(t, "first", s.Persona(model.PersonaRed))
}

func TestPersonaSet_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	writePrompts(t, path, "agents:\n  crypto:\n    prompt: v1\n")

	s := NewPersonaSet("")
	require.NoError(t, s.Load(path))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Watch(ctx, path))

	writePrompts(t, path, "agents:\n  crypto:\n    prompt: v2\n")
	assert.Eventually(t, func() bool {
		return s.Persona(model.PersonaCrypto) == "v2"
	}, 5*time.Second, 20*time.Millisecond)
}
