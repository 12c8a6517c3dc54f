package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"
	"gopkg.in/yaml.v3"

	"github.com/kart-io/sensei/internal/model"
)

// DefaultRouterPrompt is the classifier system prompt.
const DefaultRouterPrompt = `You are a Query Optimizer.
STANDARD CATEGORIES: RED, BLUE, OSINT, CLOUD, CRYPTO, SYSTEM, ACTION, CASUAL, NOVICE.
Task:
1. Analyze the user input.
2. Classify it into exactly one of the categories above.
3. Rephrase the query into a formal research request tailored to the expert domain.
Output strictly JSON format: {"category": "CategoryName", "enhanced_query": "Rephrased Query"}`

// defaultPersona returns the built-in system prompt of a persona.
func defaultPersona(id model.PersonaID) string {
	switch id {
	case model.PersonaRed:
		return "SYSTEM: You are a Red Team Operator."
	case model.PersonaBlue:
		return "SYSTEM: You are a Blue Team Analyst."
	case model.PersonaOsint:
		return "SYSTEM: You are an Intelligence Officer."
	case model.PersonaCloud:
		return "SYSTEM: You are a Cloud Security Architect."
	case model.PersonaCrypto:
		return "SYSTEM: You are a Cryptographer."
	case model.PersonaSystem:
		return "SYSTEM: You are Root."
	case model.PersonaAction:
		return "SYSTEM: You are a Security Tool Operator."
	case model.PersonaCasual:
		return "SYSTEM: You are Sensei."
	case model.PersonaNovice:
		return "SYSTEM: You are a Teacher."
	default:
		return "SYSTEM: You are Sensei."
	}
}

// fileKeys lists the prompts file keys of a persona, preferred first.
func fileKeys(id model.PersonaID) []string {
	switch id {
	case model.PersonaRed:
		return []string{"red", "red_team"}
	case model.PersonaBlue:
		return []string{"blue", "blue_team"}
	default:
		return []string{string(id)}
	}
}

const routerKey = "router"

// promptsFile is the layout of prompts.yaml:
//
//	agents:
//	  red_team:
//	    prompt: "..."
type promptsFile struct {
	Agents map[string]struct {
		Prompt string `yaml:"prompt"`
	} `yaml:"agents"`
}

// PersonaSet resolves persona and router system prompts. Built-in defaults
// can be overridden by a prompts file, which is re-read when it changes.
type PersonaSet struct {
	routerDefault string

	mu        sync.RWMutex
	overrides map[string]string
}

// NewPersonaSet creates a PersonaSet. An empty routerPrompt selects
// DefaultRouterPrompt.
func NewPersonaSet(routerPrompt string) *PersonaSet {
	if strings.TrimSpace(routerPrompt) == "" {
		routerPrompt = DefaultRouterPrompt
	}
	return &PersonaSet{routerDefault: routerPrompt, overrides: map[string]string{}}
}

// Persona returns the system prompt of id.
func (s *PersonaSet) Persona(id model.PersonaID) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range fileKeys(id) {
		if p, ok := s.overrides[k]; ok {
			return p
		}
	}
	return defaultPersona(id)
}

// RouterPrompt returns the classifier system prompt.
func (s *PersonaSet) RouterPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.overrides[routerKey]; ok {
		return p
	}
	return s.routerDefault
}

// Load reads overrides from path. A missing file clears the overrides and is
// not an error; a malformed file keeps the previous overrides.
func (s *PersonaSet) Load(path string) error {
	data, err := os.ReadFile(path)
	if stderrors.Is(err, fs.ErrNotExist) {
		s.swap(map[string]string{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("read prompts file: %w", err)
	}

	var f promptsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse prompts file %s: %w", path, err)
	}

	overrides := make(map[string]string, len(f.Agents))
	for k, a := range f.Agents {
		if p := strings.TrimSpace(a.Prompt); p != "" {
			overrides[strings.ToLower(k)] = p
		}
	}
	s.swap(overrides)
	logger.Infow("prompts loaded", "path", path, "overrides", len(overrides))
	return nil
}

func (s *PersonaSet) swap(overrides map[string]string) {
	s.mu.Lock()
	s.overrides = overrides
	s.mu.Unlock()
}

// Watch reloads path whenever it changes until ctx is done. The parent
// directory is watched so editors that replace the file are handled.
func (s *PersonaSet) Watch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create prompts watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch prompts dir: %w", err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
					!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if err := s.Load(abs); err != nil {
					logger.Errorw("prompts reload failed", "path", abs, "error", err.Error())
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warnw("prompts watcher error", "error", err.Error())
			}
		}
	}()

	logger.Infow("watching prompts file", "path", abs)
	return nil
}
