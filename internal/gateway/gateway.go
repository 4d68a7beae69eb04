// Package gateway wires the configured pieces together: provider adapter,
// session store, caption search action, skills, and the chat service.
package gateway

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"crafty/internal/chat"
	"crafty/internal/config"
	"crafty/internal/llm"
	"crafty/internal/memory"
	"crafty/internal/search"
	"crafty/internal/session"
	"crafty/internal/skills"
)

const systemPrompt = "You are a research assistant for CraftyPanda, a social-media caption archive. " +
	"Use the caption_search tool to ground your answers in historical captions and cite their sources."

type Gateway struct {
	ConfigPath string
	cfg        *config.Config
}

// Runtime bundles the initialized components so callers (CLI, HTTP server)
// can reach past the chat service when they need to.
type Runtime struct {
	Config    *config.Config
	Provider  llm.Provider
	Sessions  *session.Store
	Search    *search.Action
	Memory    *memory.Store
	Block     *session.Block
	SessionID string
}

func New(configPath string) *Gateway {
	return &Gateway{ConfigPath: configPath}
}

// LoadConfig reads the config file (if any), then layers .env and CRAFTY_*
// environment variables on top.
func (g *Gateway) LoadConfig() *config.Config {
	_ = godotenv.Load()

	path := g.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	g.cfg = cfg
	return cfg
}

// InitService builds a ready research service plus the runtime around it.
func (g *Gateway) InitService(opts ...chat.ServiceOption) (*chat.Service, *Runtime, error) {
	cfg := g.cfg
	if cfg == nil {
		cfg = g.LoadConfig()
	}

	provider, err := llm.NewProvider(cfg.Backend(), cfg.AdapterConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("initialize %s provider: %w", cfg.Provider, err)
	}

	sessions := session.NewStore()
	block, err := sessions.CreateBlock("research")
	if err != nil {
		return nil, nil, fmt.Errorf("create research block: %w", err)
	}

	if cfg.CaptionSearchURL == "" {
		log.Printf("[Gateway] caption archive endpoint not configured; caption_search will return empty results")
	}
	action := search.NewAction(cfg.CaptionSearchURL, cfg.SearchLimit, cfg.SearchThreshold, sessions)

	sessionID := uuid.NewString()
	mem := memory.NewStore()

	mgr := skills.NewManager()
	mgr.Register(skills.NewCaptionSearchSkill(action, mem, sessionID, block.ID))

	serviceOpts := append([]chat.ServiceOption{
		chat.WithSystemPrompt(systemPrompt),
		chat.WithSkills(mgr),
		chat.WithMemory(mem, sessionID),
	}, opts...)

	service := chat.NewService(provider, serviceOpts...)

	rt := &Runtime{
		Config:    cfg,
		Provider:  provider,
		Sessions:  sessions,
		Search:    action,
		Memory:    mem,
		Block:     block,
		SessionID: sessionID,
	}
	return service, rt, nil
}
