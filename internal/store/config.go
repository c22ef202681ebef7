package store

import (
	"encoding/json"
	"os"
	"path/filepath"
)

type Config struct {
	Schema int           `json:"schema"`
	Engine *EngineConfig `json:"engine,omitempty"`
}

// EngineConfig holds the dialogue-engine policy knobs. Every behavior the
// engine could plausibly pick silently is a named option here.
type EngineConfig struct {
	// ConfirmComplete gates completion behind a yes/no the way delete and
	// modify are. Default false: completing a single matched task runs
	// immediately.
	ConfirmComplete bool `json:"confirm_complete"`
	// RequireTarget rejects complete/delete/modify commands that name no
	// task. When false the engine acts on the most recent open task.
	RequireTarget bool `json:"require_target"`
	// MinScore is the relevance floor for similarity matches.
	MinScore float64 `json:"min_score"`
	// MaxList caps how many tasks a list command shows.
	MaxList int `json:"max_list"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ConfirmComplete: false,
		RequireTarget:   true,
		MinScore:        0.3,
		MaxList:         5,
	}
}

func defaultConfig() Config {
	engine := DefaultEngineConfig()
	return Config{Schema: 1, Engine: &engine}
}

func (w *Workspace) Config() Config {
	return w.cfg
}

func (w *Workspace) EngineConfig() EngineConfig {
	if w.cfg.Engine == nil {
		return DefaultEngineConfig()
	}
	return *w.cfg.Engine
}

func (w *Workspace) SaveConfig(cfg Config) error {
	if cfg.Schema == 0 {
		cfg.Schema = 1
	}
	w.cfg = cfg
	b, _ := json.MarshalIndent(cfg, "", "  ")
	return atomicWriteFile(w.configPath(), b, 0o644)
}

func (w *Workspace) ensureConfig() error {
	if _, err := os.Stat(w.configPath()); err == nil {
		return w.loadOrDefaultConfig()
	}
	w.cfg = defaultConfig()
	b, _ := json.MarshalIndent(w.cfg, "", "  ")
	return atomicWriteFile(w.configPath(), b, 0o644)
}

func (w *Workspace) loadOrDefaultConfig() error {
	b, err := os.ReadFile(w.configPath())
	if err != nil {
		w.cfg = defaultConfig()
		return err
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return err
	}
	if cfg.Schema == 0 {
		cfg.Schema = 1
	}
	if cfg.Engine == nil {
		engine := DefaultEngineConfig()
		cfg.Engine = &engine
	}
	if cfg.Engine.MinScore <= 0 {
		cfg.Engine.MinScore = 0.3
	}
	if cfg.Engine.MaxList <= 0 {
		cfg.Engine.MaxList = 5
	}
	w.cfg = cfg
	return nil
}

func (w *Workspace) configPath() string {
	return filepath.Join(w.Root, "config.json")
}
