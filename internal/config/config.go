// Package config loads the application configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/iqralabs/iqra/internal/exam"
)

// Config is the application configuration, loaded from a YAML file.
// Every field has a usable default; a missing file yields Default().
type Config struct {
	// StorePath is the SQLite database location.
	StorePath string `yaml:"store_path"`

	// ListenAddr is the HTTP API bind address for `iqra serve`.
	ListenAddr string `yaml:"listen_addr"`

	// Language is the default content-language tag ("en" or "ar").
	Language string `yaml:"language"`

	// Generator selects and configures the exam content source.
	Generator GeneratorConfig `yaml:"generator"`
}

// GeneratorConfig configures the exam content source.
type GeneratorConfig struct {
	// Kind is "llm" or "static".
	Kind string `yaml:"kind"`

	// Endpoint is the LLM HTTP endpoint (llm kind only).
	Endpoint string `yaml:"endpoint,omitempty"`

	// Model names the LLM model to prompt (llm kind only).
	Model string `yaml:"model,omitempty"`
}

const (
	// GeneratorLLM generates content by prompting an LLM endpoint.
	GeneratorLLM = "llm"
	// GeneratorStatic serves canned offline content.
	GeneratorStatic = "static"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		StorePath:  filepath.Join(home, ".iqra", "iqra.db"),
		ListenAddr: "127.0.0.1:8591",
		Language:   "en",
		Generator: GeneratorConfig{
			Kind:     GeneratorLLM,
			Endpoint: "http://localhost:11434",
			Model:    "llama3.2",
		},
	}
}

// Load reads a config file, filling unset fields from Default(). A
// missing file is not an error; a malformed or misspelled one is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields (catches typos)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.StorePath == "" {
		return errors.New("store_path must not be empty")
	}
	if _, err := exam.ParseLanguage(cfg.Language); err != nil {
		return fmt.Errorf("language: %w", err)
	}
	switch cfg.Generator.Kind {
	case GeneratorLLM:
		if cfg.Generator.Endpoint == "" {
			return errors.New("generator.endpoint required for kind llm")
		}
		if cfg.Generator.Model == "" {
			return errors.New("generator.model required for kind llm")
		}
	case GeneratorStatic:
	default:
		return fmt.Errorf("generator.kind %q not recognized (want llm or static)", cfg.Generator.Kind)
	}
	return nil
}
