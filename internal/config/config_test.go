package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "iqra.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "language: ar\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ar", cfg.Language)
	assert.Equal(t, Default().ListenAddr, cfg.ListenAddr)
	assert.Equal(t, Default().Generator, cfg.Generator)
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
store_path: /tmp/iqra-test.db
listen_addr: 0.0.0.0:9000
language: ar
generator:
  kind: llm
  endpoint: http://192.168.1.10:11434
  model: qwen2.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/iqra-test.db", cfg.StorePath)
	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	assert.Equal(t, "qwen2.5", cfg.Generator.Model)
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := writeConfig(t, "listen_adr: :9000\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad language tag", "language: '!!'\n"},
		{"unknown generator kind", "generator:\n  kind: oracle\n"},
		{"llm without model", "generator:\n  kind: llm\n  endpoint: http://x\n  model: ''\n"},
		{"empty store path", "store_path: ''\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_StaticKindNeedsNoEndpoint(t *testing.T) {
	cfg, err := Load(writeConfig(t, "generator:\n  kind: static\n"))
	require.NoError(t, err)
	assert.Equal(t, GeneratorStatic, cfg.Generator.Kind)
}
