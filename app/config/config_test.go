package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parser.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, SourceEmbedded, c.Gazetteer.Source)
	assert.Equal(t, 3, c.Suggestions.Max)
	assert.Equal(t, 1500*time.Millisecond, c.RequestTimeout())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
workers: 4
gazetteer:
  source: meilisearch
  meili_host: http://localhost:7700
suggestions:
  jw_weight: 0.8
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Workers)
	assert.Equal(t, SourceMeilisearch, c.Gazetteer.Source)
	assert.Equal(t, "jp_towns", c.Gazetteer.MeiliIndex, "unset keys keep defaults")
	assert.Equal(t, 0.8, c.Suggestions.JWWeight)
	assert.Equal(t, 0.4, c.Suggestions.LevWeight)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GAZETTEER_SOURCE", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/jp")
	t.Setenv("PARSER_WORKERS", "12")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, SourcePostgres, c.Gazetteer.Source)
	assert.Equal(t, 12, c.Workers)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("unknown source", func(t *testing.T) {
		_, err := Load(writeConfig(t, "gazetteer:\n  source: nominatim\n"))
		assert.ErrorContains(t, err, "unknown gazetteer source")
	})
	t.Run("postgres without dsn", func(t *testing.T) {
		t.Setenv("POSTGRES_DSN", "")
		_, err := Load(writeConfig(t, "gazetteer:\n  source: postgres\n"))
		assert.Error(t, err)
	})
	t.Run("bad workers env", func(t *testing.T) {
		t.Setenv("PARSER_WORKERS", "many")
		_, err := Load("")
		assert.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}
