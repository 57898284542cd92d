package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
	"github.com/ajitpratap0/shredder/pkg/schema"
)

const runYAML = `
name: events
input:
  type: mongodb
  uri: ${SHREDDER_TEST_URI}
  database: app
  collection: events
output:
  format: jsonl
  path: events.jsonl
schema:
  fields:
    - {name: _id, type: binary}
    - {name: seen, type: "timestamp[ms]"}
ingest:
  mode: strict
  duplicates: reject
batch:
  size: 500
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func validConfig() *Config {
	cfg := NewConfig("test")
	cfg.Schema.Fields = []schema.Field{{Name: "a", Type: "int64"}}
	return cfg
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SHREDDER_TEST_URI", "mongodb://db:27017")
	path := writeFile(t, "run.yaml", runYAML)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "events", cfg.Name)
	assert.Equal(t, "mongodb://db:27017", cfg.Input.URI)
	assert.Equal(t, "jsonl", cfg.Output.Format)
	assert.True(t, cfg.Ingest.IsStrict())
	assert.Equal(t, 500, cfg.Batch.Size)

	// omitted keys keep their defaults
	assert.Equal(t, int32(1000), cfg.Input.CursorBatchSize)
	assert.Equal(t, "zero", cfg.Ingest.ParsePolicy)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeFile(t, "bad.yaml", "name: [unclosed"))
	assert.Error(t, err)

	_, err = LoadConfig(writeFile(t, "invalid.yaml", "name: x\n"))
	require.Error(t, err)
	assert.True(t, shrederrors.IsType(err, shrederrors.ErrorTypeConfig))
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("SHREDDER_A", "alpha")

	assert.Equal(t, "x=alpha y=", substituteEnvVars("x=${SHREDDER_A} y=${SHREDDER_UNSET_VAR}"))
	assert.Equal(t, "open ${brace", substituteEnvVars("open ${brace"))
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := validConfig()
	cfg.Output.Compression = "zstd"
	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, Save(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no name", func(c *Config) { c.Name = "" }},
		{"unknown input", func(c *Config) { c.Input.Type = "kafka" }},
		{"file without path", func(c *Config) { c.Input.Path = "" }},
		{"mongodb without collection", func(c *Config) {
			c.Input.Type = "mongodb"
			c.Input.URI = "mongodb://localhost"
			c.Input.Database = "db"
		}},
		{"negative document size", func(c *Config) { c.Input.MaxDocumentSize = -1 }},
		{"mmap stdin", func(c *Config) { c.Input.Mmap, c.Input.Path = true, "-" }},
		{"mmap compressed", func(c *Config) {
			c.Input.Mmap, c.Input.Path, c.Input.Compression = true, "dump.bson.gz", "gzip"
		}},
		{"unknown format", func(c *Config) { c.Output.Format = "orc" }},
		{"no output path", func(c *Config) { c.Output.Path = "" }},
		{"no schema", func(c *Config) { c.Schema.Fields = nil }},
		{"bad schema", func(c *Config) { c.Schema.Fields = []schema.Field{{Name: "a", Type: "uint8"}} }},
		{"unknown mode", func(c *Config) { c.Ingest.Mode = "lenient" }},
		{"unknown parse policy", func(c *Config) { c.Ingest.ParsePolicy = "maybe" }},
		{"unknown duplicates", func(c *Config) { c.Ingest.Duplicates = "merge" }},
		{"zero depth", func(c *Config) { c.Ingest.MaxDepth = 0 }},
		{"zero batch", func(c *Config) { c.Batch.Size = 0 }},
		{"negative hint", func(c *Config) { c.Batch.ValueSizeHint = -1 }},
		{"sample rate", func(c *Config) { c.Observability.TracingSampleRate = 1.5 }},
		{"negative rejects", func(c *Config) { c.Reliability.MaxRejected = -1 }},
	}

	require.NoError(t, validConfig().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, shrederrors.IsType(err, shrederrors.ErrorTypeConfig), "got %v", err)
		})
	}
}

func TestFieldsFromFile(t *testing.T) {
	path := writeFile(t, "schema.yaml", "fields:\n  - {name: n, type: int32, nullable: false}\n")
	cfg := NewConfig("test")
	cfg.Schema.File = path
	require.NoError(t, cfg.Validate())

	fields, err := cfg.Fields()
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "n", fields[0].Name)
	assert.False(t, fields[0].Nullable)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int32, fields[0].Type))
}

func TestIngestOptions(t *testing.T) {
	cfg := NewConfig("test")
	opts, err := cfg.Ingest.Options()
	require.NoError(t, err)
	assert.Len(t, opts, 3)

	cfg.Ingest.MaxDepth = 0
	opts, err = cfg.Ingest.Options()
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	assert.False(t, cfg.Observability.HasMetrics())
	cfg.Observability.MetricsAddr = ":9090"
	assert.True(t, cfg.Observability.HasMetrics())
}
