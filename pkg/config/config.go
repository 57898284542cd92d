package config

import (
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
	"github.com/ajitpratap0/shredder/pkg/schema"
	"github.com/ajitpratap0/shredder/pkg/shred"
)

// Config is the configuration of one shredding run: where documents come
// from, the schema they are shredded into, and where batches go.
type Config struct {
	// Name identifies the run in logs and metrics
	Name string `yaml:"name" json:"name"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	// Input selects the document source
	Input InputConfig `yaml:"input" json:"input"`

	// Output selects the batch sink
	Output OutputConfig `yaml:"output" json:"output"`

	// Schema is the target Arrow schema
	Schema SchemaConfig `yaml:"schema" json:"schema"`

	// Ingest controls how documents are shredded
	Ingest IngestConfig `yaml:"ingest" json:"ingest"`

	// Batch controls batch sizing
	Batch BatchConfig `yaml:"batch" json:"batch"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`

	// Reliability settings for error handling
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability"`
}

// InputConfig describes the document source.
type InputConfig struct {
	// Type is "file" (length-prefixed BSON, as written by mongodump) or "mongodb"
	Type string `yaml:"type" json:"type"`
	// Path of the BSON file; "-" reads stdin
	Path string `yaml:"path" json:"path"`
	// Compression of the file: auto (by extension), none, gzip, zstd, snappy, s2, lz4
	Compression string `yaml:"compression" json:"compression"`
	// MaxDocumentSize rejects framed documents larger than this many bytes
	MaxDocumentSize int `yaml:"max_document_size" json:"max_document_size"`
	// Mmap maps an uncompressed file into memory instead of streaming it
	Mmap bool `yaml:"mmap" json:"mmap"`

	// URI is the MongoDB connection string
	URI string `yaml:"uri" json:"uri"`
	// Database and Collection name the MongoDB collection to read
	Database   string `yaml:"database" json:"database"`
	Collection string `yaml:"collection" json:"collection"`
	// Filter is a query in relaxed extended JSON; empty matches every document
	Filter string `yaml:"filter" json:"filter"`
	// CursorBatchSize is the number of documents per server round trip
	CursorBatchSize int32 `yaml:"cursor_batch_size" json:"cursor_batch_size"`
	// ConnectTimeout bounds connection setup
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// OutputConfig describes the batch sink.
type OutputConfig struct {
	// Format is one of arrow, parquet, avro, jsonl
	Format string `yaml:"format" json:"format"`
	// Path of the output file; "-" writes stdout
	Path string `yaml:"path" json:"path"`
	// Compression codec; the accepted values depend on the format
	Compression string `yaml:"compression" json:"compression"`
	// CompressionLevel for codecs that take one (0 = codec default)
	CompressionLevel int `yaml:"compression_level" json:"compression_level"`
}

// SchemaConfig holds the target schema inline or names a schema file.
type SchemaConfig struct {
	// File is a YAML schema definition; used when Fields is empty
	File string `yaml:"file" json:"file"`
	// Fields is an inline schema definition
	Fields []schema.Field `yaml:"fields" json:"fields"`
}

// IngestConfig controls shredding.
type IngestConfig struct {
	// Mode is "project" (drop unknown keys) or "strict" (reject documents with unknown keys)
	Mode string `yaml:"mode" json:"mode"`
	// ParsePolicy is "zero" (unparsable strings become zero) or "strict"
	ParsePolicy string `yaml:"parse_policy" json:"parse_policy"`
	// Duplicates is the repeated key policy: first, last or reject
	Duplicates string `yaml:"duplicates" json:"duplicates"`
	// MaxDepth bounds struct nesting in the schema
	MaxDepth int `yaml:"max_depth" json:"max_depth"`
	// TraceFields logs every per-field decision at debug level
	TraceFields bool `yaml:"trace_fields" json:"trace_fields"`
}

// BatchConfig controls batch sizing.
type BatchConfig struct {
	// Size is the number of rows per output batch
	Size int `yaml:"size" json:"size"`
	// ValueSizeHint is the expected average size of string and binary values in bytes
	ValueSizeHint int `yaml:"value_size_hint" json:"value_size_hint"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogEncoding is json or console
	LogEncoding string `yaml:"log_encoding" json:"log_encoding"`
	// MetricsAddr serves Prometheus metrics on this address when set (e.g. ":9090")
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	// EnableTracing activates tracing of batch flushes
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
}

// ReliabilityConfig contains error handling settings.
type ReliabilityConfig struct {
	// FailFast stops on the first rejected document instead of skipping it
	FailFast bool `yaml:"fail_fast" json:"fail_fast"`
	// MaxRejected stops the run once more documents were rejected (0 = unlimited)
	MaxRejected int64 `yaml:"max_rejected" json:"max_rejected"`
}

// NewConfig creates a Config with defaults for a file to Arrow IPC run.
func NewConfig(name string) *Config {
	return &Config{
		Name:    name,
		Version: "1.0.0",
		Input: InputConfig{
			Type:            "file",
			Path:            "-",
			Compression:     "auto",
			MaxDocumentSize: 16 * 1024 * 1024,
			CursorBatchSize: 1000,
			ConnectTimeout:  10 * time.Second,
		},
		Output: OutputConfig{
			Format:      "arrow",
			Path:        "-",
			Compression: "none",
		},
		Ingest: IngestConfig{
			Mode:        "project",
			ParsePolicy: "zero",
			Duplicates:  "first",
			MaxDepth:    shred.DefaultMaxDepth,
		},
		Batch: BatchConfig{
			Size:          10000,
			ValueSizeHint: 16,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogEncoding:       "json",
			TracingSampleRate: 0.1,
		},
	}
}

// Validate validates the configuration for correctness.
func (c *Config) Validate() error {
	if c.Name == "" {
		return invalid("name is required")
	}

	switch c.Input.Type {
	case "file":
		if c.Input.Path == "" {
			return invalid("input.path is required for file input")
		}
		if c.Input.Mmap && c.Input.Path == "-" {
			return invalid("input.mmap needs a file path, not stdin")
		}
		if c.Input.Mmap && c.Input.Compression != "auto" && c.Input.Compression != "none" {
			return invalidf("input.mmap cannot read %s compressed input", c.Input.Compression)
		}
	case "mongodb":
		if c.Input.URI == "" || c.Input.Database == "" || c.Input.Collection == "" {
			return invalid("input.uri, input.database and input.collection are required for mongodb input")
		}
	default:
		return invalidf("input.type %q: want file or mongodb", c.Input.Type)
	}
	if c.Input.MaxDocumentSize < 0 {
		return invalid("input.max_document_size cannot be negative")
	}

	switch c.Output.Format {
	case "arrow", "parquet", "avro", "jsonl":
	default:
		return invalidf("output.format %q: want arrow, parquet, avro or jsonl", c.Output.Format)
	}
	if c.Output.Path == "" {
		return invalid("output.path is required")
	}

	if len(c.Schema.Fields) == 0 && c.Schema.File == "" {
		return invalid("schema.fields or schema.file is required")
	}
	if len(c.Schema.Fields) > 0 {
		if err := schema.Validate(c.Schema.Fields, c.Ingest.MaxDepth); err != nil {
			return shrederrors.Wrap(err, shrederrors.ErrorTypeConfig, "schema.fields")
		}
	}

	if _, err := c.Ingest.Options(); err != nil {
		return err
	}
	if c.Ingest.Mode != "project" && c.Ingest.Mode != "strict" {
		return invalidf("ingest.mode %q: want project or strict", c.Ingest.Mode)
	}
	if c.Ingest.MaxDepth <= 0 {
		return invalid("ingest.max_depth must be positive")
	}

	if c.Batch.Size <= 0 {
		return invalid("batch.size must be positive")
	}
	if c.Batch.ValueSizeHint < 0 {
		return invalid("batch.value_size_hint cannot be negative")
	}

	if r := c.Observability.TracingSampleRate; r < 0 || r > 1 {
		return invalid("observability.tracing_sample_rate must be within [0, 1]")
	}
	if c.Reliability.MaxRejected < 0 {
		return invalid("reliability.max_rejected cannot be negative")
	}
	return nil
}

// Fields resolves the target schema, reading schema.file when no inline
// fields are given.
func (c *Config) Fields() ([]arrow.Field, error) {
	defs := c.Schema.Fields
	if len(defs) == 0 {
		var err error
		if defs, err = schema.LoadFile(c.Schema.File); err != nil {
			return nil, err
		}
	}
	if err := schema.Validate(defs, c.Ingest.MaxDepth); err != nil {
		return nil, err
	}
	return schema.ToArrow(defs)
}

// Options converts the ingest settings into builder options.
func (i *IngestConfig) Options() ([]shred.Option, error) {
	var opts []shred.Option

	switch i.ParsePolicy {
	case "", "zero":
		opts = append(opts, shred.WithParsePolicy(shred.ParseZeroOnFailure))
	case "strict":
		opts = append(opts, shred.WithParsePolicy(shred.ParseStrict))
	default:
		return nil, invalidf("ingest.parse_policy %q: want zero or strict", i.ParsePolicy)
	}

	switch i.Duplicates {
	case "", "first":
		opts = append(opts, shred.WithDuplicatePolicy(shred.KeepFirst))
	case "last":
		opts = append(opts, shred.WithDuplicatePolicy(shred.KeepLast))
	case "reject":
		opts = append(opts, shred.WithDuplicatePolicy(shred.RejectDuplicates))
	default:
		return nil, invalidf("ingest.duplicates %q: want first, last or reject", i.Duplicates)
	}

	if i.MaxDepth > 0 {
		opts = append(opts, shred.WithMaxDepth(i.MaxDepth))
	}
	return opts, nil
}

// IsStrict reports whether documents with unknown keys are rejected.
func (i *IngestConfig) IsStrict() bool {
	return i.Mode == "strict"
}

// HasMetrics reports whether a metrics endpoint should be served.
func (o *ObservabilityConfig) HasMetrics() bool {
	return o.MetricsAddr != ""
}

func invalid(msg string) error {
	return shrederrors.New(shrederrors.ErrorTypeConfig, msg)
}

func invalidf(format string, args ...interface{}) error {
	return shrederrors.Newf(shrederrors.ErrorTypeConfig, format, args...)
}
