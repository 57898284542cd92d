// Package shredder converts BSON documents into columnar Apache Arrow
// batches against a fixed, caller supplied schema.
//
// Each document becomes one row. Keys are matched to schema fields by name,
// values are coerced to the field's Arrow type, missing fields are filled
// with nulls and nested documents shred into struct columns. A document that
// cannot be converted adds no row at all, so every column of a batch always
// has the same length.
//
// # Quick Start
//
// Shred documents directly:
//
//	import (
//	    "github.com/ajitpratap0/shredder/pkg/document"
//	    "github.com/ajitpratap0/shredder/pkg/shred"
//	)
//
//	b, err := shred.New(fields, 1024)
//	if err != nil {
//	    return err
//	}
//	defer b.Release()
//
//	for _, raw := range docs {
//	    if err := b.ProjectAndAppend(document.Raw(raw)); err != nil {
//	        log.Warn("skipping document", zap.Error(err))
//	    }
//	}
//	rec, err := b.FinishRecord()
//
// Or run a whole pipeline from a configuration file:
//
//	shred run --config shred.yaml
//
// # Key Packages
//
//	pkg/shred        - Record builder: coercion, null filling and finishing
//	pkg/document     - Read-only view over BSON documents and their values
//	pkg/schema       - Text schema definitions, validation and inference
//	pkg/source       - BSON dump files, memory-mapped dumps and MongoDB cursors
//	pkg/sink         - Arrow IPC, Parquet, Avro and JSON lines writers
//	pkg/pipeline     - Batching loop from a source to a sink
//	pkg/compression  - Stream codecs for inputs and outputs
//	pkg/config       - YAML configuration with environment substitution
//	pkg/errors       - Structured error types
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus metrics
//	pkg/observability - OpenTelemetry tracing
//
// # Ingestion Modes
//
// Strict mode (AppendRecord) rejects documents that carry keys the schema
// does not name. Projecting mode (ProjectAndAppend) drops such keys. Both
// reject values that cannot be converted, nulls in non-nullable fields and,
// depending on the duplicate policy, repeated keys.
package shredder
