// Package config loads the configuration of a shredding run.
//
// A run reads BSON documents from a source, shreds them into Arrow batches
// against a target schema and writes the batches to a sink. The whole run
// is described by one YAML file:
//
//	name: orders
//	input:
//	  type: file
//	  path: dump/orders.bson.gz
//	output:
//	  format: parquet
//	  path: orders.parquet
//	  compression: zstd
//	schema:
//	  fields:
//	    - {name: _id, type: binary}
//	    - {name: total, type: decimal128(38, 2)}
//	ingest:
//	  mode: project
//	  duplicates: first
//	batch:
//	  size: 50000
//
// # Environment Variable Substitution
//
// ${VAR_NAME} anywhere in the file is replaced with the value of the
// environment variable before parsing, so secrets such as the MongoDB
// connection string stay out of the file:
//
//	input:
//	  type: mongodb
//	  uri: ${MONGO_URI}
//
// # Defaults
//
// LoadConfig starts from NewConfig, so every omitted key keeps its default.
// Validate reports the first invalid setting as an error of type
// ErrorTypeConfig.
package config
