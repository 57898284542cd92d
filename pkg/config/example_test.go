package config_test

import (
	"fmt"
	"log"

	"github.com/ajitpratap0/shredder/pkg/config"
	"github.com/ajitpratap0/shredder/pkg/schema"
)

// ExampleNewConfig demonstrates creating a configuration with default values.
func ExampleNewConfig() {
	cfg := config.NewConfig("orders")

	fmt.Printf("Input: %s from %s\n", cfg.Input.Type, cfg.Input.Path)
	fmt.Printf("Output: %s\n", cfg.Output.Format)
	fmt.Printf("Batch Size: %d\n", cfg.Batch.Size)
	fmt.Printf("Duplicates: %s\n", cfg.Ingest.Duplicates)

	// Output:
	// Input: file from -
	// Output: arrow
	// Batch Size: 10000
	// Duplicates: first
}

// ExampleConfig_Validate shows how to validate a configuration
// before using it.
func ExampleConfig_Validate() {
	cfg := config.NewConfig("orders")
	cfg.Schema.Fields = []schema.Field{
		{Name: "_id", Type: "binary"},
		{Name: "total", Type: "decimal128(38, 2)"},
	}
	cfg.Output.Format = "parquet"
	cfg.Output.Path = "orders.parquet"

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("Configuration is valid!")

	// Output:
	// Configuration is valid!
}

// ExampleIngestConfig_Options shows how ingest settings become builder options.
func ExampleIngestConfig_Options() {
	cfg := config.NewConfig("orders")
	cfg.Ingest.Duplicates = "last"
	cfg.Ingest.ParsePolicy = "strict"

	opts, err := cfg.Ingest.Options()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Options: %d\n", len(opts))
	fmt.Printf("Strict mode: %v\n", cfg.Ingest.IsStrict())

	// Output:
	// Options: 3
	// Strict mode: false
}
