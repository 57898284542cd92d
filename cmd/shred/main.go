package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/shredder/pkg/config"
	"github.com/ajitpratap0/shredder/pkg/document"
	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
	"github.com/ajitpratap0/shredder/pkg/logger"
	"github.com/ajitpratap0/shredder/pkg/schema"
	"github.com/ajitpratap0/shredder/pkg/source"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "shred",
		Short: "shred - convert BSON documents into columnar Arrow batches",
		Long: `shred reads BSON documents from a mongodump file or a live MongoDB collection,
converts them to a fixed Arrow schema and writes the batches as Arrow IPC,
Parquet, Avro or JSON lines.`,
		SilenceUsage: true,
	}

	root.AddCommand(newVersionCmd(), newRunCmd(), newSchemaCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "shred v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newRunCmd() *cobra.Command {
	var configFile, logLevel string

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a shredding pipeline",
		Long: `Run a shredding pipeline described by a YAML configuration file.
Values of the form ${VAR} are replaced from the environment.

Example:
  shred run --config shred.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Observability.LogLevel = logLevel
			}

			// Logs go to stderr so stdout can carry output data
			if err := logger.Init(logger.Config{
				Level:       cfg.Observability.LogLevel,
				Encoding:    cfg.Observability.LogEncoding,
				OutputPaths: []string{"stderr"},
			}); err != nil {
				return shrederrors.Wrap(err, shrederrors.ErrorTypeConfig, "create logger")
			}
			defer func() { _ = logger.Sync() }()

			stats, err := runPipeline(cmd.Context(), cfg, logger.Get())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d documents, %d rejected, %d rows in %d batches (%s)\n",
				stats.Documents, stats.Rejected, stats.Rows, stats.Batches, stats.Duration)
			return nil
		},
	}

	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to pipeline configuration YAML file (required)")
	_ = runCmd.MarkFlagRequired("config")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	return runCmd
}

func newSchemaCmd() *cobra.Command {
	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Work with schema definitions",
	}

	var file string
	var maxDepth int
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a schema definition and print the Arrow schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateSchema(cmd.OutOrStdout(), file, maxDepth)
		},
	}
	validateCmd.Flags().StringVarP(&file, "file", "f", "", "Path to schema YAML file (required)")
	_ = validateCmd.MarkFlagRequired("file")
	validateCmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Maximum struct nesting depth (0 = unlimited)")

	var input, codec string
	var sample int
	inferCmd := &cobra.Command{
		Use:   "infer",
		Short: "Infer a schema definition from sample documents",
		Long: `Read up to --sample documents from a BSON dump and print a schema
definition that shreds them, ready to be edited and used as schema.file.

Example:
  shred schema infer --input dump.bson --sample 1000 > schema.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logger.Config{
				Level:       "warn",
				Encoding:    "console",
				OutputPaths: []string{"stderr"},
			}); err != nil {
				return shrederrors.Wrap(err, shrederrors.ErrorTypeConfig, "create logger")
			}
			defer func() { _ = logger.Sync() }()
			return inferSchema(cmd.Context(), cmd.OutOrStdout(), input, codec, sample, logger.Get())
		},
	}
	inferCmd.Flags().StringVarP(&input, "input", "i", "-", "BSON dump to sample; - reads stdin")
	inferCmd.Flags().StringVar(&codec, "compression", "auto", "Input compression (auto, none, gzip, zstd, snappy, s2, lz4)")
	inferCmd.Flags().IntVarP(&sample, "sample", "n", 1000, "Number of documents to sample (0 = all)")

	schemaCmd.AddCommand(validateCmd, inferCmd)
	return schemaCmd
}

func inferSchema(ctx context.Context, out io.Writer, input, codec string, sample int, log *zap.Logger) error {
	src, err := source.OpenFile(input, codec, 0)
	if err != nil {
		return err
	}
	defer src.Close()

	inf := schema.NewInferrer(log)
	for sample <= 0 || inf.Samples() < sample {
		raw, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := inf.Observe(document.Raw(raw)); err != nil {
			return err
		}
	}
	if inf.Samples() == 0 {
		return shrederrors.New(shrederrors.ErrorTypeValidation, "no documents to infer a schema from")
	}

	data, err := yaml.Marshal(schema.Definition{Fields: inf.Fields()})
	if err != nil {
		return shrederrors.Wrap(err, shrederrors.ErrorTypeInternal, "encode schema definition")
	}
	_, err = out.Write(data)
	return err
}

func validateSchema(out io.Writer, file string, maxDepth int) error {
	defs, err := schema.LoadFile(file)
	if err != nil {
		return err
	}
	if err := schema.Validate(defs, maxDepth); err != nil {
		return err
	}
	fields, err := schema.ToArrow(defs)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, arrow.NewSchema(fields, nil))
	return nil
}
