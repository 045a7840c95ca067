package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/g2gml/pg/config"
	"github.com/g2gml/pg/pipeline"
	"github.com/g2gml/pg/staging"
)

// rootFlags holds the values of the root command's flags
type rootFlags struct {
	configPath     string
	parallel       int
	prefix         string
	withoutTmpFile bool
	staging        string
	tmpDir         string
	batchLines     int
	chunkBytes     int
	logLevel       string
	logFormat      string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	f := &rootFlags{}
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "pg2neo [flags] <input.pg>",
		Short: "Convert a property graph file into Neo4j bulk import tables",
		Long: `pg2neo reads a property graph in the line-oriented PG format and writes
<prefix>.neo.nodes and <prefix>.neo.edges for neo4j-admin import.

Property column types are inferred from the values. The input is read once
to discover the columns and its records are then replayed to write the rows.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageError("expected exactly one input file, got %d", len(args))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.config(cmd)
			if err != nil {
				return err
			}
			logger, err := cfg.Logging.NewLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return convert(cmd.Context(), cfg, logger, args[0])
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: 2, Err: err}
	})

	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "path to a YAML configuration file")
	flags.IntVarP(&f.parallel, "parallel", "p", defaults.Parallel, "number of workers (0 means one per CPU)")
	flags.StringVarP(&f.prefix, "prefix", "o", "", "output path prefix (default: input path without extension)")
	flags.BoolVar(&f.withoutTmpFile, "without-tmp-file", false, "keep input lines in memory and parse them twice instead of staging records")
	flags.StringVar(&f.staging, "staging", defaults.Staging.Mode, "where workers stage parsed records: file, sqlite or none")
	flags.StringVar(&f.tmpDir, "tmp-dir", "", "directory for staging data (default: system temp dir)")
	flags.IntVar(&f.batchLines, "batch-lines", defaults.BatchLines, "input lines dealt to a worker at a time")
	flags.IntVar(&f.chunkBytes, "chunk-bytes", defaults.ChunkBytes, "row bytes a worker buffers before handing them over")
	flags.StringVar(&f.logLevel, "log-level", defaults.Logging.Level, "log level: debug, info, warn or error")
	flags.StringVar(&f.logFormat, "log-format", defaults.Logging.Format, "log format: text or json")

	cmd.AddCommand(newInspectCmd(), newInitConfigCmd())
	return cmd
}

// config layers explicitly set flags over the configuration file and the
// environment
func (f *rootFlags) config(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.Load(f.configPath)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("parallel") {
		cfg.Parallel = f.parallel
	}
	if flags.Changed("prefix") {
		cfg.Output.Prefix = f.prefix
	}
	if flags.Changed("staging") {
		cfg.Staging.Mode = f.staging
	}
	if f.withoutTmpFile {
		cfg.Staging.Mode = string(staging.None)
	}
	if flags.Changed("tmp-dir") {
		cfg.Staging.Dir = f.tmpDir
	}
	if flags.Changed("batch-lines") {
		cfg.BatchLines = f.batchLines
	}
	if flags.Changed("chunk-bytes") {
		cfg.ChunkBytes = f.chunkBytes
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = f.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, usageError("%v", err)
	}
	return cfg, nil
}

// outputPaths returns the node and edge table paths for input
func outputPaths(cfg *config.Config, input string) (string, string) {
	prefix := cfg.Output.Prefix
	if prefix == "" {
		prefix = strings.TrimSuffix(input, filepath.Ext(input))
	}
	return prefix + ".neo.nodes", prefix + ".neo.edges"
}

// convert runs the pipeline from input to the two tables. Both tables are
// removed if the conversion fails.
func convert(ctx context.Context, cfg *config.Config, logger *logrus.Logger, input string) (err error) {
	log := logger.WithField("component", "Main")

	in, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	nodePath, edgePath := outputPaths(cfg, input)
	nodes, err := os.Create(nodePath)
	if err != nil {
		return fmt.Errorf("failed to create node table: %w", err)
	}
	edges, err := os.Create(edgePath)
	if err != nil {
		nodes.Close()
		os.Remove(nodePath)
		return fmt.Errorf("failed to create edge table: %w", err)
	}
	defer func() {
		if cerr := nodes.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close node table: %w", cerr)
		}
		if cerr := edges.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close edge table: %w", cerr)
		}
		if err != nil {
			os.Remove(nodePath)
			os.Remove(edgePath)
			log.Debug("Removed incomplete output tables")
		}
	}()

	c := pipeline.New(pipeline.Options{
		Workers:    cfg.Workers(),
		BatchLines: cfg.BatchLines,
		ChunkBytes: cfg.ChunkBytes,
		Staging:    cfg.StagingKind(),
		StagingDir: cfg.Staging.Dir,
		Logger:     logger,
	})
	report, err := c.Run(ctx, in, nodes, edges)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"nodes":        report.Nodes,
		"edges":        report.Edges,
		"node_columns": report.NodeSchema.Len(),
		"edge_columns": report.EdgeSchema.Len(),
	}).Info("Conversion complete")
	log.Infof("%q has been created", nodePath)
	log.Infof("%q has been created", edgePath)
	return nil
}
