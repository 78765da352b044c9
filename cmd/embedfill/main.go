// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/embedfill/generate"
	"github.com/poiesic/embedfill/ingestion"
	"github.com/poiesic/embedfill/storage/postgres"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "embedfill",
		Usage: "Materialize text embeddings for table rows, resumably",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "generate",
				Usage:  "Embed the rows of a source table that are missing from the destination",
				Action: generateCommand,
				Flags: append(append([]cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Usage:    "Source table",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "target",
						Usage:    "Destination table",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "ml-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "content-column",
						Usage:    "Column holding the text to embed",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:     "key-column",
						Usage:    "Column identifying a row (repeatable)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "options",
						Usage: `Run options as a JSON object, e.g. '{"batch_size": 1000}'`,
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Report progress after every iteration",
						Value: true,
					},
				}, storeFlags()...), providerFlags()...),
			},
			{
				Name:   "load",
				Usage:  "Load JSON lines into a table",
				Action: loadCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "table",
						Usage:    "Table to load into",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "key-column",
						Usage: "Key column of a new table (repeatable)",
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "JSON lines file, - for stdin",
						Value:   "-",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of rows per insert",
						Value: ingestion.DefaultBatchSize,
					},
				}, storeFlags()...),
			},
			{
				Name:   "export",
				Usage:  "Write the rows of a table as JSON lines",
				Action: exportCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "table",
						Usage:    "Table to export",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file, - for stdout",
						Value:   "-",
					},
				}, storeFlags()...),
			},
			{
				Name:   "tables",
				Usage:  "List tables",
				Action: tablesCommand,
				Flags:  storeFlags(),
			},
			{
				Name:   "migrate",
				Usage:  "Apply PostgreSQL migrations",
				Action: migrateCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "database-url",
						Usage:    "PostgreSQL connection URL",
						EnvVars:  []string{"DATABASE_URL"},
						Required: true,
					},
				},
			},
		},
	}
}

func generateCommand(c *cli.Context) error {
	opts, err := providerOptions(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(c, opts...)
	if err != nil {
		return err
	}
	defer db.Close()

	req := generate.Request{
		SourceTable:   c.String("source"),
		TargetTable:   c.String("target"),
		MLModel:       c.String("ml-model"),
		ContentColumn: c.String("content-column"),
		KeyColumns:    c.StringSlice("key-column"),
		OptionsString: c.String("options"),
	}

	errOut := c.App.ErrWriter
	var genOpts []generate.Option
	if c.Bool("progress") {
		genOpts = append(genOpts, generate.WithProgress(errOut))
	}

	fmt.Fprintf(errOut, "Store: %s\n", c.String("store"))
	fmt.Fprintf(errOut, "Provider: %s\n", c.String("provider"))
	fmt.Fprintf(errOut, "Model: %s\n", req.MLModel)
	fmt.Fprintf(errOut, "%s -> %s\n", req.SourceTable, req.TargetTable)
	fmt.Fprintln(errOut)

	result, err := db.Generate(c.Context, req, genOpts...)
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "stop=%s iterations=%d inserted=%d probe_inserted=%d retryable=%d failed=%d elapsed=%s\n",
		result.Stop, result.Iteration, result.TotalInserted, result.ProbeInserted,
		result.TotalRetryable, result.TotalFailed, result.Elapsed.Round(time.Millisecond))
	return nil
}

func loadCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	in := io.Reader(os.Stdin)
	if path := c.String("file"); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	loader, err := db.NewLoader(ingestion.WithBatchSize(c.Int("batch-size")))
	if err != nil {
		return err
	}
	result, err := loader.Load(c.Context, c.String("table"), c.StringSlice("key-column"), in)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "read=%d inserted=%d created=%t\n", result.Read, result.Inserted, result.Created)
	return nil
}

func exportCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	out := c.App.Writer
	if path := c.String("output"); path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	n, err := db.Export(c.Context, c.String("table"), out)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	slog.Debug("export complete", "table", c.String("table"), "rows", n)
	return nil
}

func tablesCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	tables, err := db.Store().ListTables(c.Context)
	if err != nil {
		return err
	}
	for _, name := range tables {
		fmt.Fprintln(c.App.Writer, name)
	}
	return nil
}

func migrateCommand(c *cli.Context) error {
	if err := postgres.Migrate(c.String("database-url")); err != nil {
		return err
	}
	slog.Info("database migrations applied")
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	errOut := c.App.ErrWriter
	if errOut == nil {
		errOut = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
