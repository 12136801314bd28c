package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chriscorrea/related/internal/app"
	"github.com/chriscorrea/related/internal/config"
	"github.com/chriscorrea/related/internal/corpus"
	"github.com/chriscorrea/related/internal/recommend"
	"github.com/chriscorrea/related/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagKeys maps command-line flags to config paths
var flagKeys = map[string]string{
	"format":          "corpus.format",
	"sqlite":          "corpus.sqlite",
	"query":           "corpus.query",
	"max-vector-size": "index.max_vector_size",
	"max-similar":     "index.max_similar",
	"min-score":       "index.min_score",
	"workers":         "index.workers",
	"tokenizer":       "index.tokenizer",
	"addr":            "server.addr",
	"page-size":       "server.page_size",
}

// loadConfig layers explicitly set flags and the optional source argument
// over the config file and environment.
func loadConfig(cmd *cobra.Command, source []string) (*config.Config, error) {
	overrides := make(map[string]any)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		overrides[key] = f.Value.String()
	})
	if len(source) > 0 {
		overrides["corpus.source"] = source[0]
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, overrides)
	if err != nil {
		return nil, err
	}

	// configure logging pending debug flag
	debug, _ := cmd.Flags().GetBool("debug")
	setupLogger(cfg.Logging, debug)

	return cfg, nil
}

// buildAppConfig constructs an app.Config from the loaded configuration and flags
func buildAppConfig(cmd *cobra.Command, cfg *config.Config) (app.Config, error) {
	source, err := cfg.CorpusSource()
	if err != nil {
		return app.Config{}, err
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	jsonFlag, _ := cmd.Flags().GetBool("json")

	outputFormat := app.Text
	if jsonFlag {
		outputFormat = app.JSON
	}

	return app.Config{
		Source:       source,
		IndexOptions: cfg.IndexOptions(),
		OutputFormat: outputFormat,
		Quiet:        quiet,
	}, nil
}

// setupLogger configures the default slog logger; --debug overrides the
// configured level
func setupLogger(cfg config.LoggingConfig, debug bool) {
	var level slog.Level
	switch {
	case debug:
		level = slog.LevelDebug
	default:
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level = slog.LevelError
		}
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// signalContext cancels on interrupt or termination for graceful shutdown
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var rootCmd = &cobra.Command{
	Use:   "related",
	Short: "Content-based recommendations for short documents",
	Long: `Related finds the most textually similar documents in a corpus of titles.
A corpus is a JSON array, JSON lines or YAML sequence of objects with "id" and
"title" fields, read from a file, a URL or standard input, or the rows of a
SQLite query.

Examples:
  related similar 42 questions.json
  cat questions.jsonl | related train --format jsonl
  related serve --sqlite site.db --query "SELECT id, title FROM questions"`,
	SilenceUsage: true,
}

var similarCmd = &cobra.Command{
	Use:   "similar <id> [source]",
	Short: "Print the documents most similar to one document",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args[1:])
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		appCfg, err := buildAppConfig(cmd, cfg)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		start, _ := cmd.Flags().GetInt("start")
		size, _ := cmd.Flags().GetInt("size")

		ctx, stop := signalContext()
		defer stop()

		result, err := app.Similar(ctx, appCfg, args[0], start, size)
		if err != nil {
			return fmt.Errorf("related failed: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}

var trainCmd = &cobra.Command{
	Use:   "train [source]",
	Short: "Train on a corpus and summarize every document's neighbors",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		appCfg, err := buildAppConfig(cmd, cfg)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		ctx, stop := signalContext()
		defer stop()

		result, err := app.Train(ctx, appCfg)
		if err != nil {
			return fmt.Errorf("related failed: %w", err)
		}

		fmt.Print(result)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve [source]",
	Short: "Serve similar-document queries over HTTP",
	Long: `Serve answers GET /documents/{id}/similar?start=&size= with a JSON array.
The corpus is re-read on every query and the index retrained only when its
content changes. GET /healthz and GET /metrics are also served.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		source, err := cfg.CorpusSource()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		if source.SQLite == "" && (source.Path == "" || source.Path == "-") {
			return fmt.Errorf("configuration error: serve needs a file, URL or SQLite source; stdin can only be read once")
		}

		corpusFn := func(ctx context.Context) ([]recommend.Document, error) {
			return corpus.Load(ctx, source)
		}

		srv, err := server.New(corpusFn, cfg.Index.CacheSize,
			server.WithIndexOptions(cfg.IndexOptions()...),
			server.WithPageSize(cfg.Server.PageSize),
			server.WithLogger(slog.Default().With("component", "server")),
		)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		return srv.Run(ctx, cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout)
	},
}

func init() {
	// corpus flags
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (default: $RELATED_CONFIG)")
	rootCmd.PersistentFlags().StringP("format", "f", "auto", "Corpus format: auto, json, jsonl or yaml")
	rootCmd.PersistentFlags().String("sqlite", "", "Read the corpus from a SQLite database")
	rootCmd.PersistentFlags().String("query", corpus.DefaultQuery, "SQL query selecting id, title and extra columns (with --sqlite)")

	// index flags
	rootCmd.PersistentFlags().Int("max-vector-size", recommend.DefaultMaxVectorSize, "Keep this many top-weighted terms per document")
	rootCmd.PersistentFlags().IntP("max-similar", "n", 10, "Keep this many neighbors per document")
	rootCmd.PersistentFlags().Float64("min-score", 0.01, "Only keep neighbors scoring above this value (0-1)")
	rootCmd.PersistentFlags().IntP("workers", "w", 0, "Parallel scoring workers (default: number of CPUs)")
	rootCmd.PersistentFlags().String("tokenizer", "word", "Tokenizer: word or prose")

	// other flags
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "Enable debug logging")
	_ = rootCmd.PersistentFlags().MarkHidden("debug")

	// output format flags
	for _, cmd := range []*cobra.Command{similarCmd, trainCmd} {
		cmd.Flags().Bool("json", false, "Output in JSON format")
		cmd.Flags().Bool("text", false, "Output in plain text format (default)")
		cmd.MarkFlagsMutuallyExclusive("json", "text")
	}

	similarCmd.Flags().Int("start", 0, "Skip this many neighbors")
	similarCmd.Flags().Int("size", recommend.All, "Print at most this many neighbors (default: all kept)")

	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().Int("page-size", server.DefaultPageSize, "Neighbors per page when a query omits size")

	rootCmd.AddCommand(similarCmd, trainCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
