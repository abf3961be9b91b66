package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"unirag-ingestor/internal/chromemdb"
	"unirag-ingestor/internal/chunker"
	"unirag-ingestor/internal/config"
	"unirag-ingestor/internal/db"
	"unirag-ingestor/internal/embedding"
	"unirag-ingestor/internal/fetcher"
	"unirag-ingestor/internal/ingest"
	"unirag-ingestor/internal/parser"
)

const defaultConfigFilePath = "config.json"

type options struct {
	configPath string
	logLevel   string
	debug      bool
	dryRun     bool
	initTable  bool
	reset      bool
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}
}

func rootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "unirag-ingestor",
		Short:         "Ingest a legal text page into a vector store",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(opts.logLevel, opts.debug)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", defaultConfigFilePath, "Config file path (JSON or YAML)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Debug logging and SQL query logging")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Dry run, print chunks and do not embed or save")
	cmd.Flags().BoolVar(&opts.initTable, "init-table", false, "Create the vector extension and target table if missing")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "Replace the target table or collection with this run's chunks")

	cmd.AddCommand(&cobra.Command{
		Use:   "strategies",
		Short: "List the registered parser strategies",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range parser.DefaultRegistry.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	})

	return cmd
}

func setupLogging(level string, debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if debug {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

func run(ctx context.Context, opts options) error {
	load := config.LoadConfig
	if opts.dryRun {
		load = config.LoadDryRunConfig
	}
	cfg, err := load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.debug {
		cfg.Database.Debug = true
	}
	log.Debug().
		Str("strategy", cfg.ParserStrategy).
		Str("url", cfg.TargetURL).
		Str("embedding", cfg.Embedding.ServiceType).
		Str("store", cfg.Database.StoreType).
		Msg("Loaded config")

	ch, err := chunker.New(chunker.FromConfig(cfg.Chunking))
	if err != nil {
		return err
	}
	f := fetcher.NewFetcher(cfg.Timeouts.FetchDuration(), cfg.UserAgent)

	if opts.dryRun {
		_, err := ingest.NewPipeline(cfg, f, parser.DefaultRegistry, ch, nil, nil).WithDryRun(os.Stdout).Run(ctx)
		return err
	}

	embedder, err := embedding.New(ctx, cfg.Embedding)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg, opts)
	if err != nil {
		return err
	}
	defer closeStore()

	res, err := ingest.NewPipeline(cfg, f, parser.DefaultRegistry, ch, embedder, store).Run(ctx)
	if err != nil {
		return err
	}
	log.Info().
		Str("run_id", res.RunID).
		Int("records", res.Records).
		Int("chunks", res.Chunks).
		Int("persisted", res.Persisted).
		Str("table", cfg.Database.TableName).
		Msg("Ingestion finished")
	return nil
}

func openStore(cfg *config.Config, opts options) (ingest.Store, func(), error) {
	switch cfg.Database.StoreType {
	case config.StoreChromem:
		m, err := chromemdb.NewVectorDBManager(cfg.Database.ChromemPath, false)
		if err != nil {
			return nil, nil, err
		}
		if _, err := m.GetOrCreateCollection(cfg.Database.TableName); err != nil {
			return nil, nil, err
		}
		return m.WithReset(opts.reset), func() {}, nil
	default:
		dbClient, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		dbInstance := db.NewDB(dbClient, cfg.Database.Debug)
		closeDB := func() {
			if err := dbInstance.Close(); err != nil {
				log.Warn().Err(err).Msg("Error closing database")
			}
		}
		persister := db.NewPersister(dbInstance, cfg.Database.TableName).
			WithInitTable(opts.initTable).
			WithReset(opts.reset)
		return persister, closeDB, nil
	}
}
