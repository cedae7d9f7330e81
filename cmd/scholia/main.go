// Package main is the entry point for the scholia CLI: a live meta-search
// engine for scholarly theology and philosophy material.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/normanking/scholia/internal/cache"
	"github.com/normanking/scholia/internal/config"
	"github.com/normanking/scholia/internal/discovery"
	"github.com/normanking/scholia/internal/engine"
	"github.com/normanking/scholia/internal/index"
	"github.com/normanking/scholia/internal/ingestion"
	"github.com/normanking/scholia/internal/live"
	"github.com/normanking/scholia/internal/logging"
	"github.com/normanking/scholia/internal/models"
	"github.com/normanking/scholia/internal/robots"
	"github.com/normanking/scholia/internal/server"
	"github.com/normanking/scholia/internal/textproc"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scholia",
		Short: "Scholia - live meta-search for scholarly theology and philosophy",
		Long: `Scholia answers free-text queries with ranked, highlighted excerpts
from scholarly web sources. Candidate pages are discovered, fetched and
scored fresh for every query; no persistent corpus is kept.

One-shot search:     scholia search "divine simplicity"
Search local files:  scholia search --dir ~/texts "natural law"
Run the HTTP API:    scholia serve`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.scholia/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Scholia v%s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgPath != "" {
		cfg, err = config.LoadFromPath(cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	return cfg, logging.New(level, cfg.Logging.Format), nil
}

func buildOrchestrator(cfg *config.Config, log zerolog.Logger) (*live.Orchestrator, error) {
	scraper := discovery.NewScraper(discovery.WithLogger(log))

	var fetchOpts []live.FetcherOption
	if cfg.Search.RespectRobots {
		fetchOpts = append(fetchOpts, live.WithRobotsGate(robots.NewGate(robots.WithLogger(log))))
	}
	fetcher := live.NewFetcher(fetchOpts...)

	results := cache.New[models.SearchResult](
		cache.WithTTL[models.SearchResult](time.Duration(cfg.Search.CacheTTLMinutes) * time.Minute))

	return live.NewOrchestrator(scraper, fetcher, textproc.NewTokenizer(),
		live.WithMaxDiscoveryResults(cfg.Search.MaxDiscoveryResults),
		live.WithMaxParallelFetches(cfg.Search.MaxParallelFetches),
		live.WithPerPageTimeout(time.Duration(cfg.Search.PerPageTimeoutSeconds)*time.Second),
		live.WithResultCache(results),
		live.WithOrchestratorLogger(log),
	)
}

// buildLocalEngine ingests dir into a fresh index and returns an engine
// over it.
func buildLocalEngine(ctx context.Context, dir string, log zerolog.Logger) (*engine.Engine, error) {
	tok := textproc.NewTokenizer()
	idx, err := index.New(tok)
	if err != nil {
		return nil, err
	}
	ing, err := ingestion.NewIngester(idx, ingestion.WithLogger(log))
	if err != nil {
		return nil, err
	}

	stats, err := ing.IngestDirectory(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", dir, err)
	}
	log.Info().
		Int("indexed", stats.Indexed).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("local ingestion complete")

	return engine.New(idx, tok)
}

func searchCmd() *cobra.Command {
	var (
		topN   int
		dir    string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a one-shot search and print ranked results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if topN <= 0 {
				topN = cfg.Search.DefaultTopN
			}
			query := strings.Join(args, " ")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var result models.SearchResult
			if dir != "" {
				eng, err := buildLocalEngine(ctx, dir, log)
				if err != nil {
					return err
				}
				result = eng.Search(query, topN)
			} else {
				orch, err := buildOrchestrator(cfg, log)
				if err != nil {
					return err
				}
				if result, err = orch.Search(ctx, query, topN); err != nil {
					return err
				}
			}

			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(result)
			}
			printResult(result)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topN, "limit", "n", 0, "maximum number of results")
	cmd.Flags().StringVar(&dir, "dir", "", "search local files under this directory instead of the web")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the raw JSON result")
	return cmd
}

func serveCmd() *cobra.Command {
	var indexDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP search API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			orch, err := buildOrchestrator(cfg, log)
			if err != nil {
				return err
			}

			opts := []server.Option{
				server.WithDefaultTopN(cfg.Search.DefaultTopN),
				server.WithLogger(log),
				server.WithResultCache(cache.New[models.SearchResult](
					cache.WithTTL[models.SearchResult](time.Duration(cfg.Search.CacheTTLMinutes) * time.Minute))),
			}
			if indexDir != "" {
				eng, err := buildLocalEngine(ctx, indexDir, log)
				if err != nil {
					return err
				}
				opts = append(opts, server.WithLocalEngine(eng))
			}

			srv, err := server.New(orch, opts...)
			if err != nil {
				return err
			}

			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Msg("listening")
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			log.Info().Msg("shutting down")
			return httpSrv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&indexDir, "index-dir", "", "ingest this directory at startup to enable mode=local")
	return cmd
}

// printResult renders a ranked result for the terminal, stripping the
// highlight markers used by the HTTP surface.
func printResult(result models.SearchResult) {
	fmt.Printf("%d results for %q (%d ms)\n\n", result.TotalMatches, result.Query, result.ElapsedMilliseconds)

	cleaner := strings.NewReplacer("<mark>", "", "</mark>", "")
	for i, item := range result.Items {
		marker := " "
		if item.IsScholarly {
			marker = "*"
		}
		fmt.Printf("%2d.%s %s  (%.3f)\n", i+1, marker, item.Title, item.Score)
		if item.URL != "" {
			fmt.Printf("     %s\n", item.URL)
		}
		if item.Snippet != "" {
			fmt.Printf("     %s\n", cleaner.Replace(item.Snippet))
		}
		fmt.Println()
	}
}
