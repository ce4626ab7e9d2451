package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/oppscan/oppscan/internal/config"
	"github.com/oppscan/oppscan/internal/database"
	"github.com/oppscan/oppscan/internal/ingest"
	"github.com/oppscan/oppscan/internal/pipeline"
	"github.com/oppscan/oppscan/internal/report"
	"github.com/oppscan/oppscan/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "oppscan",
	Short:   "Scan community posts for business opportunities",
	Long:    "oppscan ingests community posts, filters them through a quality gate, deduplicates concepts, and enriches the survivors into scored business opportunities.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("oppscan", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/oppscan/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure feeds, gate thresholds, and the LLM provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Posts:")
		fmt.Printf("  Ingested: %d\n", stats.TotalPosts)
		fmt.Println("\nConcepts:")
		fmt.Printf("  Total: %d\n", stats.TotalConcepts)
		fmt.Printf("  Enriched: %d\n", stats.EnrichedConcepts)
		fmt.Println("\nOpportunities:")
		fmt.Printf("  Records: %d\n", stats.TotalOpportunities)
		fmt.Printf("  Copies: %d\n", stats.CopiedRows)
		fmt.Printf("\nRuns: %d\n", stats.Runs)

		if run, err := db.GetLatestRun(); err == nil && run != nil {
			fmt.Printf("\nLatest run %s:\n", run.RunID)
			fmt.Printf("  %d posts, %d enriched, %d duplicates, %d rejected, %d failed, %d skipped\n",
				run.Total, run.Enriched, run.Duplicates, run.Rejected, run.Failed, run.Skipped)
			fmt.Printf("  Cost: $%.4f", run.TotalCost)
			if run.CostCeiling {
				fmt.Print(" (ceiling reached)")
			}
			fmt.Println()
		}
		return nil
	},
}

// --- ingest command ---

var ingestDaysBack int

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest posts from feeds and exports",
}

var ingestFeedsCmd = &cobra.Command{
	Use:   "feeds",
	Short: "Collect posts from configured RSS feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Println("Collecting posts from feeds...")
		ing := ingest.NewIngester(cfg, db, ingestDaysBack)
		result := ing.CollectFeeds()

		printIngestResult(result)
		return nil
	},
}

var ingestImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import posts from an NDJSON export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("Importing posts from %s...\n", args[0])
		ing := ingest.NewIngester(cfg, db, ingestDaysBack)
		result, err := ing.ImportFile(args[0])
		if err != nil {
			return err
		}

		printIngestResult(result)
		if result.Skipped > 0 {
			fmt.Printf("  Malformed lines skipped: %d\n", result.Skipped)
		}
		return nil
	},
}

var ingestExpandCmd = &cobra.Command{
	Use:   "expand",
	Short: "Fetch page text for link posts without bodies",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Println("Expanding link posts...")
		e := ingest.NewLinkExpander(db, 15*time.Second)
		result := e.ExpandPending()

		fmt.Printf("\n  Expanded: %d\n", result.Expanded)
		fmt.Printf("  Failed: %d\n", result.Failed)
		return nil
	},
}

func init() {
	ingestCmd.PersistentFlags().IntVar(&ingestDaysBack, "days-back", 7, "Feed lookback window (days)")
	ingestCmd.AddCommand(ingestFeedsCmd)
	ingestCmd.AddCommand(ingestImportCmd)
	ingestCmd.AddCommand(ingestExpandCmd)
}

func printIngestResult(r *ingest.Result) {
	fmt.Println("\nIngestion complete:")
	fmt.Printf("  Total found: %d\n", r.TotalFound)
	fmt.Printf("  New posts: %d\n", r.NewPosts)
	fmt.Printf("  Duplicates skipped: %d\n", r.Duplicates)

	if len(r.Sources) > 0 {
		fmt.Println("\nPosts by community:")
		type kv struct {
			key string
			val int
		}
		var sorted []kv
		for k, v := range r.Sources {
			sorted = append(sorted, kv{k, v})
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].val > sorted[j].val })
		for _, s := range sorted {
			fmt.Printf("  %s: %d\n", s.key, s.val)
		}
	}
}

// --- run command ---

var runLimit int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline: gate -> dedup -> enrich -> persist",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		posts, err := db.GetAllPosts()
		if err != nil {
			return fmt.Errorf("loading posts: %w", err)
		}
		if len(posts) == 0 {
			fmt.Println("No posts to process. Run 'oppscan ingest' first.")
			return nil
		}
		if runLimit > 0 && len(posts) > runLimit {
			posts = posts[:runLimit]
		}

		fmt.Printf("Processing %d posts with %d workers...\n", len(posts), cfg.Enrichment.Workers)

		pipe := pipeline.New(cfg, db)
		result, err := pipe.Run(context.Background(), posts)
		if err != nil {
			return err
		}

		fmt.Printf("\nRun %s complete:\n", result.RunID)
		fmt.Printf("  Enriched: %d\n", result.Enriched)
		fmt.Printf("  Duplicates copied: %d\n", result.Duplicates)
		fmt.Printf("  Rejected by gate: %d\n", result.Rejected)
		fmt.Printf("  Failed: %d\n", result.Failed)
		fmt.Printf("  Skipped (cost ceiling): %d\n", result.Skipped)
		fmt.Printf("  Cost: $%.4f\n", result.TotalCost)
		if result.AvgScore > 0 {
			fmt.Printf("  Average score: %.1f\n", result.AvgScore)
		}
		if result.CeilingHit {
			fmt.Println("\nCost ceiling reached; re-run later to process remaining posts.")
		}

		fmt.Println("\nRun 'oppscan report' or 'oppscan serve' to view results.")
		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "Process at most this many posts (0 = all)")
}

// --- report command ---

var (
	reportLimit int
	reportOut   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a markdown digest of top opportunities",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		digest, err := report.NewReporter(db).GenerateDigest(reportLimit)
		if err != nil {
			return err
		}

		if reportOut == "" {
			fmt.Print(digest)
			return nil
		}

		if err := os.WriteFile(reportOut, []byte(digest), 0o644); err != nil {
			return fmt.Errorf("writing digest: %w", err)
		}
		fmt.Printf("Wrote digest: %s\n", reportOut)
		return nil
	},
}

func init() {
	reportCmd.Flags().IntVar(&reportLimit, "limit", 20, "Number of opportunities to include")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "Write to file instead of stdout")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local dashboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "oppscan.db")
	return database.Open(dbPath)
}
