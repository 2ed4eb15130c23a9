package commands

import (
	"os"
	"time"

	"forkmap-backend/lib/serviceutil"
	"forkmap-backend/lib/telemetry"
	"forkmap-backend/services/crawler/pipeline"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	runFull        *bool
	runConcurrency *int
	runRateLimit   *int
)

func init() {
	runFull = runCmd.Flags().Bool("full", false, "Reprocess every url, ignoring checkpoints.")
	runConcurrency = runCmd.Flags().Int("concurrency", 0, "Number of concurrent workers (overrides config).")
	runRateLimit = runCmd.Flags().Int("rate-limit", 0, "Minimum milliseconds between requests to the source (overrides config).")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--full] [--concurrency N] [--rate-limit MS]",
	Short: "Crawls the review blog and upserts restaurant records.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if *runConcurrency > 0 {
			cfg.Concurrency = *runConcurrency
		}
		if *runRateLimit > 0 {
			cfg.Source.RateLimitMs = *runRateLimit
		}

		telemetry.InstrumentPerfStats(cmd.Context())

		st, database := openStore(cfg)
		defer database.Close()

		deps := pipeline.Deps{
			Fetcher:  newFetchClient(cfg),
			Resolver: newResolver(cfg, st),
			Store:    st,
			Vocab:    newVocabulary(cfg),
		}

		t1 := time.Now()
		summary, err := pipeline.Run(cmd.Context(), deps, pipeline.Options{
			Full:        *runFull,
			Concurrency: cfg.Concurrency,
		})
		if err != nil {
			serviceutil.Fatal("crawl failed", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Created", "Updated", "Unchanged", "Skipped", "Failed", "Seconds"})
		t.AppendRow(table.Row{
			summary.Created,
			summary.Updated,
			summary.Unchanged,
			summary.Skipped,
			summary.Failed,
			int(time.Since(t1).Seconds()),
		})
		t.Render()

		if len(summary.Failures) > 0 {
			f := table.NewWriter()
			f.SetOutputMirror(os.Stdout)
			f.AppendHeader(table.Row{"Url", "Stage", "Error"})
			for _, failure := range summary.Failures {
				f.AppendRow(table.Row{failure.URL, failure.Stage, failure.Err.Error()})
			}
			f.Render()
		}

		if len(summary.UnknownTags) > 0 {
			u := table.NewWriter()
			u.SetOutputMirror(os.Stdout)
			u.AppendHeader(table.Row{"Unknown cuisine tag"})
			for _, tag := range summary.UnknownTags {
				u.AppendRow(table.Row{tag})
			}
			u.Render()
		}
	},
}
