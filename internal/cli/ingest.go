package cli

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	ingestJSON    bool
	ingestRebuild bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <repository>",
	Short: "Ingest a repository into its vector collection",
	Long: `Extract, chunk and embed every text file of a repository and store the
result in the collection named after it (owner_repo_collection for GitHub,
<directory>_collection for a local path). Re-ingesting replaces documents
in place. --rebuild drops every collection of the bolt store first, which
is needed after changing the embedding provider, model or dimension.

Examples:
  reporag ingest https://github.com/owner/repo
  reporag ingest github.com/owner/repo
  reporag ingest ./path/to/project
  reporag ingest --rebuild ./path/to/project`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the result as JSON")
	ingestCmd.Flags().BoolVar(&ingestRebuild, "rebuild", false, "drop every stored collection before ingesting (bolt store)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	var progress func(done, total int, path string)
	if !ingestJSON {
		progress = newEmbedProgress()
	}

	p, err := buildPipeline(cfg, GetRootDir(), buildOptions{Progress: progress, Rebuild: ingestRebuild}, mtr, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	fmt.Fprintf(cmd.ErrOrStderr(), "Ingesting %s...\n", args[0])
	start := time.Now()
	result, err := p.service.Ingest(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if ingestJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(out, "\nIngestion complete in %s:\n", formatDuration(time.Since(start)))
	fmt.Fprintf(out, "  Collection:      %s\n", result.Collection)
	fmt.Fprintf(out, "  Files extracted: %d\n", result.FilesExtracted)
	fmt.Fprintf(out, "  Chunks created:  %d\n", result.ChunksCreated)
	fmt.Fprintf(out, "  Documents:       %d\n", result.DocumentsUpserted)
	if result.SnapshotPath != "" {
		fmt.Fprintf(out, "  Snapshot:        %s\n", result.SnapshotPath)
	}

	if len(result.Skipped) > 0 {
		fmt.Fprintf(out, "\nSkipped %d chunks:\n", len(result.Skipped))
		for _, f := range result.Skipped {
			fmt.Fprintf(out, "  - %s#%d: %s\n", f.Path, f.Index, f.Reason)
		}
	}
	return nil
}

// newEmbedProgress returns a progress callback drawing a bar once the total
// chunk count is known.
func newEmbedProgress() func(done, total int, path string) {
	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time

	return func(done, total int, path string) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		bar.Set(done)

		elapsed := time.Since(startTime)
		rate := float64(done) / elapsed.Seconds()
		if rate > 0 {
			eta := time.Duration(float64(total-done)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
