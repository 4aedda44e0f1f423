package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/AnyUserName/sizefit/internal/manifest"
	"github.com/AnyUserName/sizefit/internal/pipeline"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newBatchCommand(opts *options) *cobra.Command {
	var (
		target  string
		outDir  string
		workers int
		asJSON  bool
		outputs outputFlags
	)

	cmd := &cobra.Command{
		Use:   "batch <input_dir>",
		Short: "Compress every image under a directory to fit a byte budget",
		Long: `Scans <input_dir> for images (png, jpg, jpeg, webp, gif, bmp, tiff),
runs one size search per file in parallel, and writes the results to
the output directory, mirroring the input tree. A manifest recording
quality, size and encode count per file is written alongside.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			outputs.apply(cmd, &opts.cfg.Output)
			if cmd.Flags().Changed("workers") {
				opts.cfg.Output.Workers = workers
			}
			budget, err := opts.targetBytes(target)
			if err != nil {
				return err
			}

			cfg, err := opts.pipelineConfig(outDir, budget)
			if err != nil {
				return err
			}
			p, err := pipeline.New(cfg)
			if err != nil {
				return err
			}

			m, err := p.Run(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("batch: %w", err)
			}

			manifestPath := filepath.Join(outDir, manifest.FileName)
			if err := manifest.WriteJSON(m, manifestPath); err != nil {
				return fmt.Errorf("write manifest: %w", err)
			}
			opts.log.Debug("manifest written", "path", manifestPath)

			if asJSON {
				return writeJSON(cmd, m)
			}
			printBatchReport(cmd.OutOrStdout(), m, time.Since(start))
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "target size per file, e.g. 1MB, 300KiB, or bare KiB")
	cmd.Flags().StringVarP(&outDir, "out", "o", "./sizefit_out", "output directory")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel workers (0 = NumCPU)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the manifest as JSON")
	outputs.register(cmd)
	return cmd
}

func printBatchReport(w io.Writer, m *manifest.Manifest, elapsed time.Duration) {
	s := m.Stats
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Files:       %d (%d within budget, %d over, %d copied)\n",
		s.TotalFiles, s.WithinBudget, s.OverBudget, s.Copied)
	if s.Failed > 0 {
		fmt.Fprintf(w, "  Failed:      %d\n", s.Failed)
	}
	fmt.Fprintf(w, "  Target:      %s per file\n", humanize.IBytes(uint64(m.TargetBytes)))
	fmt.Fprintf(w, "  Input size:  %s\n", humanize.IBytes(uint64(s.TotalInputBytes)))
	fmt.Fprintf(w, "  Output size: %s\n", humanize.IBytes(uint64(s.TotalOutputBytes)))
	fmt.Fprintf(w, "  Encodes:     %d\n", s.TotalProbes)
	fmt.Fprintf(w, "  Time:        %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintln(w)

	if len(m.Files) == 0 {
		return
	}
	keys := heaviest(m, 10)
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		e := m.Files[key]
		rows = append(rows, []string{
			truncKey(key, 40),
			humanize.IBytes(uint64(e.Source.Size)),
			humanize.IBytes(uint64(e.Output.Size)),
			qualityCell(e.Output),
			strconv.Itoa(e.Output.Probes),
			statusCell(e.Output),
		})
	}
	fmt.Fprintf(w, "  Top %d heaviest:\n", len(keys))
	fmt.Fprintln(w, renderTable(w,
		[]string{"File", "Input", "Output", "Quality", "Encodes", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
	fmt.Fprintln(w)
}

// heaviest returns up to n keys ordered by source size, largest first.
func heaviest(m *manifest.Manifest, n int) []string {
	keys := make([]string, 0, len(m.Files))
	for k := range m.Files {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := m.Files[keys[i]].Source.Size, m.Files[keys[j]].Source.Size
		if a != b {
			return a > b
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func qualityCell(o manifest.OutputInfo) string {
	if o.Copied || o.Lossless {
		return "-"
	}
	return strconv.Itoa(o.Quality)
}

func statusCell(o manifest.OutputInfo) string {
	switch {
	case o.Lossless:
		return "lossless"
	case o.Copied:
		return "copied"
	case !o.WithinBudget:
		return "over"
	case o.Downscales > 0:
		return fmt.Sprintf("ok (½^%d)", o.Downscales)
	case !o.InBand:
		return "under band"
	}
	return "ok"
}

func truncKey(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return "..." + s[len(s)-limit+3:]
}
