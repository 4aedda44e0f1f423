package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/AnyUserName/sizefit/internal/manifest"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:         "stats <out_dir_or_manifest>",
		Short:       "Display statistics for a batch output directory",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := manifestPath(args[0])
			if err != nil {
				return err
			}
			m, err := manifest.ReadJSON(path)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, m.Stats)
			}
			printStats(cmd.OutOrStdout(), m)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the stats block as JSON")
	return cmd
}

// manifestPath accepts either a manifest file or the directory holding one.
func manifestPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return filepath.Join(path, manifest.FileName), nil
	}
	return path, nil
}

func printStats(w io.Writer, m *manifest.Manifest) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Manifest version: %d\n", m.Version)
	fmt.Fprintf(w, "  Generated:        %s\n", m.GeneratedAt)
	fmt.Fprintf(w, "  Run:              %s\n", m.RunID)
	fmt.Fprintf(w, "  Preset:           %s\n", m.Preset)
	fmt.Fprintf(w, "  Target:           %s\n", humanize.IBytes(uint64(m.TargetBytes)))
	fmt.Fprintf(w, "  Search:           start %d, floor %d, steps %d/%d, band %s\n",
		m.Params.InitialQuality, m.Params.MinQuality, m.Params.CoarseStep, m.Params.FineStep,
		humanize.IBytes(uint64(m.Params.ToleranceBytes)))
	if m.BuildInfo != nil {
		fmt.Fprintf(w, "  Workers:          %d\n", m.BuildInfo.Workers)
		fmt.Fprintf(w, "  Fallback:         %s\n", m.BuildInfo.Fallback)
	}
	fmt.Fprintln(w)

	s := m.Stats
	fmt.Fprintf(w, "  Files:            %d\n", s.TotalFiles)
	fmt.Fprintf(w, "  Within budget:    %d (%d in band)\n", s.WithinBudget, s.InBand)
	fmt.Fprintf(w, "  Over budget:      %d\n", s.OverBudget)
	fmt.Fprintf(w, "  Copied:           %d\n", s.Copied)
	fmt.Fprintf(w, "  Failed:           %d\n", s.Failed)
	fmt.Fprintf(w, "  Input size:       %s\n", humanize.IBytes(uint64(s.TotalInputBytes)))
	fmt.Fprintf(w, "  Output size:      %s\n", humanize.IBytes(uint64(s.TotalOutputBytes)))
	if s.TotalInputBytes > 0 {
		ratio := float64(s.TotalOutputBytes) / float64(s.TotalInputBytes) * 100
		fmt.Fprintf(w, "  Compression:      %.1f%% of original\n", ratio)
	}
	if searched := s.TotalFiles - s.Copied; searched > 0 {
		fmt.Fprintf(w, "  Encodes:          %d (%.1f per file)\n", s.TotalProbes, float64(s.TotalProbes)/float64(searched))
	}
	fmt.Fprintln(w)

	type formatStat struct {
		count      int
		in, out    int64
		qualitySum int
		// searched excludes copies and lossless rewrites, which have no quality.
		searched int
	}
	byFormat := map[string]*formatStat{}
	for _, e := range m.Files {
		fs := byFormat[e.Output.Format]
		if fs == nil {
			fs = &formatStat{}
			byFormat[e.Output.Format] = fs
		}
		fs.count++
		fs.in += e.Source.Size
		fs.out += e.Output.Size
		if !e.Output.Copied && !e.Output.Lossless {
			fs.qualitySum += e.Output.Quality
			fs.searched++
		}
	}
	formats := make([]string, 0, len(byFormat))
	for f := range byFormat {
		formats = append(formats, f)
	}
	sort.Strings(formats)

	rows := make([][]string, 0, len(formats))
	for _, f := range formats {
		fs := byFormat[f]
		rows = append(rows, []string{
			f,
			strconv.Itoa(fs.count),
			humanize.IBytes(uint64(fs.in)),
			humanize.IBytes(uint64(fs.out)),
			avgQuality(fs.qualitySum, fs.searched),
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(w, "  Output formats:")
		fmt.Fprintln(w, renderTable(w,
			[]string{"Format", "Files", "Input", "Output", "Avg quality"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
		))
		fmt.Fprintln(w)
	}

	var warnings []string
	keys := make([]string, 0, len(m.Files))
	for k := range m.Files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		o := m.Files[key].Output
		if !o.WithinBudget {
			warnings = append(warnings, fmt.Sprintf("%s: %s over the %s target at quality %d",
				key, humanize.IBytes(uint64(o.Size)), humanize.IBytes(uint64(m.TargetBytes)), o.Quality))
		}
		if o.Anomalies > 0 {
			warnings = append(warnings, fmt.Sprintf("%s: encoder size not monotonic in quality (%d anomalies)", key, o.Anomalies))
		}
	}
	if len(warnings) > 0 {
		fmt.Fprintf(w, "  Warnings (%d):\n", len(warnings))
		for _, msg := range warnings {
			fmt.Fprintf(w, "    ⚠ %s\n", msg)
		}
		fmt.Fprintln(w)
	}
}

func avgQuality(sum, n int) string {
	if n == 0 {
		return "-"
	}
	return strconv.Itoa(sum / n)
}
