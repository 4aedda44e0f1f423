package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/AnyUserName/sizefit/internal/manifest"
	"github.com/AnyUserName/sizefit/internal/pipeline"
	"github.com/AnyUserName/sizefit/internal/source"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newCompressCommand(opts *options) *cobra.Command {
	var (
		target  string
		out     string
		asJSON  bool
		outputs outputFlags
	)

	cmd := &cobra.Command{
		Use:   "compress <file>",
		Short: "Compress one image to fit a byte budget",
		Long: `Searches for the highest quality at which <file> fits --target and
writes that encode. Bare numbers are KiB: --target 200 means 200 KiB.

The output lands next to the source as compressed_<name>, or at -o
(a file path, or an existing directory to write into).`,
		Example: `  sizefit compress banner.png --target 200KB
  sizefit compress photo.jpg --target 500 -o out/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputs.apply(cmd, &opts.cfg.Output)
			budget, err := opts.targetBytes(target)
			if err != nil {
				return err
			}
			src, err := source.Stat(args[0])
			if err != nil {
				return err
			}

			cfg, err := opts.pipelineConfig("", budget)
			if err != nil {
				return err
			}
			p, err := pipeline.New(cfg)
			if err != nil {
				return err
			}

			outPath, err := resolveOutPath(p, src, out)
			if err != nil {
				return err
			}
			entry, err := p.CompressFile(cmd.Context(), src, outPath)
			if err != nil {
				return fmt.Errorf("compress: %w", err)
			}

			if asJSON {
				return writeJSON(cmd, entry)
			}
			printCompressResult(cmd.OutOrStdout(), entry, budget)
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "target size, e.g. 200KB, 1.5MiB, or bare KiB")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file or directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	outputs.register(cmd)
	return cmd
}

// resolveOutPath maps -o onto a concrete file path. An existing directory
// receives the default output name.
func resolveOutPath(p *pipeline.Pipeline, src source.Source, out string) (string, error) {
	if out == "" {
		return p.OutputPath(src, "")
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return p.OutputPath(src, out)
	}
	return out, nil
}

func printCompressResult(w io.Writer, e manifest.Entry, target int64) {
	o := e.Output
	status := "within budget"
	switch {
	case o.Lossless:
		status = "rewritten losslessly (already within budget)"
	case o.Copied:
		status = "copied (already within budget)"
	case !o.WithinBudget:
		status = "OVER BUDGET (quality floor reached)"
	case !o.InBand:
		status = "within budget, below tolerance band"
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Output:   %s\n", o.Path)
	fmt.Fprintf(w, "  Format:   %s", o.Format)
	if !o.Copied && !o.Lossless {
		fmt.Fprintf(w, " @ quality %d", o.Quality)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Size:     %s → %s (target %s)\n",
		humanize.IBytes(uint64(e.Source.Size)), humanize.IBytes(uint64(o.Size)), humanize.IBytes(uint64(target)))
	if o.Width > 0 {
		fmt.Fprintf(w, "  Pixels:   %dx%d", o.Width, o.Height)
		if o.Downscales > 0 {
			fmt.Fprintf(w, " (halved %d×)", o.Downscales)
		}
		fmt.Fprintln(w)
	}
	if !o.Copied {
		fmt.Fprintf(w, "  Encodes:  %d\n", o.Probes)
	}
	fmt.Fprintf(w, "  Status:   %s\n", status)
	fmt.Fprintln(w)
}
