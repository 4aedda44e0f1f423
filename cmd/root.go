package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/AnyUserName/sizefit/internal/config"
	"github.com/AnyUserName/sizefit/internal/logging"
	"github.com/AnyUserName/sizefit/internal/pipeline"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// options carries persistent flags and the state built from them.
type options struct {
	verbose    bool
	configPath string
	preset     string
	logFile    string

	cfg    config.Config
	log    *slog.Logger
	closer io.Closer
}

// Execute runs the CLI. SIGINT and SIGTERM cancel in-flight encodes.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := &options{}
	defer opts.close()
	return newRootCommand(opts).ExecuteContext(ctx)
}

func newRootCommand(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "sizefit",
		Short: "Compress images to fit a byte budget",
		Long: `sizefit re-encodes images at the highest quality whose output still
fits a target size. Each search descends from the initial quality in
coarse steps, refines by bisection until the size lands within a
tolerance band just under the target, and writes only the final encode.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfig(cmd) {
				return nil
			}
			return opts.setup(cmd)
		},
	}

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log every encode")
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ~/.config/sizefit/config.toml)")
	root.PersistentFlags().StringVarP(&opts.preset, "preset", "p", "", "search preset (overrides config)")
	root.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "also write JSON logs to this rotating file")
	root.SetVersionTemplate(fmt.Sprintf(
		"sizefit %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))

	root.AddCommand(
		newCompressCommand(opts),
		newBatchCommand(opts),
		newStatsCommand(),
		newValidateCommand(),
		newPresetsCommand(),
	)
	return root
}

func (o *options) setup(cmd *cobra.Command) error {
	path := strings.TrimSpace(o.configPath)
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path, o.preset)
	if err != nil {
		return err
	}
	if o.logFile != "" {
		cfg.Log.File = o.logFile
	}

	logger, closer, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Verbose:    o.verbose,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Console:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	o.cfg, o.log, o.closer = cfg, logger, closer
	if path != "" {
		logger.Debug("config loaded", "path", path, "preset", cfg.Preset)
	}
	return nil
}

func (o *options) close() {
	if o.closer != nil {
		_ = o.closer.Close()
	}
}

// targetBytes resolves the budget from the flag, falling back to the
// config file.
func (o *options) targetBytes(flag string) (int64, error) {
	s := strings.TrimSpace(flag)
	if s == "" {
		s = o.cfg.Target
	}
	if s == "" {
		return 0, fmt.Errorf("no target size: pass --target or set target in the config file")
	}
	return config.ParseSize(s)
}

// outputFlags are the [output] overrides shared by compress and batch.
type outputFlags struct {
	format          string
	prefix          string
	skipUnderBudget bool
	keepLossless    bool
	maxDownscales   int
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "lossy format for sources without a quality knob (jpeg, webp, avif)")
	cmd.Flags().StringVar(&f.prefix, "prefix", "", "output file name prefix")
	cmd.Flags().BoolVar(&f.skipUnderBudget, "skip-under-budget", false, "copy sources that already fit")
	cmd.Flags().BoolVar(&f.keepLossless, "keep-lossless", false, "rewrite PNG, GIF, TIFF and BMP sources that already fit in their own format")
	cmd.Flags().IntVar(&f.maxDownscales, "max-downscales", 0, "halve dimensions up to N times when the quality floor misses")
}

// apply overlays the flags the user actually set onto the config.
func (f *outputFlags) apply(cmd *cobra.Command, out *config.Output) {
	if cmd.Flags().Changed("format") {
		out.Fallback = f.format
	}
	if cmd.Flags().Changed("prefix") {
		out.Prefix = f.prefix
	}
	if cmd.Flags().Changed("skip-under-budget") {
		out.SkipUnderBudget = f.skipUnderBudget
	}
	if cmd.Flags().Changed("keep-lossless") {
		out.KeepLossless = f.keepLossless
	}
	if cmd.Flags().Changed("max-downscales") {
		out.MaxDownscales = f.maxDownscales
	}
}

func (o *options) pipelineConfig(outputDir string, target int64) (pipeline.Config, error) {
	if err := o.cfg.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	bg, err := config.ParseColor(o.cfg.Output.Background)
	if err != nil {
		return pipeline.Config{}, err
	}
	out := o.cfg.Output
	return pipeline.Config{
		OutputDir:       outputDir,
		Target:          target,
		Params:          o.cfg.Search,
		Preset:          o.cfg.Preset,
		Fallback:        out.Fallback,
		Prefix:          out.Prefix,
		Workers:         out.Workers,
		SkipUnderBudget: out.SkipUnderBudget,
		KeepLossless:    out.KeepLossless,
		MaxDownscales:   out.MaxDownscales,
		Background:      bg,
		Logger:          o.log,
	}, nil
}

func skipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
