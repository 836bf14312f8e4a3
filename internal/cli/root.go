package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dunamismax/pixelpost/internal/config"
	"github.com/dunamismax/pixelpost/internal/logging"
	"github.com/dunamismax/pixelpost/internal/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "0.1.0"

type globalOptions struct {
	configFile string
	logLevel   string
	logFormat  string
}

// NewRootCommand builds the pixelpost command tree.
func NewRootCommand() *cobra.Command {
	globals := &globalOptions{}
	opts := &processOptions{}

	root := &cobra.Command{
		Use:   "pixelpost [flags] <input> <output>",
		Short: "Sharpen, color-adjust, mirror and rescale an image",
		Long: `pixelpost applies sharpen, saturation, brightness/contrast and mirroring to an
image, rescales it with a bicubic filter and encodes it by the output
extension (.jpg, .jpeg, .png, .bmp, .gif). Inputs and outputs may be local
paths or s3://bucket/key.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, globals, opts, args[0], args[1])
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&globals.configFile, "config", "", "config file (default ./pixelpost.yaml or $HOME/.config/pixelpost/pixelpost.yaml)")
	pf.StringVar(&globals.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.StringVar(&globals.logFormat, "log-format", "", "log format override (console, json)")

	opts.bindFlags(root)

	root.AddCommand(newServeCommand(globals))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pixelpost v%s\n", version)
		},
	})

	return root
}

// NewServeCommand builds a standalone server command.
func NewServeCommand() *cobra.Command {
	globals := &globalOptions{}
	cmd := newServeCommand(globals)
	pf := cmd.PersistentFlags()
	pf.StringVar(&globals.configFile, "config", "", "config file")
	pf.StringVar(&globals.logLevel, "log-level", "", "log level override")
	pf.StringVar(&globals.logFormat, "log-format", "", "log format override")
	return cmd
}

// session is the state every command sets up before doing work.
type session struct {
	cfg      config.Config
	logger   *zap.Logger
	shutdown func(context.Context) error
}

func setup(ctx context.Context, globals *globalOptions) (*session, error) {
	cfg, err := config.Load(globals.configFile)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(globals.logLevel) != "" {
		cfg.Log.Level = globals.logLevel
	}
	if strings.TrimSpace(globals.logFormat) != "" {
		cfg.Log.Format = globals.logFormat
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
	}, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	return &session{cfg: cfg, logger: logger, shutdown: shutdown}, nil
}

func (r *session) close(ctx context.Context) {
	if err := r.shutdown(ctx); err != nil {
		r.logger.Warn("tracing shutdown failed", zap.Error(err))
	}
	_ = r.logger.Sync()
}
