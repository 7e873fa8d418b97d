// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Query-farm/ligavision-go/session"
)

// Version is set at build time.
var Version = "0.1.0"

// app carries state shared by the subcommands.
type app struct {
	configFile string
	cfg        cliConfig
	logger     *slog.Logger
	sess       *session.Session
	shutdown   func(context.Context) error
	stderr     io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ligavision",
		Short: "Round-trip, inspect and benchmark datasets of vision types",
		Long: `ligavision persists frames of vision types (boxes, points, masks,
images, videos, segments) as columnar datasets.

Configuration is read from flags, LIGAVISION_* environment variables and an
optional ligavision.yaml in the working directory or ~/.config/ligavision.`,
		Version:       Version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.shutdown == nil {
				return nil
			}
			return a.shutdown(cmd.Context())
		},
	}

	d := session.DefaultConfig()
	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default ./ligavision.yaml)")
	pf.String("compression", d.Compression, "parquet compression: snappy, zstd, gzip or none")
	pf.Int("rows-per-part", d.RowsPerPart, "maximum rows per part file (0 = one part per batch)")
	pf.Int("parallelism", d.Parallelism, "concurrent part reads and writes")
	pf.Duration("http-timeout", d.HTTPTimeout, "timeout for fetching http(s) images")
	pf.String("s3-endpoint", "", "S3-compatible endpoint for s3:// paths")
	pf.String("s3-access-key", "", "S3 access key")
	pf.String("s3-secret-key", "", "S3 secret key")
	pf.String("s3-region", "", "S3 region")
	pf.Bool("s3-use-ssl", true, "use TLS for the S3 endpoint")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.Bool("trace", false, "export OpenTelemetry spans and metrics to stderr")

	root.AddCommand(newRoundtripCmd(a), newShowCmd(a), newBenchCmd(a), newImageCmd(a))
	return root
}

// setup loads configuration and builds the logger and session.
func (a *app) setup(cmd *cobra.Command) error {
	a.stderr = cmd.ErrOrStderr()
	v, err := newViper(a.configFile)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	if a.cfg, err = loadConfig(v); err != nil {
		return err
	}

	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: a.cfg.LogLevel}))
	slog.SetDefault(a.logger)

	if a.sess, err = session.New(a.cfg.Session, session.WithLogger(a.logger)); err != nil {
		return err
	}
	if a.cfg.Trace {
		a.shutdown, err = setupTelemetry(a.sess, a.stderr)
		if err != nil {
			return err
		}
	}
	return nil
}

func parseFormats(names []string) ([]session.Format, error) {
	if len(names) == 0 || (len(names) == 1 && names[0] == "all") {
		return session.Formats(), nil
	}
	formats := make([]session.Format, 0, len(names))
	for _, name := range names {
		f, err := session.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, nil
}
