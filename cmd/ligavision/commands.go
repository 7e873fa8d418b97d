// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Query-farm/ligavision-go/benchmark"
	"github.com/Query-farm/ligavision-go/conformance"
	"github.com/Query-farm/ligavision-go/session"
)

func newRoundtripCmd(a *app) *cobra.Command {
	var (
		dir     string
		formats []string
		keep    bool
	)
	cmd := &cobra.Command{
		Use:   "roundtrip",
		Short: "Write and re-read every vision type, failing on any mismatch",
		Example: `  ligavision roundtrip
  ligavision roundtrip --format parquet --dir /tmp/liga --keep
  ligavision roundtrip --dir s3://bucket/liga --s3-endpoint localhost:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fs, err := parseFormats(formats)
			if err != nil {
				return err
			}
			if dir == "" {
				if dir, err = os.MkdirTemp("", "ligavision-roundtrip-"); err != nil {
					return err
				}
				if !keep {
					defer os.RemoveAll(dir)
				}
			}

			failed := 0
			out := cmd.OutOrStdout()
			for _, format := range fs {
				for _, r := range conformance.Run(cmd.Context(), a.sess, joinDir(dir, string(format)), format) {
					status := "ok  "
					if r.Err != nil {
						status = "FAIL"
						failed++
					}
					fmt.Fprintf(out, "%s %-16s %-10s %s\n", status, r.Case, r.Format, r.Duration.Round(time.Microsecond))
					if r.Err != nil {
						fmt.Fprintf(out, "     %v\n", r.Err)
					}
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d round-trip case(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "dataset root (default a temporary directory)")
	cmd.Flags().StringSliceVar(&formats, "format", []string{"all"}, "formats to check, or all")
	cmd.Flags().BoolVar(&keep, "keep", false, "keep the temporary dataset root")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var (
		format string
		rows   int
		schema bool
	)
	cmd := &cobra.Command{
		Use:   "show PATH",
		Short: "Print the first rows of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := session.ParseFormat(format)
			if err != nil {
				return err
			}
			fr, err := a.sess.Read(cmd.Context(), args[0], f)
			if err != nil {
				return err
			}
			defer fr.Release()

			out := cmd.OutOrStdout()
			if schema {
				if err := fr.PrintSchema(out); err != nil {
					return err
				}
			}
			return fr.Show(out, rows)
		},
	}
	cmd.Flags().StringVar(&format, "format", string(session.FormatParquet), "dataset format")
	cmd.Flags().IntVarP(&rows, "rows", "n", 20, "number of rows to show")
	cmd.Flags().BoolVar(&schema, "schema", false, "print the schema first")
	return cmd
}

func newBenchCmd(a *app) *cobra.Command {
	var opts benchmark.Options
	var formats []string
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time round-trips of generated detection frames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if opts.Formats, err = parseFormats(formats); err != nil {
				return err
			}
			if opts.Dir == "" {
				if opts.Dir, err = os.MkdirTemp("", "ligavision-bench-"); err != nil {
					return err
				}
				defer os.RemoveAll(opts.Dir)
			}
			results, err := benchmark.Run(cmd.Context(), a.sess, opts)
			for _, r := range results {
				fmt.Fprintln(cmd.OutOrStdout(), r)
			}
			return err
		},
	}
	cmd.Flags().IntVar(&opts.Rows, "rows", 10_000, "rows to generate")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 4096, "rows per record batch")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "random seed")
	cmd.Flags().StringVar(&opts.Dir, "dir", "", "dataset root (default a temporary directory)")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "compare reloaded rows with the originals")
	cmd.Flags().StringSliceVar(&formats, "format", []string{"all"}, "formats to run, or all")
	return cmd
}

func newImageCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "image URI",
		Short: "Fetch an image by URI and report its type and size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := a.sess.ReadImage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %d bytes\n", args[0], img.MimeType(), len(img.Data))
			if output != "" {
				return os.WriteFile(output, img.Data, 0o644)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the image bytes to this file")
	return cmd
}

func joinDir(root, name string) string {
	if strings.Contains(root, "://") {
		return strings.TrimRight(root, "/") + "/" + name
	}
	return filepath.Join(root, name)
}
