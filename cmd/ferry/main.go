// Command ferry copies batches of files between local disk and remote
// object stores.
//
// The transfer list is a JSON array read from a file argument or stdin:
//
//	[{"from": "/data/a.txt", "to": "s3://bucket/a.txt"},
//	 {"from": "/data/dir", "into": "s3://bucket/backup"}]
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ferrylabs/ferry"
	"github.com/ferrylabs/ferry/internal/config"
	"github.com/ferrylabs/ferry/progress"
	"github.com/ferrylabs/ferry/transfer"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ferry: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile        string
		maxTransfers   int
		partSize       string
		billingProject string
		verbose        bool
	)

	rootCmd := &cobra.Command{
		Use:   "ferry [transfer-list]",
		Short: "Copy batches of files between storage systems",
		Long: `Ferry copies batches of files between local disk and remote object
stores (s3, minio, obs). It reads a JSON transfer list from the given
file, or from stdin when the argument is "-" or absent, runs every
transfer concurrently under a global limit, and prints a summary.

The exit code is non-zero when any transfer failed.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-simultaneous-transfers") {
				cfg.MaxSimultaneousTransfers = maxTransfers
			}
			if cmd.Flags().Changed("billing-project") {
				cfg.BillingProject = billingProject
			}

			partBytes := cfg.PartSizeBytes()
			if cmd.Flags().Changed("part-size") {
				size, perr := humanize.ParseBytes(partSize)
				if perr != nil {
					return fmt.Errorf("invalid part size %q: %w", partSize, perr)
				}
				partBytes = int64(size)
			}

			log := newLogger(cfg.LogLevel, verbose)
			transfers, err := readTransferList(cmd, args)
			if err != nil {
				return err
			}
			return run(cmd, cfg, log, transfers, partBytes, verbose)
		},
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default: ./ferry.yaml, ~/.ferry/ferry.yaml)")
	rootCmd.Flags().IntVar(&maxTransfers, "max-simultaneous-transfers", 75, "cap on concurrently active copy tasks")
	rootCmd.Flags().StringVar(&partSize, "part-size", "128MiB", "multipart split threshold, e.g. 64MiB")
	rootCmd.Flags().StringVar(&billingProject, "billing-project", "", "requester-pays project identifier")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log per-transfer events and periodic progress")

	return rootCmd
}

func newLogger(level string, verbose bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	if verbose && lvl > zerolog.DebugLevel {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(lvl).With().Timestamp().Logger()
}

// readTransferList loads the JSON transfer list from the file argument, or
// from stdin when the argument is "-" or absent.
func readTransferList(cmd *cobra.Command, args []string) ([]transfer.Transfer, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, fmt.Errorf("read transfer list: %w", err)
	}
	return transfer.ParseList(data)
}

func run(cmd *cobra.Command, cfg *config.Config, log zerolog.Logger, transfers []transfer.Transfer, partSize int64, verbose bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	totals := &progress.Totals{}
	c, err := ferry.New(
		ferry.WithMaxSimultaneousTransfers(cfg.MaxSimultaneousTransfers),
		ferry.WithPartSize(partSize),
		ferry.WithBillingProject(cfg.BillingProject),
		ferry.WithProgress(totals),
		ferry.WithLogger(log),
		ferry.WithBackendSettings(ferry.BackendSettings{
			S3: ferry.S3Settings{
				Region:    cfg.S3.Region,
				Endpoint:  cfg.S3.Endpoint,
				AccessKey: cfg.S3.AccessKey,
				SecretKey: cfg.S3.SecretKey,
			},
			Minio: ferry.MinioSettings{
				Endpoint:  cfg.Minio.Endpoint,
				AccessKey: cfg.Minio.AccessKey,
				SecretKey: cfg.Minio.SecretKey,
				UseSSL:    cfg.Minio.UseSSL,
			},
			OBS: ferry.OBSSettings{
				Endpoint:  cfg.OBS.Endpoint,
				AccessKey: cfg.OBS.AccessKey,
				SecretKey: cfg.OBS.SecretKey,
			},
		}),
	)
	if err != nil {
		return err
	}
	defer c.Close()

	if verbose {
		stopProgress := logProgress(log, totals)
		defer stopProgress()
	}

	report := c.Copy(ctx, transfers)
	fmt.Fprint(cmd.OutOrStdout(), report.Summarize())
	if report.Status() == transfer.StatusPartialFailure {
		return fmt.Errorf("%d of %d transfers failed", report.Failures(), len(report.Outcomes()))
	}
	return nil
}

// logProgress periodically logs cumulative progress until the returned stop
// function is called.
func logProgress(log zerolog.Logger, totals *progress.Totals) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				renderProgress(log, totals)
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

func renderProgress(log zerolog.Logger, totals *progress.Totals) {
	snap := totals.Snapshot()
	log.Info().
		Int64("files", snap.Files).
		Str("bytes", humanize.IBytes(uint64(snap.Bytes))).
		Msg("progress")
}
