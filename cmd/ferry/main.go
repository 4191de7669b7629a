package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/calebhaye/ferry/internal/config"
	"github.com/calebhaye/ferry/internal/engine"
	"github.com/calebhaye/ferry/internal/filter"
	"github.com/calebhaye/ferry/internal/progress"
	"github.com/calebhaye/ferry/internal/storage"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// rootFlags are shared by every subcommand.
type rootFlags struct {
	workers    int
	bwLimitStr string
	includeStr string
	excludeStr string
	sshKeyFile string
	sshPort    int
	verbose    bool
	quiet      bool
	dryRun     bool
	noProgress bool
	noTimes    bool
}

func run() int {
	var flags rootFlags
	log := zerolog.Nop()

	cfg, cfgErr := config.Load()

	rootCmd := &cobra.Command{
		Use:           "ferry",
		Short:         "Parallel file transfer between local and SFTP trees",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			applyConfigDefaults(cmd.Flags(), cfg.Defaults, &flags)
			log = newLogger(flags.verbose, flags.quiet)
			if cfgErr != nil {
				log.Warn().Err(cfgErr).Msg("config file ignored")
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.IntVarP(&flags.workers, "workers", "w", 0, "worker goroutines (default: number of CPUs)")
	pf.StringVar(&flags.bwLimitStr, "bwlimit", "", "bandwidth limit, e.g. 25MiB (per second)")
	pf.StringVar(&flags.includeStr, "include", "", "only process paths matching this regex")
	pf.StringVar(&flags.excludeStr, "exclude", "", "skip paths matching this regex")
	pf.StringVar(&flags.sshKeyFile, "ssh-key", "", "SSH private key for SFTP endpoints")
	pf.IntVar(&flags.sshPort, "ssh-port", 22, "SSH port for SFTP endpoints")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")
	pf.BoolVarP(&flags.quiet, "quiet", "q", false, "errors only")
	pf.BoolVarP(&flags.dryRun, "dry-run", "n", false, "log actions without performing them")
	pf.BoolVar(&flags.noProgress, "no-progress", false, "disable the progress bar")
	pf.BoolVar(&flags.noTimes, "no-times", false, "do not preserve modification times")

	rootCmd.AddCommand(
		newCopyCmd(&flags, &log),
		newDeleteCmd(&flags, &log),
		newSyncCmd(&flags, &log),
		newVerifyCmd(&flags, &log),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted")
			return 130
		}
		log.Error().Err(err).Msg("ferry failed")
		return 1
	}
	return 0
}

// applyConfigDefaults fills flags the user did not set from the config
// file. Explicit CLI values always win.
func applyConfigDefaults(f *pflag.FlagSet, d config.DefaultsConfig, flags *rootFlags) {
	if !f.Changed("workers") && d.Workers != nil {
		flags.workers = *d.Workers
	}
	if !f.Changed("bwlimit") && d.BWLimit != nil {
		flags.bwLimitStr = *d.BWLimit
	}
	if !f.Changed("no-progress") && d.NoProgress != nil {
		flags.noProgress = *d.NoProgress
	}
	if !f.Changed("no-times") && d.PreserveTimes != nil {
		flags.noTimes = !*d.PreserveTimes
	}
}

func newLogger(verbose, quiet bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	} else if quiet {
		level = zerolog.ErrorLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// endpoint resolves a CLI argument to a backend plus the path inside it.
// The backend must be closed by the caller when non-nil.
type endpoint struct {
	backend storage.Backend
	path    string
	closer  interface{ Close() error }
}

func (e endpoint) close() {
	if e.closer != nil {
		_ = e.closer.Close()
	}
}

func resolveEndpoint(arg string, flags *rootFlags) (endpoint, error) {
	loc, err := storage.ParseLocation(arg)
	if err != nil {
		return endpoint{}, err
	}
	if !loc.IsRemote() {
		return endpoint{backend: storage.NewLocal(), path: loc.Path}, nil
	}
	client, err := storage.DialSFTP(loc.Host, loc.User, storage.SSHOpts{
		Port:    flags.sshPort,
		KeyFile: flags.sshKeyFile,
	})
	if err != nil {
		return endpoint{}, fmt.Errorf("connect %s: %w", loc, err)
	}
	return endpoint{backend: client, path: loc.Path, closer: client}, nil
}

func buildFilter(flags *rootFlags) (*filter.Chain, error) {
	var include, exclude *regexp.Regexp
	var err error
	if flags.includeStr != "" {
		if include, err = regexp.Compile(flags.includeStr); err != nil {
			return nil, fmt.Errorf("invalid --include: %w", err)
		}
	}
	if flags.excludeStr != "" {
		if exclude, err = regexp.Compile(flags.excludeStr); err != nil {
			return nil, fmt.Errorf("invalid --exclude: %w", err)
		}
	}
	return filter.New(include, exclude), nil
}

func buildReporter(flags *rootFlags, unit progress.Unit) progress.Reporter {
	if flags.noProgress || flags.quiet {
		return progress.Nop{}
	}
	return progress.NewBar(os.Stderr, unit)
}

func newCopyCmd(flags *rootFlags, log *zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "copy <source> <destination>",
		Short: "Recursively copy a tree, unconditionally overwriting the destination",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := buildFilter(flags)
			if err != nil {
				return err
			}
			bwLimit, err := config.ParseBWLimit(flags.bwLimitStr)
			if err != nil {
				return err
			}
			src, err := resolveEndpoint(args[0], flags)
			if err != nil {
				return err
			}
			defer src.close()
			dst, err := resolveEndpoint(args[1], flags)
			if err != nil {
				return err
			}
			defer dst.close()

			return engine.Copy(cmd.Context(), src.backend, src.path, dst.backend, dst.path, engine.CopyOptions{
				Log:           *log,
				Progress:      buildReporter(flags, progress.Bytes),
				Filter:        chain,
				Workers:       flags.workers,
				BWLimit:       bwLimit,
				DryRun:        flags.dryRun,
				PreserveTimes: !flags.noTimes,
			})
		},
	}
}

func newDeleteCmd(flags *rootFlags, log *zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path>...",
		Short: "Recursively delete trees in parallel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := buildFilter(flags)
			if err != nil {
				return err
			}
			ep, err := resolveEndpoint(args[0], flags)
			if err != nil {
				return err
			}
			defer ep.close()

			// All roots resolve against the first argument's backend; mixing
			// local and remote roots in one invocation is not supported.
			roots := make([]string, len(args))
			for i, arg := range args {
				loc, err := storage.ParseLocation(arg)
				if err != nil {
					return err
				}
				roots[i] = loc.Path
			}

			return engine.Delete(cmd.Context(), ep.backend, roots, engine.DeleteOptions{
				Log:      *log,
				Progress: buildReporter(flags, progress.Items),
				Filter:   chain,
				Workers:  flags.workers,
				DryRun:   flags.dryRun,
			})
		},
	}
}

func newSyncCmd(flags *rootFlags, log *zerolog.Logger) *cobra.Command {
	var chunkSizeStr string
	cmd := &cobra.Command{
		Use:   "sync <source> <destination>",
		Short: "Incrementally update a destination tree, transferring only changes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chunkSize := 0
			if chunkSizeStr != "" {
				n, err := humanize.ParseBytes(chunkSizeStr)
				if err != nil {
					return fmt.Errorf("invalid --chunk-size: %w", err)
				}
				chunkSize = int(n)
			}
			src, err := resolveEndpoint(args[0], flags)
			if err != nil {
				return err
			}
			defer src.close()
			dst, err := resolveEndpoint(args[1], flags)
			if err != nil {
				return err
			}
			defer dst.close()

			return engine.Sync(cmd.Context(), src.backend, src.path, dst.backend, dst.path, engine.SyncOptions{
				Log:       *log,
				Progress:  buildReporter(flags, progress.Bytes),
				Workers:   flags.workers,
				ChunkSize: chunkSize,
				DryRun:    flags.dryRun,
			})
		},
	}
	cmd.Flags().StringVar(&chunkSizeStr, "chunk-size", "", "compare granularity for large files (default 1MiB)")
	return cmd
}

func newVerifyCmd(flags *rootFlags, log *zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <source> <destination>",
		Short: "Compare two local trees and report differences",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := engine.Verify(cmd.Context(), args[0], args[1], engine.VerifyOptions{
				Log:     *log,
				Workers: flags.workers,
			})
			if err != nil {
				return err
			}
			for _, p := range result.Missing {
				fmt.Fprintf(os.Stdout, "missing\t%s\n", p)
			}
			for _, p := range result.Extra {
				fmt.Fprintf(os.Stdout, "extra\t%s\n", p)
			}
			for _, p := range result.Mismatched {
				fmt.Fprintf(os.Stdout, "mismatch\t%s\n", p)
			}
			if !result.Clean() {
				return fmt.Errorf("trees differ: %d missing, %d extra, %d mismatched",
					len(result.Missing), len(result.Extra), len(result.Mismatched))
			}
			log.Info().Msg("trees match")
			return nil
		},
	}
}
