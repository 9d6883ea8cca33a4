package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mrmachine/transmission-process-torrents/internal/version"
	"github.com/mrmachine/transmission-process-torrents/pkg/config"
	"github.com/mrmachine/transmission-process-torrents/pkg/datastore"
	"github.com/mrmachine/transmission-process-torrents/pkg/display"
	perrors "github.com/mrmachine/transmission-process-torrents/pkg/errors"
	"github.com/mrmachine/transmission-process-torrents/pkg/filesystem"
	"github.com/mrmachine/transmission-process-torrents/pkg/hardlink"
	"github.com/mrmachine/transmission-process-torrents/pkg/lock"
	"github.com/mrmachine/transmission-process-torrents/pkg/logging"
	"github.com/mrmachine/transmission-process-torrents/pkg/metrics"
	"github.com/mrmachine/transmission-process-torrents/pkg/paths"
	"github.com/mrmachine/transmission-process-torrents/pkg/reconcile"
	"github.com/mrmachine/transmission-process-torrents/pkg/transmission"
)

// rootOptions holds the global flags
type rootOptions struct {
	configPath   string
	dryRun       bool
	quiet        bool
	verbosity    int
	sampleConfig bool
	sampleFormat string
	noRemove     bool

	// logFile is where the log is appended; empty disables file logging
	logFile string
	runID   string
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(paths.LogFilePath())
}

func newRootCmd(logFile string) *cobra.Command {
	opts := &rootOptions{logFile: logFile}

	rootCmd := &cobra.Command{
		Use:     "process-torrents",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Example: MsgRootExample,
		Version: version.String(),
		Args:    cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.runID = uuid.NewString()
			logging.SetupLogger(logging.Options{
				Verbosity: opts.verbosity,
				Quiet:     opts.quiet,
				LogFile:   opts.logFile,
				Console:   cmd.ErrOrStderr(),
				RunID:     opts.runID,
			})
			logger := logging.GetLogger("cli")
			logger.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.sampleConfig {
				return writeSample(cmd.OutOrStdout(), opts.sampleFormat)
			}
			return runReconcile(cmd.Context(), cmd.OutOrStdout(), opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		DisableAutoGenTag: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", MsgFlagConfig)
	flags.BoolVarP(&opts.dryRun, "dry-run", "d", false, MsgFlagDryRun)
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, MsgFlagQuiet)
	flags.CountVarP(&opts.verbosity, "verbose", "v", MsgFlagVerbose)
	rootCmd.MarkFlagsMutuallyExclusive("quiet", "verbose")

	rootCmd.Flags().BoolVarP(&opts.sampleConfig, "sample-config", "s", false, MsgFlagSampleConfig)
	rootCmd.Flags().StringVar(&opts.sampleFormat, "sample-format", "yaml", MsgFlagSampleFormat)
	rootCmd.Flags().BoolVar(&opts.noRemove, "no-remove", false, MsgFlagNoRemove)

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.AddCommand(newHardlinkCmd(opts))

	return rootCmd
}

func writeSample(w io.Writer, format string) error {
	data, err := config.SampleConfig(format)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// runReconcile performs one full run against the configured Transmission
// daemon.
func runReconcile(ctx context.Context, out io.Writer, opts *rootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.GetLogger("cli")

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	locks, err := acquireLocks(cfg, opts.dryRun, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := locks.Release(); err != nil {
			logger.Warn().Err(err).Msg("Failed to release locks")
		}
	}()

	store, err := datastore.Open(afero.NewOsFs(), cfg.DB, opts.dryRun)
	if err != nil {
		return err
	}

	fsys := filesystem.NewOS()
	client := transmission.New(transmission.Options{
		Host:     cfg.TransmissionHost,
		Port:     cfg.TransmissionPort,
		Username: cfg.TransmissionUsername,
		Password: cfg.TransmissionPassword,
		RPCPath:  cfg.TransmissionRPCPath,
		Timeout:  cfg.TransmissionTimeout,
	})

	rec := reconcile.New(reconcile.Options{
		Client:   client,
		Store:    store,
		Merger:   hardlink.New(fsys, opts.dryRun),
		Mapper:   cfg.Mapper(),
		FS:       fsys,
		Rules:    cfg.TorrentDirs,
		DryRun:   opts.dryRun,
		NoRemove: opts.noRemove,
		RunID:    opts.runID,
	})

	sum, runErr := rec.Run(ctx)

	if cfg.MetricsFile != "" {
		writeMetrics(cfg.MetricsFile, sum, runErr, opts.dryRun, logger)
	}

	if !opts.quiet {
		renderer := display.NewRenderer(out, isTerminal(out), opts.verbosity > 0)
		if err := renderer.Render(sum); err != nil {
			logger.Warn().Err(err).Msg("Failed to print summary")
		}
	}

	return runErr
}

// acquireLocks locks the store directory and every existing download
// directory for the duration of the run.
func acquireLocks(cfg *config.Config, dryRun bool, logger zerolog.Logger) (*lock.Set, error) {
	var targets []string

	storeDir := filepath.Dir(cfg.DB)
	if !dryRun {
		if err := os.MkdirAll(storeDir, 0755); err != nil {
			return nil, perrors.Wrapf(err, perrors.ErrDirCreate, "cannot create store directory %s", storeDir)
		}
	}
	if exists(storeDir) {
		targets = append(targets, storeDir)
	}

	for _, dir := range cfg.DownloadDirs() {
		if !exists(dir) {
			logger.Warn().Str("path", dir).Msg(MsgDownloadDirMissing)
			continue
		}
		targets = append(targets, dir)
	}

	return lock.AcquireAll(targets)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func writeMetrics(path string, sum *reconcile.Summary, runErr error, dryRun bool, logger zerolog.Logger) {
	if dryRun {
		logger.Debug().Str("path", path).Msg(MsgMetricsDryRun)
		return
	}
	m := metrics.NewRun()
	m.Record(sum, runErr)
	if err := m.WriteTextfile(path); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg(MsgMetricsWriteFailed)
	}
}

// isTerminal reports whether w is a terminal that can take colors
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
