package reconcile

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/mrmachine/transmission-process-torrents/pkg/config"
	perrors "github.com/mrmachine/transmission-process-torrents/pkg/errors"
	"github.com/mrmachine/transmission-process-torrents/pkg/filesystem"
	"github.com/mrmachine/transmission-process-torrents/pkg/hardlink"
	"github.com/mrmachine/transmission-process-torrents/pkg/logging"
	"github.com/mrmachine/transmission-process-torrents/pkg/types"
)

// Client is the torrent client being reconciled against.
type Client interface {
	ListItems(ctx context.Context) ([]types.TrackedItem, error)
	RemoveItem(ctx context.Context, id int64, deleteLocalData bool) error
}

// Store records which remote paths have been processed.
type Store interface {
	IsProcessed(remotePath string) bool
	Set(remotePath string) error
	Delete(remotePath string) (bool, error)
	Keys() []string
}

// Merger hard links a source tree into a destination.
type Merger interface {
	Merge(src, dst string, force bool) (*hardlink.Result, error)
}

// PathMapper translates between remote and local paths.
type PathMapper interface {
	ToLocal(remotePath string) string
	ToRemote(localPath string) string
}

// Options holds everything a run needs. The merger and store are expected
// to be in dry-run mode when DryRun is set.
type Options struct {
	Client Client
	Store  Store
	Merger Merger
	Mapper PathMapper
	FS     filesystem.FS
	Rules  []config.DirectoryRule

	DryRun bool
	// NoRemove keeps finished items in the client; they are only logged.
	NoRemove bool
	RunID    string
	Clock    clockwork.Clock
}

// Reconciler runs the reconciliation phases.
type Reconciler struct {
	opts   Options
	clock  clockwork.Clock
	logger zerolog.Logger
}

// New creates a Reconciler.
func New(opts Options) *Reconciler {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.FS == nil {
		opts.FS = filesystem.NewOS()
	}
	return &Reconciler{
		opts:   opts,
		clock:  clock,
		logger: logging.GetLogger("reconcile").With().Bool("dry_run", opts.DryRun).Logger(),
	}
}

// Run executes one reconciliation. The returned summary covers whatever was
// done before a fatal error.
func (r *Reconciler) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{RunID: r.opts.RunID, DryRun: r.opts.DryRun, Started: r.clock.Now()}
	err := r.run(ctx, sum)
	sum.Finished = r.clock.Now()
	return sum, err
}

func (r *Reconciler) run(ctx context.Context, sum *Summary) error {
	done := logging.LogOperationStart(r.logger, "fetch")
	items, err := r.opts.Client.ListItems(ctx)
	done()
	if err != nil {
		return err
	}
	sum.Items = len(items)

	found := NewFoundSet()
	done = logging.LogOperationStart(r.logger, "items")
	for _, item := range items {
		if err := r.processItem(ctx, item, found, sum); err != nil {
			return err
		}
	}
	done()

	done = logging.LogOperationStart(r.logger, "orphan-sweep")
	for _, rule := range r.opts.Rules {
		if err := r.sweepOrphans(rule, found, sum); err != nil {
			return err
		}
	}
	done()

	done = logging.LogOperationStart(r.logger, "prune")
	defer done()
	return r.pruneStale(sum)
}

func (r *Reconciler) processItem(ctx context.Context, item types.TrackedItem, found *FoundSet, sum *Summary) error {
	remote := item.RemotePath()
	local := r.opts.Mapper.ToLocal(remote)
	logger := r.logger.With().Int64("id", item.ID).Str("path", local).Logger()

	match, ok := MatchRule(local, r.opts.Rules)
	if !ok {
		logger.Debug().Msg("Skipping torrent not located in any download directory")
		sum.add(Action{Kind: ActionUnmatched, Path: local, Name: item.Name})
		return nil
	}
	found.Add(local)

	rule := *match.Rule
	action := Action{Path: local, Name: item.Name, Rule: rule.DownloadDir}

	switch Classify(item, r.opts.Store.IsProcessed(remote), rule) {
	case DecisionProcess:
		logger.Info().Msg("Processing torrent")
		dst, err := match.Destination()
		if err != nil {
			return perrors.Wrapf(err, perrors.ErrInternal, "cannot place %s under %s", local, rule.PostProcessingDir)
		}
		res, err := r.opts.Merger.Merge(local, dst, true)
		if err != nil {
			if fatalMergeError(err) {
				return err
			}
			logger.Warn().Err(err).Msg("Processing torrent failed, it will be retried next run")
			action.Kind = ActionFailed
			action.Err = err
			break
		}
		if err := r.opts.Store.Set(remote); err != nil {
			return err
		}
		action.Kind = ActionProcess
		action.Warnings = len(res.Warnings)

	case DecisionRemove:
		if r.opts.NoRemove {
			logger.Info().Str("name", item.Name).Msg("Torrent finished seeding, removal disabled")
			action.Kind = ActionRemoveSkipped
			break
		}
		logger.Info().Str("name", item.Name).Msg("Removing inactive torrent")
		if !r.opts.DryRun {
			if err := r.opts.Client.RemoveItem(ctx, item.ID, true); err != nil {
				return err
			}
		}
		if _, err := r.opts.Store.Delete(remote); err != nil {
			return err
		}
		action.Kind = ActionRemove

	default:
		logger.Debug().Msg("Skipping active torrent")
		action.Kind = ActionActive
	}

	logStatus(logger, item, rule)
	sum.add(action)
	return nil
}

// logStatus logs the figures the decision was based on.
func logStatus(logger zerolog.Logger, item types.TrackedItem, rule config.DirectoryRule) {
	event := logger.Debug().Float64("downloaded_pct", item.PercentDone*100)
	if rule.Ratio != nil {
		event = event.Float64("ratio", item.UploadRatio).Float64("ratio_threshold", *rule.Ratio)
	}
	if rule.SeedDays != nil {
		event = event.Float64("seed_days", item.SeedDays()).Float64("seed_days_threshold", *rule.SeedDays)
	}
	event.Msg("Torrent status")
}

func (r *Reconciler) sweepOrphans(rule config.DirectoryRule, found *FoundSet, sum *Summary) error {
	logger := r.logger.With().Str("download_dir", rule.DownloadDir).Logger()

	entries, err := r.opts.FS.ReadDir(rule.DownloadDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Msg("Download directory does not exist, skipping orphan sweep")
		} else {
			logger.Warn().Err(err).Msg("Cannot read download directory, skipping orphan sweep")
		}
		return nil
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		local := filepath.Join(rule.DownloadDir, name)
		if found.Covers(local) {
			continue
		}

		remote := r.opts.Mapper.ToRemote(local)
		entryLogger := logger.With().Str("path", local).Logger()
		action := Action{Kind: ActionOrphanRemove, Path: local, Rule: rule.DownloadDir}

		if !r.opts.Store.IsProcessed(remote) {
			entryLogger.Info().Msg("Processing orphaned file or directory")
			res, err := r.opts.Merger.Merge(local, filepath.Join(rule.PostProcessingDir, name), true)
			switch {
			case err == nil:
				sum.add(Action{Kind: ActionOrphanProcess, Path: local, Rule: rule.DownloadDir, Warnings: len(res.Warnings)})
			case fatalMergeError(err):
				return err
			case perrors.IsErrorCode(err, perrors.ErrSourceMissing):
				// A dangling link or a vanished entry has no data to promote.
				entryLogger.Warn().Err(err).Msg("Orphan has nothing to process")
			default:
				entryLogger.Warn().Err(err).Msg("Processing orphan failed, keeping it")
				sum.add(Action{Kind: ActionFailed, Path: local, Rule: rule.DownloadDir, Err: err})
				continue
			}
		}

		entryLogger.Info().Msg("Removing orphaned file or directory")
		if !r.opts.DryRun {
			if err := r.removeAll(local); err != nil {
				entryLogger.Warn().Err(err).Msg("Removing orphan failed")
				action.Kind = ActionFailed
				action.Err = err
				sum.add(action)
				continue
			}
		}
		if _, err := r.opts.Store.Delete(remote); err != nil {
			return err
		}
		sum.add(action)
	}
	return nil
}

// removeAll removes path recursively, falling back to a plain remove.
func (r *Reconciler) removeAll(path string) error {
	err := r.opts.FS.RemoveAll(path)
	if err == nil {
		return nil
	}
	if rmErr := r.opts.FS.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		return perrors.Wrapf(rmErr, perrors.ErrRemove, "cannot remove %s", path).
			WithDetail("recursive_error", err.Error())
	}
	return nil
}

func (r *Reconciler) pruneStale(sum *Summary) error {
	for _, remote := range r.opts.Store.Keys() {
		local := r.opts.Mapper.ToLocal(remote)
		_, err := r.opts.FS.Lstat(local)
		if err == nil {
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn().Err(err).Str("path", local).Msg("Cannot check processed record, keeping it")
			continue
		}

		r.logger.Info().Str("remote_path", remote).Str("path", local).Msg("Pruning stale processed record")
		if _, err := r.opts.Store.Delete(remote); err != nil {
			return err
		}
		sum.add(Action{Kind: ActionPrune, Path: local})
	}
	return nil
}

// fatalMergeError reports whether a merge error means the filesystem itself
// is failing, as opposed to a problem with one item.
func fatalMergeError(err error) bool {
	return perrors.IsErrorCode(err, perrors.ErrLinkRetry) || perrors.IsErrorCode(err, perrors.ErrLinkCreate)
}
