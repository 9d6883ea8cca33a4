package hardlink

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	perrors "github.com/mrmachine/transmission-process-torrents/pkg/errors"
	"github.com/mrmachine/transmission-process-torrents/pkg/filesystem"
	"github.com/mrmachine/transmission-process-torrents/pkg/logging"
	"github.com/mrmachine/transmission-process-torrents/pkg/paths"
)

const dirPerm = 0755

// Engine performs hard link merges. A dry-run engine runs every check and
// logs every action but never touches the filesystem.
type Engine struct {
	fs     filesystem.FS
	dryRun bool
	logger zerolog.Logger
}

// New creates a merge engine on top of fsys.
func New(fsys filesystem.FS, dryRun bool) *Engine {
	return &Engine{
		fs:     fsys,
		dryRun: dryRun,
		logger: logging.GetLogger("hardlink").With().Bool("dry_run", dryRun).Logger(),
	}
}

// DryRun reports whether the engine simulates merges.
func (e *Engine) DryRun() bool {
	return e.dryRun
}

// mergeState is the bookkeeping for a single Merge call.
type mergeState struct {
	force bool
	// root is the resolved source root; directories outside it are never walked.
	root string
	// dstRoot is skipped if it turns up as an entry of the source tree.
	dstRoot string
	// dstDir is the directory the whole merge lands in: dstRoot for a
	// directory source, its parent for a file. If it cannot be made the
	// merge fails instead of skipping.
	dstDir string
	// active holds the resolved directories on the current walk path, to
	// break symlink cycles.
	active map[string]bool
	// fresh holds destination directories a dry run pretends to have created
	// from scratch; their previous contents are treated as absent.
	fresh map[string]bool
}

// Merge hard links src into dst. A directory source is merged recursively;
// a file source is linked at dst. With force, existing destination files are
// replaced by links to the source.
func (e *Engine) Merge(src, dst string, force bool) (*Result, error) {
	src, err := filepath.Abs(src)
	if err != nil {
		return nil, perrors.Wrapf(err, perrors.ErrFileAccess, "hardlink: %s: cannot resolve path", src)
	}
	dst, err = filepath.Abs(dst)
	if err != nil {
		return nil, perrors.Wrapf(err, perrors.ErrFileAccess, "hardlink: %s: cannot resolve path", dst)
	}

	res := &Result{Source: src, Destination: dst, DryRun: e.dryRun}
	logger := e.logger.With().Str("source", src).Str("destination", dst).Bool("force", force).Logger()
	logger.Debug().Msg("Merge started")

	srcInfo, err := e.fs.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return res, perrors.Newf(perrors.ErrSourceMissing, "hardlink: %s: No such file or directory", src).
				WithDetail("source", src)
		}
		return res, perrors.Wrapf(err, perrors.ErrFileAccess, "hardlink: %s: cannot stat source", src)
	}

	root, err := e.fs.EvalSymlinks(src)
	if err != nil {
		return res, perrors.Wrapf(err, perrors.ErrSourceMissing, "hardlink: %s: cannot resolve source", src)
	}
	st := &mergeState{
		force:   force,
		root:    root,
		dstRoot: dst,
		dstDir:  dst,
		active:  make(map[string]bool),
		fresh:   make(map[string]bool),
	}

	if srcInfo.IsDir() {
		if dstInfo, err := e.fs.Stat(dst); err == nil && !dstInfo.IsDir() {
			return res, perrors.Newf(perrors.ErrTypeConflict, "hardlink: %s: Cannot replace file with directory", dst).
				WithDetail("destination", dst)
		}
		if err := e.mergeDir(src, dst, res, st); err != nil {
			return res, err
		}
	} else {
		if dstInfo, err := e.fs.Stat(dst); err == nil && dstInfo.IsDir() {
			return res, perrors.Newf(perrors.ErrTypeConflict, "hardlink: %s: Cannot replace directory with file", dst).
				WithDetail("destination", dst)
		}
		st.dstDir = filepath.Dir(dst)
		ok, err := e.ensureDir(st.dstDir, res, st)
		if err != nil {
			return res, err
		}
		if ok {
			if err := e.linkFile(src, dst, res, st); err != nil {
				return res, err
			}
		}
	}

	logger.Debug().
		Int("linked", res.Linked).
		Int("replaced", res.Replaced).
		Int("already_linked", res.AlreadyLinked).
		Int("collisions", res.Collisions).
		Int("dirs_created", res.DirsCreated).
		Int("skipped", res.Skipped).
		Msg("Merge completed")
	return res, nil
}

func (e *Engine) mergeDir(srcDir, dstDir string, res *Result, st *mergeState) error {
	resolved, err := e.fs.EvalSymlinks(srcDir)
	if err != nil {
		e.skip(res, srcDir, "hardlink: %s: No such file or directory", srcDir)
		return nil
	}
	if !paths.HasPathPrefix(resolved, st.root) {
		e.skip(res, srcDir, "hardlink: %s: Directory link leads outside the source, skipping", srcDir)
		return nil
	}
	if st.active[resolved] {
		e.skip(res, srcDir, "hardlink: %s: Directory link loop, skipping", srcDir)
		return nil
	}
	st.active[resolved] = true
	defer delete(st.active, resolved)

	ok, err := e.ensureDir(dstDir, res, st)
	if err != nil || !ok {
		return err
	}

	entries, err := e.fs.ReadDir(srcDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			e.skip(res, srcDir, "hardlink: %s: No such file or directory", srcDir)
			return nil
		}
		return perrors.Wrapf(err, perrors.ErrFileAccess, "hardlink: %s: cannot read directory", srcDir)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(srcDir, entry.Name())
		dstPath := filepath.Join(dstDir, entry.Name())

		if srcPath == st.dstRoot {
			e.logger.Trace().Str("path", srcPath).Msg("Skipping destination nested in source")
			continue
		}

		// Stat follows links, so a link to a directory is walked as one.
		info, err := e.fs.Stat(srcPath)
		if err != nil {
			e.skip(res, srcPath, "hardlink: %s: No such file or directory", srcPath)
			continue
		}

		if info.IsDir() {
			if err := e.mergeDir(srcPath, dstPath, res, st); err != nil {
				return err
			}
			continue
		}
		if err := e.linkFile(srcPath, dstPath, res, st); err != nil {
			return err
		}
	}
	return nil
}

// ensureDir makes dir a real directory. It returns false when something in
// the way cannot be replaced; the caller skips the subtree.
func (e *Engine) ensureDir(dir string, res *Result, st *mergeState) (bool, error) {
	info, err := e.lstat(dir, st)
	switch {
	case err == nil && filesystem.IsSymlink(info):
		target, statErr := e.fs.Stat(dir)
		if statErr != nil || !target.IsDir() {
			return e.blocked(res, st, dir, "hardlink: %s: Cannot replace file with directory", dir)
		}
		e.logger.Debug().Str("path", dir).Msg("Replacing directory symlink with directory")
		res.SymlinksReplaced++
		if !e.dryRun {
			if err := e.fs.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return false, perrors.Wrapf(err, perrors.ErrRemove, "hardlink: %s: cannot remove directory symlink", dir)
			}
		}
		return e.makeDir(dir, res, st)

	case err == nil && info.IsDir():
		return true, nil

	case err == nil:
		return e.blocked(res, st, dir, "hardlink: %s: Cannot replace file with directory", dir)

	case errors.Is(err, fs.ErrNotExist):
		return e.makeDir(dir, res, st)

	case errors.Is(err, syscall.ENOTDIR):
		return e.blocked(res, st, dir, "hardlink: %s: Cannot replace file with directory", e.blockingAncestor(dir))

	default:
		return false, perrors.Wrapf(err, perrors.ErrFileAccess, "hardlink: %s: cannot stat destination", dir)
	}
}

func (e *Engine) makeDir(dir string, res *Result, st *mergeState) (bool, error) {
	if blocker := e.blockingAncestor(dir); blocker != "" {
		return e.blocked(res, st, dir, "hardlink: %s: Cannot replace file with directory", blocker)
	}

	e.logger.Debug().Str("path", dir).Msg("Creating directory")
	if e.dryRun {
		st.fresh[dir] = true
		res.DirsCreated++
		return true, nil
	}

	if err := e.fs.MkdirAll(dir, dirPerm); err != nil {
		if errors.Is(err, syscall.ENOTDIR) || errors.Is(err, fs.ErrExist) {
			return e.blocked(res, st, dir, "hardlink: %s: Cannot replace file with directory", dir)
		}
		return false, perrors.Wrapf(err, perrors.ErrDirCreate, "hardlink: %s: cannot create directory", dir)
	}
	res.DirsCreated++
	return true, nil
}

// blockingAncestor returns the nearest existing ancestor of dir when it is
// not a directory, or "" when nothing blocks directory creation.
func (e *Engine) blockingAncestor(dir string) string {
	for p := filepath.Dir(dir); ; p = filepath.Dir(p) {
		info, err := e.fs.Stat(p)
		if err == nil {
			if info.IsDir() {
				return ""
			}
			return p
		}
		if p == filepath.Dir(p) {
			return ""
		}
	}
}

func (e *Engine) linkFile(src, dst string, res *Result, st *mergeState) error {
	realSrc, err := e.fs.EvalSymlinks(src)
	if err != nil {
		e.skip(res, src, "hardlink: %s: No such file or directory", src)
		return nil
	}
	srcInfo, err := e.fs.Stat(realSrc)
	if err != nil {
		e.skip(res, src, "hardlink: %s: No such file or directory", realSrc)
		return nil
	}
	if e.samePath(realSrc, dst) {
		e.skip(res, src, "hardlink: %s: Cannot link file to itself", realSrc)
		return nil
	}

	exists := false
	dstInfo, err := e.lstat(dst, st)
	switch {
	case err == nil && filesystem.IsSymlink(dstInfo):
		if target, statErr := e.fs.Stat(dst); statErr == nil && target.IsDir() {
			e.skip(res, dst, "hardlink: %s: Cannot replace directory with file", dst)
			return nil
		}
		e.logger.Debug().Str("path", dst).Msg("Replacing symlink with hard link")
		res.SymlinksReplaced++
		if !e.dryRun {
			if err := e.fs.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return perrors.Wrapf(err, perrors.ErrRemove, "hardlink: %s: cannot remove symlink", dst)
			}
		}

	case err == nil && dstInfo.IsDir():
		e.skip(res, dst, "hardlink: %s: Cannot replace directory with file", dst)
		return nil

	case err == nil:
		if os.SameFile(srcInfo, dstInfo) {
			e.logger.Trace().Str("path", dst).Msg("Already linked")
			res.AlreadyLinked++
			return nil
		}
		exists = true

	case !errors.Is(err, fs.ErrNotExist):
		return perrors.Wrapf(err, perrors.ErrFileAccess, "hardlink: %s: cannot stat destination", dst)
	}

	if exists && !st.force {
		e.collision(res, dst)
		return nil
	}

	if e.dryRun {
		if exists {
			res.Replaced++
		}
		res.Linked++
		e.logger.Debug().Str("source", realSrc).Str("path", dst).Bool("replace", exists).Msg("Linking file")
		return nil
	}

	return e.link(realSrc, dst, res, st)
}

func (e *Engine) link(src, dst string, res *Result, st *mergeState) error {
	err := e.fs.Link(src, dst)
	if err == nil {
		res.Linked++
		e.logger.Debug().Str("source", src).Str("path", dst).Msg("Linking file")
		return nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return perrors.Wrapf(err, perrors.ErrLinkCreate, "hardlink: cannot link %s to %s", src, dst).
			WithDetail("source", src).
			WithDetail("destination", dst)
	}
	if !st.force {
		e.collision(res, dst)
		return nil
	}

	if err := e.fs.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return perrors.Wrapf(err, perrors.ErrLinkRetry, "hardlink: %s: cannot remove existing file", dst).
			WithDetail("source", src).
			WithDetail("destination", dst)
	}
	if err := e.fs.Link(src, dst); err != nil {
		return perrors.Wrapf(err, perrors.ErrLinkRetry, "hardlink: cannot link %s to %s after removing the existing file", src, dst).
			WithDetail("source", src).
			WithDetail("destination", dst)
	}

	res.Replaced++
	res.Linked++
	e.logger.Debug().Str("source", src).Str("path", dst).Bool("replace", true).Msg("Linking file")
	return nil
}

// samePath reports whether dst names realSrc, looking through symlinks in
// dst's parent directories but not through dst itself.
func (e *Engine) samePath(realSrc, dst string) bool {
	if realSrc == dst {
		return true
	}
	parent, err := e.fs.EvalSymlinks(filepath.Dir(dst))
	if err != nil {
		return false
	}
	return filepath.Join(parent, filepath.Base(dst)) == realSrc
}

func (e *Engine) lstat(path string, st *mergeState) (fs.FileInfo, error) {
	if e.dryRun && st.fresh[filepath.Dir(path)] {
		return nil, &fs.PathError{Op: "lstat", Path: path, Err: fs.ErrNotExist}
	}
	return e.fs.Lstat(path)
}

func (e *Engine) skip(res *Result, path, format string, args ...interface{}) {
	res.Skipped++
	e.logger.Warn().Str("path", path).Msg(res.warn(format, args...))
}

// blocked handles a destination directory that cannot be made. Nested
// subtrees are skipped with a warning; the merge fails when it is the
// directory everything lands in, since nothing could be linked.
func (e *Engine) blocked(res *Result, st *mergeState, dir, format string, args ...interface{}) (bool, error) {
	if dir == st.dstDir {
		return false, perrors.Newf(perrors.ErrTypeConflict, format, args...).
			WithDetail("destination", dir)
	}
	e.skip(res, dir, format, args...)
	return false, nil
}

func (e *Engine) collision(res *Result, dst string) {
	res.Collisions++
	e.logger.Warn().Str("path", dst).Msg(res.warn("hardlink: %s: Already exists", dst))
}
