// Package filesystem provides the filesystem abstraction used by the merge
// engine and the reconciler.
//
// Hard links, symlink resolution and Lstat have no portable in-memory
// equivalent, so the only implementation is the host filesystem; tests run
// against real temporary directories.
package filesystem
