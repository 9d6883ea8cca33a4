package filesystem

import (
	"io/fs"
)

// FS is the set of filesystem operations needed to merge trees and sweep
// download directories.
type FS interface {
	// File information
	Stat(name string) (fs.FileInfo, error)
	Lstat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)

	// Directory operations
	MkdirAll(path string, perm fs.FileMode) error

	// Link operations
	Link(oldname, newname string) error
	EvalSymlinks(path string) (string, error)

	// Removal
	Remove(name string) error
	RemoveAll(path string) error
}

// IsSymlink reports whether info describes a symbolic link.
func IsSymlink(info fs.FileInfo) bool {
	return info.Mode()&fs.ModeSymlink != 0
}
