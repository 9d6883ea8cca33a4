// Package hardlink merges a source file or directory into a destination
// tree using hard links.
//
// Directories are merged, files are linked, and existing destination files
// are only replaced when forced. Links never leak outside the destination:
// directory symlinks at the destination are replaced with real directories
// and file symlinks are replaced with hard links to the resolved source.
//
// Problems confined to one path (a vanished source entry, a file standing
// where a directory should be, an existing file without force) are logged as
// warnings and recorded on the Result; the merge carries on with the rest of
// the tree. Only conditions that make the whole merge meaningless are
// returned as errors: a missing top level source, a top level type conflict,
// a link the filesystem refuses outright (across devices, for instance), or a
// forced relink that still fails after the conflicting file was removed.
package hardlink
