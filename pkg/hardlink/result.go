package hardlink

import "fmt"

// Result summarizes one merge. In dry-run mode the counts describe what
// would have happened.
type Result struct {
	Source      string
	Destination string
	DryRun      bool

	// Linked counts files hard linked into the destination, including
	// forced replacements.
	Linked int
	// Replaced counts existing destination files removed by force.
	Replaced int
	// AlreadyLinked counts destination files that already share the
	// source's inode.
	AlreadyLinked int
	// Collisions counts existing destination files left alone because the
	// merge was not forced.
	Collisions int
	// DirsCreated counts destination directories created.
	DirsCreated int
	// SymlinksReplaced counts destination symlinks normalized away.
	SymlinksReplaced int
	// Skipped counts source entries skipped with a warning.
	Skipped int

	Warnings []string
}

func (r *Result) warn(format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	return msg
}

// Changed reports whether the merge modified (or would modify) the
// destination tree.
func (r *Result) Changed() bool {
	return r.Linked > 0 || r.DirsCreated > 0 || r.SymlinksReplaced > 0
}
