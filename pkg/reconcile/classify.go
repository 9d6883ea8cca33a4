package reconcile

import (
	"path/filepath"

	"github.com/mrmachine/transmission-process-torrents/pkg/config"
	"github.com/mrmachine/transmission-process-torrents/pkg/paths"
	"github.com/mrmachine/transmission-process-torrents/pkg/types"
)

// Decision is what a run does with one matched item.
type Decision int

const (
	// DecisionActive leaves the item alone: still downloading, or processed
	// but short of a seeding threshold.
	DecisionActive Decision = iota
	// DecisionProcess merges a complete, unprocessed item.
	DecisionProcess
	// DecisionRemove removes a processed item that has finished seeding.
	DecisionRemove
)

func (d Decision) String() string {
	switch d {
	case DecisionProcess:
		return "process"
	case DecisionRemove:
		return "remove"
	default:
		return "active"
	}
}

// Match is the rule an item's local path falls under.
type Match struct {
	Rule      *config.DirectoryRule
	Index     int
	LocalPath string
}

// RelPath is the item's path relative to the rule's download directory.
func (m Match) RelPath() (string, error) {
	return filepath.Rel(m.Rule.DownloadDir, m.LocalPath)
}

// Destination is where the item is merged to.
func (m Match) Destination() (string, error) {
	rel, err := m.RelPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(m.Rule.PostProcessingDir, rel), nil
}

// MatchRule returns the first rule whose download directory contains
// localPath. The download directory itself does not match.
func MatchRule(localPath string, rules []config.DirectoryRule) (Match, bool) {
	localPath = filepath.Clean(localPath)
	for i := range rules {
		dir := filepath.Clean(rules[i].DownloadDir)
		if localPath != dir && paths.HasPathPrefix(localPath, dir) {
			return Match{Rule: &rules[i], Index: i, LocalPath: localPath}, true
		}
	}
	return Match{}, false
}

// SeedingRequiredMore reports whether item still falls short of a threshold
// set on rule. With no thresholds set nothing is required.
func SeedingRequiredMore(item types.TrackedItem, rule config.DirectoryRule) bool {
	if rule.Ratio != nil && *rule.Ratio > item.UploadRatio {
		return true
	}
	if rule.SeedDays != nil && *rule.SeedDays*types.SecondsPerDay > float64(item.SecondsSeeding) {
		return true
	}
	return false
}

// Classify picks exactly one decision for a matched item.
func Classify(item types.TrackedItem, processed bool, rule config.DirectoryRule) Decision {
	switch {
	case item.Complete() && !processed:
		return DecisionProcess
	case processed && !SeedingRequiredMore(item, rule):
		return DecisionRemove
	default:
		return DecisionActive
	}
}

// FoundSet holds the local paths of the items matched during a run.
type FoundSet struct {
	paths map[string]struct{}
}

// NewFoundSet returns an empty set.
func NewFoundSet() *FoundSet {
	return &FoundSet{paths: make(map[string]struct{})}
}

// Add records a matched local path.
func (f *FoundSet) Add(path string) {
	f.paths[filepath.Clean(path)] = struct{}{}
}

// Len returns the number of recorded paths.
func (f *FoundSet) Len() int {
	return len(f.paths)
}

// Covers reports whether path belongs to a tracked item: the path or one of
// its ancestors was recorded, or the path is a directory holding a recorded
// item further down.
func (f *FoundSet) Covers(path string) bool {
	path = filepath.Clean(path)
	for p := path; ; p = filepath.Dir(p) {
		if _, ok := f.paths[p]; ok {
			return true
		}
		if p == filepath.Dir(p) {
			break
		}
	}
	for found := range f.paths {
		if paths.HasPathPrefix(found, path) {
			return true
		}
	}
	return false
}
