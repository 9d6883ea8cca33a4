package types

import "path"

// SecondsPerDay converts seed_days thresholds to seconds.
const SecondsPerDay = 24 * 60 * 60

// TrackedItem is one torrent as reported by the remote client. Items are
// fetched fresh on every run and never persisted.
type TrackedItem struct {
	ID             int64
	Name           string
	DownloadDir    string
	PercentDone    float64
	SecondsSeeding int64
	UploadRatio    float64
}

// RemotePath is the item's absolute path as the remote client sees it.
// Remote paths are always slash-separated, whatever the local OS.
func (t TrackedItem) RemotePath() string {
	return path.Join(t.DownloadDir, t.Name)
}

// Complete reports whether the item has finished downloading.
func (t TrackedItem) Complete() bool {
	return t.PercentDone >= 1
}

// SeedDays returns the seeding duration in days.
func (t TrackedItem) SeedDays() float64 {
	return float64(t.SecondsSeeding) / SecondsPerDay
}
