package main

// Command descriptions
const (
	MsgRootShort = "Post-process finished Transmission torrents"
	MsgRootLong  = `process-torrents hard links completed torrents from their download
directory into a post-processing directory, removes torrents from
Transmission once they have seeded enough, and cleans up files left behind
in the download directories.

Download directories, post-processing directories and seeding thresholds
are read from the config file. Run with --sample-config to get started.`
	MsgRootExample = `  # Write a sample config
  process-torrents --sample-config > ~/.config/transmission-process-torrents/config.yaml

  # See what a run would do
  process-torrents --dry-run

  # Merge finished torrents but keep them in Transmission
  process-torrents --no-remove`

	MsgHardlinkShort = "Merge a file or directory tree into a destination using hard links"
	MsgHardlinkLong  = `hardlink recreates SRC at DST, creating directories as needed and hard
linking every regular file. Files that already exist at DST are left alone
unless --force is given.`
	MsgHardlinkExample = `  process-torrents hardlink ~/Downloads/torrents/tv/Show.S01 ~/Videos/tv/Show.S01`
)

// Flag descriptions
const (
	MsgFlagConfig       = "Config file (default $XDG_CONFIG_HOME/transmission-process-torrents/config.yaml)"
	MsgFlagDryRun       = "Show what would be done without changing anything"
	MsgFlagQuiet        = "Only print warnings and errors"
	MsgFlagVerbose      = "Increase verbosity (-v DEBUG, -vv TRACE)"
	MsgFlagSampleConfig = "Print a sample config and exit"
	MsgFlagSampleFormat = "Sample config format (yaml or toml)"
	MsgFlagNoRemove     = "Never remove torrents from Transmission"
	MsgFlagForce        = "Replace existing files at the destination"
)

// Status messages
const (
	MsgDownloadDirMissing = "Download directory does not exist, not locking it"
	MsgMetricsWriteFailed = "Failed to write metrics file"
	MsgMetricsDryRun      = "Dry run, not writing metrics file"
	MsgHardlinkFormat     = "%s -> %s: %d linked, %d replaced, %d already linked, %d collisions, %d directories created, %d skipped\n"
	MsgDryRunNotice       = "DRY RUN MODE - No changes were made"
)
