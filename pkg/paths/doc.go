// Package paths provides centralized path handling for process-torrents.
//
// It resolves the XDG locations used for the configuration file, the
// processed record store and the log file, and it implements the
// bidirectional remote/local prefix mapping applied to every path reported
// by the remote torrent client.
package paths
