// Package types defines the data exchanged between the remote torrent
// client and the reconciler.
package types
