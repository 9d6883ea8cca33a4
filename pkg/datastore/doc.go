// Package datastore persists the set of remote paths that have already been
// merged into their post-processing directories.
//
// The store is a flat JSON object mapping a remote path to true. It is read
// once when opened and rewritten atomically after every mutation, so an
// interrupted run never leaves a half-written file behind. A dry-run store
// tracks mutations in memory and never writes.
package datastore
