// Package reconcile brings the download directories in line with what the
// torrent client is tracking.
//
// A run has three phases, executed in order:
//
//  1. Every tracked item is matched to the first directory rule containing
//     it and classified. Complete, unprocessed items are merged into the
//     rule's post-processing directory and recorded as processed. Processed
//     items that have met every seeding threshold are removed from the
//     client together with their data. Everything else is left alone.
//  2. Each rule's download directory is swept for entries no tracked item
//     accounts for. Unprocessed orphans are merged first; all orphans are
//     then deleted.
//  3. Store records whose local path no longer exists are pruned.
//
// In dry-run mode every decision is made and logged but nothing on disk or
// in the client changes.
package reconcile
