// Package driver defines the southbound scan driver contract for the
// Wireless Discovery Container.
//
// A driver wraps one radio's scan primitive. Blocking drivers return a batch
// of raw records from a single call; event drivers deliver records one at a
// time from their own goroutine. Vendor errors are normalized to a small set
// of container codes through table-driven matching.
package driver
