// Package registry implements the discovery registry for the Wireless Discovery Container.
//
// The registry is a bounded, de-duplicated table of devices observed during a
// scan session, keyed by hardware address. It is safe to mutate from a driver
// callback goroutine while a presentation layer reads snapshots concurrently.
package registry
