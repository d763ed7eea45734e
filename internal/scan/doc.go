// Package scan implements the scan lifecycle controller for the Wireless
// Discovery Container.
//
// A Controller owns one interface's discovery registry and drives its scan
// driver through the Idle -> Scanning -> Complete/Failed -> Idle state
// machine. A monotonic session id distinguishes one scan invocation from the
// next, so late callbacks from a superseded scan are discarded instead of
// corrupting the current session's registry. The Manager holds the inventory
// of controllers, one per radio interface.
package scan
