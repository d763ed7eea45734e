// Package audit implements the audit logger for the Wireless Discovery
// Container.
//
// The audit logger provides append-only action logging with user, interface,
// action, outcome, and timestamp information for compliance and debugging.
package audit
