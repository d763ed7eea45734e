// Package telemetry implements the event hub for the Wireless Discovery
// Container.
//
// The hub fans scan lifecycle and discovery events out to SSE clients and
// buffers the last N events per interface for reconnection support using
// Last-Event-ID headers. The discovery core publishes without assuming any
// refresh cadence; subscribers consume at their own pace.
package telemetry
