// Package api exposes the northbound HTTP surface: interface inventory,
// scan control, device snapshots, and the SSE telemetry stream.
package api
