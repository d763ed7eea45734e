// Package auth implements bearer-token authentication for the Wireless
// Discovery Container API.
//
// Tokens are JWTs signed with either a shared HS256 secret or an RS256 key
// whose public half is configured as PEM. Scopes gate the API surface:
// read-only inventory and snapshot access, scan control, and telemetry
// streaming. Without a configured verifier the middleware is not installed
// and the API runs open, which is the expected mode on a closed bench setup.
package auth
