// Package api defines the wire format shared by the daemon's HTTP surface and
// the CLI client. It translates internal queue models into transport-friendly
// DTOs so consumers never couple to internal types.
//
// Every HTTP response is wrapped in an Envelope: {"success": bool,
// "message": string, "data": ...}. Failures carry a human-readable message in
// the envelope; the HTTP status code classifies them (400 bad input, 404
// unknown item, 409 duplicate, 502 provider trouble).
//
// DTOs use camelCase JSON tags. Status and provider enums are exposed as
// lowercase strings, timestamps as RFC3339 with milliseconds.
//
// Client is the CLI-side consumer: it resolves the daemon's bind address,
// sends bearer-authenticated requests, and unwraps envelopes. Transport-level
// connection failures are reported as ErrDaemonUnavailable so callers can fall
// back to direct store access.
package api
