// Package ytdlp mediates access to the yt-dlp CLI used during downloads.
//
// It normalizes command invocation, parses textual progress output, and
// exposes a testable interface for the downloading stage. yt-dlp writes an
// .info.json sidecar next to each download; resolving that sidecar back to a
// media file is the sidecar package's job, not this one's.
//
// Prefer this package over ad-hoc exec.Command usage when interacting with
// yt-dlp so progress reporting and timeout handling remain consistent.
package ytdlp
