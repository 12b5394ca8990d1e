// Package daemon coordinates the long-running PermaVid process.
//
// It wires configuration, queue storage, and the workflow manager into a
// single lifecycle with flock-based locking to prevent multiple instances,
// and serves the HTTP API the web UI and CLI consume. Keep orchestration
// logic here: individual pipeline steps live in their own packages while the
// daemon focuses on startup, shutdown, and the request surface.
package daemon
