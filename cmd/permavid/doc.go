// Package main hosts the PermaVid CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP calls
// against the daemon API, falling back to direct queue-store access when no
// daemon is running. It centralizes configuration resolution and client
// construction so subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
