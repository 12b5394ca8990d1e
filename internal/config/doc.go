// Package config loads, normalizes, and validates the TOML configuration
// that drives the PermaVid daemon and CLI.
//
// Configuration covers static operational concerns: directories, bind
// addresses, binary names, provider endpoints, and timing knobs. User
// preferences that change at runtime (API keys, upload target, auto-upload)
// live in the queue database's settings record instead, so the UI can edit
// them without touching this file.
package config
