// Package logs reads daemon log files for the CLI.
//
// Tail returns the last N lines of a file, or every line written after a
// byte offset, so `permavid daemon logs` can print a snapshot and then poll
// for growth in follow mode. A missing file is treated as empty rather than
// an error because the daemon may not have written anything yet.
package logs
