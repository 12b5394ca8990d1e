// Package services holds the error taxonomy and context plumbing shared by
// the external-service clients (yt-dlp, Filemoon, Files.vc) and the pipeline
// stages that drive them.
//
// Errors produced by stages are tagged with one of the exported sentinel
// markers so callers can classify a failure without string matching, while
// the wrapped detail keeps enough context to surface directly in a queue
// item's message field.
package services
