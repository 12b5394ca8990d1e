// Package uploading implements the upload stage of the archival pipeline.
//
// The Uploader handler pushes a downloaded file to the configured hosting
// provider. Filemoon uploads land in `transferring` because the provider
// encodes asynchronously; Files.vc serves files as-is, so its uploads archive
// the item immediately. In "both" mode Filemoon is tried first and Files.vc
// only on Filemoon failure; one acceptance is overall success. Outcome writes
// are guarded so a cancellation issued mid-transfer is never overwritten.
package uploading
