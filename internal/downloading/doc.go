// Package downloading implements the download stage of the archival pipeline.
//
// The Downloader handler drives yt-dlp for the next queued item, streams
// progress into the item's message column, and resolves the written media file
// through the sidecar metadata yt-dlp leaves behind. A download whose sidecar
// cannot be matched still completes; the item simply carries less metadata and
// no local path until an operator intervenes.
package downloading
