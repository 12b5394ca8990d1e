// Package workflow drives queue items through the archival pipeline.
//
// The Manager runs a single scheduler loop: while any item is downloading or
// uploading it stands by, otherwise it pops the oldest queued item and runs
// the download stage, dispatching the upload as a tracked goroutine when
// auto-upload is enabled. Idle iterations sweep items waiting on remote
// encoding through the readiness poller with a bounded worker set. At most
// one item downloads or uploads at a time; remote polling is the only
// concurrent work.
//
// The Manager also owns the operations that act on in-flight work: triggering
// a manual upload, cancelling an item (which kills its extractor or upload
// through a per-item cancel handle), and asking the provider to restart a
// stuck encode. Failure handling funnels through guarded store writes so a
// cancellation is never overwritten by a late stage outcome.
package workflow
