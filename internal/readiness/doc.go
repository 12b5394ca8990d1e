// Package readiness polls Filemoon for the encoding state of uploaded items.
//
// Filemoon accepts an upload and encodes it asynchronously; an item stays in
// transferring or encoding until the provider reports the file playable. Each
// check runs a two-tier probe: the file-info endpoint answers "ready"
// definitively, and the encoding-status endpoint supplies state and progress
// while the file converts. Inconclusive answers leave the item untouched so
// the next scheduler sweep retries it.
package readiness
