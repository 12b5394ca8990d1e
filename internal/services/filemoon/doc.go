// Package filemoon wraps the Filemoon hosting API.
//
// Filemoon uploads are a two-step handshake: ask the API for a dedicated
// upload server, then POST the file there as multipart form data. Encoding
// happens asynchronously on the provider side, so the package also exposes
// the playability (file/info) and encoding-progress (encoding/status) probes
// the readiness poller drives, plus the restart operation for stuck encodes.
//
// All responses share an envelope with a numeric status and msg field; a 200
// envelope status means the API accepted the call regardless of the HTTP
// code. Fields not consumed here are ignored.
package filemoon
