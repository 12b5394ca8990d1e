// Package sidecar resolves yt-dlp metadata sidecars back to downloaded media.
//
// yt-dlp drops an .info.json file beside every download. The resolver scans
// the destination directory, matches the sidecar whose embedded source URL
// identifies the item's URL, and extracts the title, thumbnail, and on-disk
// media path from it. Matched sidecars are deleted after extraction so stale
// metadata never shadows a later download into the same directory.
package sidecar
