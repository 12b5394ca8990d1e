// Package sourceurl extracts platform-specific video identifiers from source
// URLs and compares URLs for identity.
//
// Extractors emit many URL spellings for the same video (share links, mobile
// hosts, tracking parameters), so comparing raw strings misses obvious
// matches. When both URLs yield a platform video ID the IDs are compared;
// otherwise comparison falls back to exact string equality.
package sourceurl

import "regexp"

// idPatterns are tried in order; the first capturing match wins. Patterns
// with a host prefix must come before the generic numeric v= fallback so
// YouTube watch IDs are not truncated to their digit prefix.
var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/reel/(\d+)`),
	regexp.MustCompile(`youtube\.com/watch\?(?:[^#]*&)?v=([A-Za-z0-9_-]{6,})`),
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{6,})`),
	regexp.MustCompile(`youtube\.com/shorts/([A-Za-z0-9_-]{6,})`),
	regexp.MustCompile(`[?&]v=(\d+)`),
}

// ExtractVideoID returns the platform video identifier embedded in rawURL,
// if one of the known patterns applies.
func ExtractVideoID(rawURL string) (string, bool) {
	for _, pattern := range idPatterns {
		if m := pattern.FindStringSubmatch(rawURL); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// Match reports whether two URLs identify the same video. IDs are compared
// when both URLs yield one; otherwise the full strings must be equal.
func Match(a, b string) bool {
	idA, okA := ExtractVideoID(a)
	idB, okB := ExtractVideoID(b)
	if okA && okB {
		return idA == idB
	}
	return a == b
}
