package sourceurl_test

import (
	"testing"

	"permavid/internal/sourceurl"
)

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		name   string
		url    string
		wantID string
		wantOK bool
	}{
		{"facebook reel", "https://www.facebook.com/reel/1234567890", "1234567890", true},
		{"facebook watch", "https://www.facebook.com/watch/?v=987654321", "987654321", true},
		{"facebook share with params", "https://m.facebook.com/watch/?mibextid=xyz&v=555", "555", true},
		{"youtube watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"youtube watch extra params", "https://www.youtube.com/watch?list=PL123&v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"youtube short link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"youtube shorts", "https://www.youtube.com/shorts/abc123XYZ_-", "abc123XYZ_-", true},
		{"no pattern", "https://example.com/v/42", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := sourceurl.ExtractVideoID(tc.url)
			if ok != tc.wantOK || id != tc.wantID {
				t.Fatalf("ExtractVideoID(%q) = (%q, %v), want (%q, %v)", tc.url, id, ok, tc.wantID, tc.wantOK)
			}
		})
	}
}

func TestMatchPrefersIDs(t *testing.T) {
	a := "https://www.facebook.com/reel/42424242"
	b := "https://m.facebook.com/reel/42424242?mibextid=share"
	if !sourceurl.Match(a, b) {
		t.Fatal("same reel id should match despite different hosts and params")
	}
}

func TestMatchDifferentIDs(t *testing.T) {
	a := "https://www.facebook.com/reel/111"
	b := "https://www.facebook.com/reel/222"
	if sourceurl.Match(a, b) {
		t.Fatal("different reel ids must not match")
	}
}

func TestMatchFallsBackToExactEquality(t *testing.T) {
	a := "https://example.com/v/42"
	if !sourceurl.Match(a, a) {
		t.Fatal("identical opaque URLs should match")
	}
	if sourceurl.Match(a, a+"?x=1") {
		t.Fatal("different opaque URLs must not match")
	}
}

func TestMatchMixedExtractionFallsBack(t *testing.T) {
	withID := "https://www.facebook.com/reel/42"
	without := "https://example.com/reelish"
	if sourceurl.Match(withID, without) {
		t.Fatal("one-sided extraction must fall back to string equality")
	}
}
