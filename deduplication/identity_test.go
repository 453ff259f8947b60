package deduplication

import "testing"

func TestNormalizeTitleAndURL(t *testing.T) {
	cases := []struct {
		name          string
		url           string
		title         string
		wantNormURL   string
		wantNormTitle string
	}{
		{"simple", "https://example.com/path", "Hello World", "https://example.com/path", "hello world"},
		{"utm and fragment", "https://example.com/path?utm_source=feed#section", "  Hello   World  ", "https://example.com/path", "hello world"},
		{"uppercase host", "HTTP://Example.COM/", "TiTle", "http://example.com", "title"},
		{"tracking params", "https://example.com/?fbclid=XYZ&gclid=ABC&utm_medium=1", "T", "https://example.com", "t"},
		{"keeps real params", "https://example.com/a?id=7&utm_campaign=x", "T", "https://example.com/a?id=7", "t"},
		{"empty", "", "", "", ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			nu := normalizeURL(c.url)
			if nu != c.wantNormURL {
				t.Fatalf("normalizeURL(%q) = %q; want %q", c.url, nu, c.wantNormURL)
			}
			nt := normalizeTitle(c.title)
			if nt != c.wantNormTitle {
				t.Fatalf("normalizeTitle(%q) = %q; want %q", c.title, nt, c.wantNormTitle)
			}
		})
	}
}

func TestIdentityKey(t *testing.T) {
	a := NormalizeAndHash("Tesla Opens Plant", "https://News.example.com/tesla?utm_source=x")
	b := NormalizeAndHash("  tesla   opens plant ", "https://news.example.com/tesla#top")
	if a != b {
		t.Fatalf("equivalent articles hashed differently: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("key length = %d; want 64", len(a))
	}

	// same title, different link is a different article
	c := NormalizeAndHash("Tesla Opens Plant", "https://other.example.com/tesla")
	if a == c {
		t.Fatalf("different links produced the same key")
	}

	if !NewIdentity(" ", "").Empty() {
		t.Fatalf("blank identity should be empty")
	}
}
