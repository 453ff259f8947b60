package rssfeeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"newsdesk/logging"
	"newsdesk/types"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Example Wire</title>
  <item>
    <title>Tesla announced a new plant</title>
    <link>https://wire.example.com/tesla</link>
    <description>The plant opens next year.</description>
    <pubDate>Wed, 01 May 2024 08:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Rain expected</title>
    <link>https://wire.example.com/rain</link>
    <description>Bring an umbrella.</description>
  </item>
  <item>
    <title>Markets</title>
    <link>https://wire.example.com/markets</link>
    <description>TESLA shares led gains.</description>
  </item>
</channel>
</rss>`

func TestSourceFiltersByTopic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	s := NewSource(10, false, logging.Discard())
	got, err := s.Fetch(context.Background(), "Tesla", map[string]string{"feed": srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d articles; want 2", len(got))
	}
	if got[0].Source != "Example Wire" || got[0].Content != "The plant opens next year." {
		t.Fatalf("first = %+v", got[0])
	}
	if got[0].PublishedAt.IsZero() {
		t.Fatalf("pubDate not parsed")
	}

	limited := NewSource(1, false, logging.Discard())
	got, err = limited.Fetch(context.Background(), "", map[string]string{"feed": srv.URL})
	if err != nil || len(got) != 1 {
		t.Fatalf("limited fetch = %d, %v", len(got), err)
	}
}

func TestSourceErrors(t *testing.T) {
	s := NewSource(10, false, logging.Discard())
	if _, err := s.Fetch(context.Background(), "x", nil); !types.IsFatal(err) {
		t.Fatalf("missing feed err = %v; want fatal", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	if _, err := s.Fetch(context.Background(), "x", map[string]string{"feed": srv.URL}); !types.IsFatal(err) {
		t.Fatalf("404 err = %v; want fatal", err)
	}
}

func TestResolveFeedURL(t *testing.T) {
	if ResolveFeedURL("hn") != "https://hnrss.org/newest" {
		t.Fatalf("preset not resolved")
	}
	if ResolveFeedURL("https://x/rss") != "https://x/rss" {
		t.Fatalf("url changed")
	}
	if got := splitFeeds(" hn, ,st "); len(got) != 2 {
		t.Fatalf("splitFeeds = %q", got)
	}
}
