package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const bridgeFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>hashtagutd - Instagram</title>
    <link>https://www.instagram.com/hashtagutd/</link>
    <item>
      <title>Older post</title>
      <link>https://www.instagram.com/p/OldPost01/</link>
      <pubDate>Thu, 27 Feb 2025 10:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Matchday…</title>
      <link>https://www.instagram.com/p/NewPost01/</link>
      <guid>https://www.instagram.com/p/NewPost01/</guid>
      <pubDate>Sat, 01 Mar 2025 10:00:00 +0000</pubDate>
      <description><![CDATA[<p>Matchday!<br>Kick off 3pm</p><img src="https://cdn.example.com/n1.jpg"><img data-src="https://cdn.example.com/n2.jpg">]]></description>
      <enclosure url="https://cdn.example.com/n.mp4" type="video/mp4" length="0"/>
    </item>
  </channel>
</rss>`

func TestRSSSource_FetchLatest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instagram/user/hashtagutd" {
			t.Errorf("path=%s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(bridgeFeed))
	}))
	defer srv.Close()

	src := newRSSSource(Credentials{RSSFeedURL: srv.URL + "/instagram/user/{profile}"}, testOptions(srv))
	post, err := src.FetchLatest(context.Background(), "@hashtagutd")
	if err != nil {
		t.Fatalf("FetchLatest: %v", err)
	}
	if post.ID != "NewPost01" || post.Permalink != "https://www.instagram.com/p/NewPost01/" {
		t.Fatalf("post=%+v", post)
	}
	if post.Caption != "Matchday!\nKick off 3pm" {
		t.Fatalf("caption=%q", post.Caption)
	}
	want := []MediaItem{
		{URL: "https://cdn.example.com/n.mp4", IsVideo: true},
		{URL: "https://cdn.example.com/n1.jpg"},
		{URL: "https://cdn.example.com/n2.jpg"},
	}
	if len(post.Media) != len(want) {
		t.Fatalf("media=%+v", post.Media)
	}
	for i := range want {
		if post.Media[i] != want[i] {
			t.Fatalf("media[%d]=%+v, want %+v", i, post.Media[i], want[i])
		}
	}
}

func TestRSSSource_EmptyFeed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<rss version="2.0"><channel><title>x</title></channel></rss>`))
	}))
	defer srv.Close()

	src := newRSSSource(Credentials{RSSFeedURL: srv.URL}, testOptions(srv))
	if _, err := src.FetchLatest(context.Background(), "hashtagutd"); err == nil {
		t.Fatalf("expected error for empty feed")
	}
}
