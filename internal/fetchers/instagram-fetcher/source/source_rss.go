package source

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

const profilePlaceholder = "{profile}"

// rssSource reads an RSS/Atom bridge feed of the profile (RSS-Bridge,
// RSSHub and similar). The feed URL may contain {profile}.
type rssSource struct {
	feedTemplate string
	parser       *gofeed.Parser
	opts         Options
}

func newRSSSource(creds Credentials, opts Options) *rssSource {
	return &rssSource{
		feedTemplate: strings.TrimSpace(creds.RSSFeedURL),
		parser:       gofeed.NewParser(),
		opts:         opts,
	}
}

func (s *rssSource) Name() string { return ProviderRSS }

func (s *rssSource) FetchLatest(ctx context.Context, profile string) (Post, error) {
	profile = NormalizeProfile(profile)
	if profile == "" {
		return Post{}, upstreamErr(ProviderRSS, 0, nil, "profile required")
	}
	feedURL := strings.ReplaceAll(s.feedTemplate, profilePlaceholder, url.PathEscape(profile))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return Post{}, upstreamErr(ProviderRSS, 0, err, "build request")
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return Post{}, upstreamErr(ProviderRSS, 0, err, "request failed")
	}
	body, err := readBody(ProviderRSS, resp, false)
	if err != nil {
		return Post{}, err
	}

	feed, err := s.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return Post{}, upstreamErr(ProviderRSS, resp.StatusCode, err, "parse feed")
	}

	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		items = append(items, feedItem(it))
	}
	post, ok := Latest(items, profile, s.opts.Now())
	if !ok {
		return Post{}, upstreamErr(ProviderRSS, resp.StatusCode, nil, "feed has no items")
	}
	return post, nil
}

// feedItem reduces a feed entry to the fields the normalizer understands.
func feedItem(it *gofeed.Item) Item {
	out := Item{}
	if s := strings.TrimSpace(it.Link); s != "" {
		out["link"] = s
	}
	if s := strings.TrimSpace(it.GUID); s != "" {
		out["guid"] = s
	}

	htmlBody := it.Content
	if strings.TrimSpace(htmlBody) == "" {
		htmlBody = it.Description
	}
	text, images := scanFeedHTML(htmlBody)
	if text != "" {
		out["caption"] = text
	} else if s := strings.TrimSpace(it.Title); s != "" {
		out["title"] = s
	}

	switch {
	case it.PublishedParsed != nil:
		out["published"] = it.PublishedParsed.UTC().Format(time.RFC3339)
	case it.UpdatedParsed != nil:
		out["published"] = it.UpdatedParsed.UTC().Format(time.RFC3339)
	}

	children := make([]any, 0, len(images)+len(it.Enclosures)+1)
	for _, enc := range it.Enclosures {
		if enc == nil || strings.TrimSpace(enc.URL) == "" {
			continue
		}
		ct := strings.ToLower(strings.TrimSpace(enc.Type))
		switch {
		case strings.HasPrefix(ct, "image/"):
			children = append(children, map[string]any{"displayUrl": strings.TrimSpace(enc.URL)})
		case strings.HasPrefix(ct, "video/"):
			children = append(children, map[string]any{"videoUrl": strings.TrimSpace(enc.URL)})
		}
	}
	for _, u := range images {
		children = append(children, map[string]any{"displayUrl": u})
	}
	if it.Image != nil && strings.TrimSpace(it.Image.URL) != "" {
		children = append(children, map[string]any{"displayUrl": strings.TrimSpace(it.Image.URL)})
	}
	if len(children) > 0 {
		out["childPosts"] = children
	}
	return out
}

// scanFeedHTML extracts plain text and <img>/<video> sources from an item body.
func scanFeedHTML(raw string) (string, []string) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(raw), nil
	}
	var urls []string
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		for _, attr := range []string{"src", "data-src"} {
			if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
				urls = append(urls, strings.TrimSpace(v))
				return
			}
		}
	})
	doc.Find("br").ReplaceWithHtml("\n")
	text := strings.TrimSpace(doc.Text())
	return text, urls
}
