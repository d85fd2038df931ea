package source

import (
	"bytes"
	"context"
	"encoding/json"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	imginnBaseURL              = "https://imginn.com"
	flareSolverrRequestTimeout = 130 * time.Second
)

type flareSolverrRequest struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url"`
	MaxTimeout int    `json:"maxTimeout,omitempty"`
}

type flareSolverrResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Solution struct {
		URL      string `json:"url"`
		Status   int    `json:"status"`
		Response string `json:"response"`
	} `json:"solution"`
}

// imginnSource renders the imginn.com profile page through FlareSolverr.
type imginnSource struct {
	baseURL      string
	flareSolverr string
	opts         Options
}

func newImginnSource(creds Credentials, opts Options) *imginnSource {
	return &imginnSource{
		baseURL:      imginnBaseURL,
		flareSolverr: strings.TrimRight(strings.TrimSpace(creds.FlareSolverrURL), "/"),
		opts:         opts,
	}
}

func (s *imginnSource) Name() string { return ProviderImginn }

func (s *imginnSource) FetchLatest(ctx context.Context, profile string) (Post, error) {
	profile = NormalizeProfile(profile)
	if profile == "" {
		return Post{}, upstreamErr(ProviderImginn, 0, nil, "profile required")
	}

	page := s.baseURL + "/" + url.PathEscape(profile) + "/"
	htmlText, err := s.requestPage(ctx, page)
	if err != nil {
		return Post{}, err
	}

	items, err := parseImginnUserPageHTML(htmlText, profile)
	if err != nil {
		return Post{}, upstreamErr(ProviderImginn, 0, err, "parse page")
	}
	post, ok := Latest(items, profile, s.opts.Now())
	if !ok {
		return Post{}, upstreamErr(ProviderImginn, 0, nil, "posts not found")
	}
	return post, nil
}

func (s *imginnSource) requestPage(ctx context.Context, pageURL string) (string, error) {
	reqBody := flareSolverrRequest{
		Cmd:        "request.get",
		URL:        strings.TrimSpace(pageURL),
		MaxTimeout: int((flareSolverrRequestTimeout + 5*time.Second).Milliseconds()),
	}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.flareSolverr+"/v1", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if ua := strings.TrimSpace(s.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	clone := *s.opts.HTTPClient
	if clone.Timeout == 0 || clone.Timeout < flareSolverrRequestTimeout {
		clone.Timeout = flareSolverrRequestTimeout
	}

	resp, err := clone.Do(req)
	if err != nil {
		return "", upstreamErr(ProviderImginn, 0, err, "flaresolverr request failed")
	}
	body, err := readBody(ProviderImginn, resp, false)
	if err != nil {
		return "", err
	}

	var parsed flareSolverrResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", upstreamErr(ProviderImginn, resp.StatusCode, err, "flaresolverr decode failed")
	}
	if !strings.EqualFold(strings.TrimSpace(parsed.Status), "ok") {
		return "", upstreamErr(ProviderImginn, resp.StatusCode, nil, "flaresolverr failed: %s", strings.TrimSpace(parsed.Message))
	}
	if parsed.Solution.Status < 200 || parsed.Solution.Status >= 300 {
		return "", upstreamErr(ProviderImginn, parsed.Solution.Status, nil, "flaresolverr solution status")
	}
	if strings.TrimSpace(parsed.Solution.Response) == "" {
		return "", upstreamErr(ProviderImginn, parsed.Solution.Status, nil, "flaresolverr empty response")
	}
	return parsed.Solution.Response, nil
}

// parseImginnUserPageHTML turns each grid entry into a raw item.
func parseImginnUserPageHTML(htmlText, username string) ([]Item, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, err
	}

	owner := strings.TrimSpace(username)
	if v, ok := doc.Find("div.userinfo").First().Attr("data-name"); ok && strings.TrimSpace(v) != "" {
		owner = strings.TrimSpace(v)
	}

	items := make([]Item, 0, 12)
	doc.Find("div.items > div.item").Each(func(_ int, sel *goquery.Selection) {
		postHref, _ := sel.Find("div.img a").First().Attr("href")
		postCode := extractImginnPostCode(postHref)
		if postCode == "" {
			return
		}

		download := sel.Find("a.download").First()
		ariaLabel, _ := download.Attr("aria-label")
		caption := extractCaptionFromDownloadAriaLabel(ariaLabel)
		if caption == "" {
			alt, _ := sel.Find("div.img img").First().Attr("alt")
			caption = extractCaptionFromImgAlt(alt, owner)
		}

		thumb, _ := sel.Find("div.img img").First().Attr("src")
		thumb = html.UnescapeString(strings.TrimSpace(thumb))

		dataSrcs, _ := download.Attr("data-srcs")
		mediaURLs := parseImginnMediaURLs(dataSrcs)
		if len(mediaURLs) == 0 {
			dl, _ := download.Attr("href")
			if u := html.UnescapeString(strings.TrimSpace(dl)); u != "" {
				mediaURLs = append(mediaURLs, u)
			}
		}

		item := Item{
			"shortcode":     postCode,
			"caption":       caption,
			"ownerUsername": owner,
		}
		if len(mediaURLs) == 0 {
			if thumb == "" {
				return
			}
			item["thumbnail_url"] = thumb
		} else {
			children := make([]any, 0, len(mediaURLs))
			for _, u := range mediaURLs {
				if isLikelyVideoURL(u) {
					children = append(children, map[string]any{"videoUrl": u})
				} else {
					children = append(children, map[string]any{"displayUrl": u})
				}
			}
			item["childPosts"] = children
		}
		items = append(items, item)
	})
	return items, nil
}

func parseImginnMediaURLs(raw string) []string {
	parts := strings.Split(html.UnescapeString(strings.TrimSpace(raw)), ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		u := strings.TrimSpace(p)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func extractImginnPostCode(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(strings.TrimSpace(u.Path), "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	switch parts[0] {
	case "p", "reel":
		return strings.TrimSpace(parts[1])
	default:
		return ""
	}
}

func extractCaptionFromDownloadAriaLabel(label string) string {
	s := strings.TrimSpace(html.UnescapeString(label))
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	const prefix = "download "
	if strings.HasPrefix(lower, prefix) {
		s = strings.TrimSpace(s[len(prefix):])
		lower = strings.ToLower(s)
	}
	for _, suffix := range []string{" images or videos", " image or video"} {
		if strings.HasSuffix(lower, suffix) {
			s = strings.TrimSpace(s[:len(s)-len(suffix)])
			break
		}
	}
	return strings.TrimSpace(s)
}

func extractCaptionFromImgAlt(alt, username string) string {
	s := strings.TrimSpace(html.UnescapeString(alt))
	if s == "" {
		return ""
	}
	needle := " by @" + strings.ToLower(strings.TrimSpace(username)) + " at "
	lower := strings.ToLower(s)
	if idx := strings.Index(lower, needle); idx > 0 {
		return strings.TrimSpace(s[:idx])
	}
	if idx := strings.Index(lower, " by @"); idx > 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
