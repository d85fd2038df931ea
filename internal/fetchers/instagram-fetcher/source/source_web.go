package source

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

const (
	webBaseURL = "https://www.instagram.com"
	webAppID   = "936619743392459"
)

// webSource reads the profile endpoint used by the Instagram web client.
// Anonymous access works but is heavily rate limited; a sessionid cookie helps.
type webSource struct {
	baseURL   string
	sessionID string
	opts      Options
}

func newWebSource(creds Credentials, opts Options) *webSource {
	return &webSource{
		baseURL:   webBaseURL,
		sessionID: strings.TrimSpace(creds.SessionID),
		opts:      opts,
	}
}

func (s *webSource) Name() string { return ProviderWeb }

func (s *webSource) FetchLatest(ctx context.Context, profile string) (Post, error) {
	profile = NormalizeProfile(profile)
	if profile == "" {
		return Post{}, upstreamErr(ProviderWeb, 0, nil, "profile required")
	}

	endpoint := strings.TrimRight(s.baseURL, "/") + "/api/v1/users/web_profile_info/?username=" + url.QueryEscape(profile)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Post{}, err
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("X-IG-App-ID", webAppID)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", strings.TrimRight(s.baseURL, "/")+"/"+url.PathEscape(profile)+"/")
	if s.sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "sessionid", Value: s.sessionID})
	}

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return Post{}, upstreamErr(ProviderWeb, 0, err, "request failed")
	}
	// Without a session a 401/403 is plain rate limiting, not a bad credential.
	body, err := readBody(ProviderWeb, resp, s.sessionID != "")
	if err != nil {
		return Post{}, err
	}

	root, err := decodeObject(body)
	if err != nil {
		return Post{}, upstreamErr(ProviderWeb, resp.StatusCode, err, "decode profile")
	}
	user := asMap(lookup(root, "data", "user"))
	if user == nil {
		return Post{}, upstreamErr(ProviderWeb, resp.StatusCode, nil, "profile not found")
	}
	if private, _ := user["is_private"].(bool); private {
		return Post{}, upstreamErr(ProviderWeb, resp.StatusCode, nil, "profile is private")
	}

	edges, _ := lookup(user, "edge_owner_to_timeline_media", "edges").([]any)
	items := make([]Item, 0, len(edges))
	for _, e := range edges {
		if node := asMap(asMap(e)["node"]); node != nil {
			items = append(items, node)
		}
	}
	post, ok := Latest(items, profile, s.opts.Now())
	if !ok {
		return Post{}, upstreamErr(ProviderWeb, resp.StatusCode, nil, "no posts")
	}
	if post.AuthorHandle == profile {
		if u := firstString(user, "username"); u != "" {
			post.AuthorHandle = u
		}
	}
	return post, nil
}
