package source

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

const apifyBaseURL = "https://api.apify.com"

// apifySource runs an Apify scraper actor synchronously and reads its dataset.
type apifySource struct {
	baseURL string
	token   string
	actor   string
	opts    Options
}

func newApifySource(creds Credentials, opts Options) *apifySource {
	actor := strings.TrimSpace(creds.ApifyActor)
	if actor == "" {
		actor = DefaultApifyActor
	}
	return &apifySource{
		baseURL: apifyBaseURL,
		token:   strings.TrimSpace(creds.ApifyToken),
		actor:   actor,
		opts:    opts,
	}
}

func (s *apifySource) Name() string { return ProviderApify }

func (s *apifySource) FetchLatest(ctx context.Context, profile string) (Post, error) {
	profile = NormalizeProfile(profile)
	if profile == "" {
		return Post{}, upstreamErr(ProviderApify, 0, nil, "profile required")
	}

	input := map[string]any{
		"directUrls":    []string{ProfileURL(profile)},
		"resultsType":   "posts",
		"resultsLimit":  1,
		"addParentData": false,
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return Post{}, err
	}

	// The REST path uses "~" in place of the "/" of an actor's full name.
	actorPath := url.PathEscape(strings.ReplaceAll(s.actor, "/", "~"))
	endpoint := strings.TrimRight(s.baseURL, "/") + "/v2/acts/" + actorPath + "/run-sync-get-dataset-items?format=json&clean=true"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return Post{}, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return Post{}, upstreamErr(ProviderApify, 0, err, "request failed")
	}
	body, err := readBody(ProviderApify, resp, true)
	if err != nil {
		return Post{}, err
	}

	items, err := decodeItems(body)
	if err != nil {
		return Post{}, upstreamErr(ProviderApify, resp.StatusCode, err, "decode dataset")
	}
	items = dropApifyErrors(items)
	post, ok := Latest(items, profile, s.opts.Now())
	if !ok {
		return Post{}, upstreamErr(ProviderApify, resp.StatusCode, nil, "dataset empty")
	}
	return post, nil
}

// dropApifyErrors removes the placeholder items the actor emits for private
// or missing profiles ({"error": "...", "errorDescription": "..."}).
func dropApifyErrors(items []Item) []Item {
	out := items[:0]
	for _, it := range items {
		if firstString(it, "error") != "" {
			continue
		}
		out = append(out, it)
	}
	return out
}
