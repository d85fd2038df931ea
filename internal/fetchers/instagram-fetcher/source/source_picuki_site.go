package source

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	picukiBaseURL              = "https://picuki.site"
	picukiAPIBaseURL           = "https://api-wh.picuki.site/api/v1/instagram"
	picukiStaticTS       int64 = 1770118266914
	picukiStaticSV       int64 = 2
	picukiMaxClockSkewMs       = int64(60 * time.Second / time.Millisecond)
)

var picukiSigningKey = mustDecodeHex("8ee0fd249e43e00bc59d3f2acd7f02509f5cd0db0d6c54889c7c2d7c5bf8c87f")

// picukiSource talks to the signed JSON API behind picuki.site.
type picukiSource struct {
	siteURL string
	apiURL  string
	opts    Options
}

func newPicukiSource(opts Options) *picukiSource {
	return &picukiSource{siteURL: picukiBaseURL, apiURL: picukiAPIBaseURL, opts: opts}
}

func (s *picukiSource) Name() string { return ProviderPicuki }

func (s *picukiSource) FetchLatest(ctx context.Context, profile string) (Post, error) {
	profile = NormalizeProfile(profile)
	if profile == "" {
		return Post{}, upstreamErr(ProviderPicuki, 0, nil, "profile required")
	}

	clockSkew, err := s.clockSkew(ctx)
	if err != nil {
		return Post{}, err
	}

	var resp map[string]any
	body := map[string]any{
		"username": profile,
		"maxId":    "",
	}
	if err := s.signedPost(ctx, "/postsV2", body, clockSkew, &resp); err != nil {
		return Post{}, err
	}

	edges, _ := lookup(resp, "result", "edges").([]any)
	items := make([]Item, 0, len(edges))
	for _, e := range edges {
		if node := asMap(asMap(e)["node"]); node != nil {
			items = append(items, node)
		}
	}
	post, ok := Latest(items, profile, s.opts.Now())
	if !ok {
		return Post{}, upstreamErr(ProviderPicuki, 0, nil, "no posts")
	}
	return post, nil
}

func (s *picukiSource) clockSkew(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.siteURL+"/msec", nil)
	if err != nil {
		return 0, err
	}
	s.headers(req)

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return 0, upstreamErr(ProviderPicuki, 0, err, "msec request failed")
	}
	body, err := readBody(ProviderPicuki, resp, false)
	if err != nil {
		return 0, err
	}

	var parsed struct {
		Msec float64 `json:"msec"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, upstreamErr(ProviderPicuki, resp.StatusCode, err, "msec decode failed")
	}
	serverMs := int64(parsed.Msec * 1000)
	if serverMs <= 0 {
		return 0, upstreamErr(ProviderPicuki, resp.StatusCode, nil, "msec invalid")
	}

	skew := s.opts.Now().UnixMilli() - serverMs
	if absInt64(skew) < picukiMaxClockSkewMs {
		return 0, nil
	}
	return skew, nil
}

func (s *picukiSource) signedPost(ctx context.Context, endpoint string, businessBody map[string]any, clockSkew int64, out *map[string]any) error {
	ts := s.opts.Now().UnixMilli() - clockSkew
	sig, err := signPicukiBody(businessBody, ts)
	if err != nil {
		return err
	}

	reqBody := cloneMap(businessBody)
	reqBody["ts"] = ts
	reqBody["_ts"] = picukiStaticTS
	reqBody["_tsc"] = clockSkew
	reqBody["_sv"] = picukiStaticSV
	reqBody["_s"] = sig

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	s.headers(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return upstreamErr(ProviderPicuki, 0, err, "%s request failed", endpoint)
	}
	body, err := readBody(ProviderPicuki, resp, false)
	if err != nil {
		return err
	}
	obj, err := decodeObject(body)
	if err != nil {
		return upstreamErr(ProviderPicuki, resp.StatusCode, err, "%s decode failed", endpoint)
	}
	*out = obj
	return nil
}

func (s *picukiSource) headers(req *http.Request) {
	ua := strings.TrimSpace(s.opts.UserAgent)
	if ua == "" {
		ua = "Mozilla/5.0"
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Referer", s.siteURL+"/")
	req.Header.Set("Origin", s.siteURL)
	req.Header.Set("Accept", "*/*")
}

func signPicukiBody(body map[string]any, ts int64) (string, error) {
	canonical, err := marshalSortedJSON(body)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, picukiSigningKey)
	_, _ = mac.Write([]byte(canonical + strconv.FormatInt(ts, 10)))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func marshalSortedJSON(m map[string]any) (string, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return "", err
		}
		valueJSON, err := json.Marshal(m[k])
		if err != nil {
			return "", err
		}
		b.Write(keyJSON)
		b.WriteByte(':')
		b.Write(valueJSON)
	}
	b.WriteByte('}')
	return b.String(), nil
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		panic(err)
	}
	return b
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
