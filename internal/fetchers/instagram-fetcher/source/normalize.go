package source

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Item is one raw post as returned by a provider, decoded with UseNumber.
type Item = map[string]any

var (
	shortcodeKeys = []string{"shortCode", "shortcode", "code"}
	linkKeys      = []string{"url", "postUrl", "permalink", "link"}
	genericIDKeys = []string{"id", "pk", "guid"}
	captionKeys   = []string{"caption", "text", "title", "description"}
	timeKeys      = []string{"timestamp", "taken_at_timestamp", "taken_at", "createdAt", "published"}
	imageKeys     = []string{"displayUrl", "display_url", "imageUrl", "image_url", "thumbnailUrl", "thumbnail_src", "thumbnail_url"}
	videoKeys     = []string{"videoUrl", "video_url"}
	childKeys     = []string{"childPosts", "images", "carousel_media"}

	shortcodeRe = regexp.MustCompile(`^[A-Za-z0-9_-]{5,64}$`)
	postPathRe  = regexp.MustCompile(`(?:^|/)(?:p|reel|reels|tv)/([A-Za-z0-9_-]+)/?$`)
)

// Latest picks the newest item by creation time. Pinned posts sit first on a
// profile page but carry older timestamps. Items without a timestamp only win
// when no item has one, in which case the first item is used.
func Latest(items []Item, profile string, now time.Time) (Post, bool) {
	if len(items) == 0 {
		return Post{}, false
	}
	best := 0
	var bestAt time.Time
	found := false
	for i, it := range items {
		at, ok := itemTime(it)
		if !ok {
			continue
		}
		if !found || at.After(bestAt) {
			best, bestAt, found = i, at, true
		}
	}
	return Normalize(items[best], profile, now), true
}

// Normalize maps a raw item onto Post. The result always has a non-empty ID.
func Normalize(it Item, profile string, now time.Time) Post {
	profile = NormalizeProfile(profile)
	id, shortcode := itemID(it)

	post := Post{
		ID:           id,
		AuthorHandle: itemAuthor(it, profile),
		Caption:      itemCaption(it),
		Permalink:    itemPermalink(it, id, shortcode, profile),
		Media:        itemMedia(it),
	}
	if at, ok := itemTime(it); ok {
		post.CreatedAt = at.UTC()
	} else {
		post.CreatedAt = now.UTC()
	}
	return post
}

// itemID applies the dedupe key precedence: shortcode fields, shortcode
// parsed from a post link, generic id fields, then a content hash.
func itemID(it Item) (id string, shortcode bool) {
	if v := firstString(it, shortcodeKeys...); v != "" {
		return v, true
	}
	for _, k := range linkKeys {
		if code := shortcodeFromLink(stringValue(it[k])); code != "" {
			return code, true
		}
	}
	if v := firstString(it, genericIDKeys...); v != "" {
		return v, looksLikeShortcode(v)
	}
	return hashID(it), false
}

func hashID(it Item) string {
	// encoding/json sorts map keys, which makes the encoding canonical.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(it); err != nil {
		buf.Reset()
		fmt.Fprintf(&buf, "%v", it)
	}
	sum := sha256.Sum256(bytes.TrimSpace(buf.Bytes()))
	return "h_" + hex.EncodeToString(sum[:])[:16]
}

func looksLikeShortcode(v string) bool {
	if !shortcodeRe.MatchString(v) || strings.HasPrefix(v, "h_") {
		return false
	}
	// Numeric media ids ("3123456789_123") are not shortcodes.
	return strings.IndexFunc(v, func(r rune) bool { return (r < '0' || r > '9') && r != '_' }) >= 0
}

func shortcodeFromLink(raw string) string {
	u, ok := postLink(raw)
	if !ok {
		return ""
	}
	m := postPathRe.FindStringSubmatch(u.Path)
	if m == nil {
		return ""
	}
	return m[1]
}

// postLink accepts absolute instagram.com links and relative "/p/<code>/" paths.
func postLink(raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	if u.Host != "" {
		host := strings.ToLower(u.Hostname())
		if host != "instagram.com" && !strings.HasSuffix(host, ".instagram.com") {
			return nil, false
		}
	}
	if !postPathRe.MatchString(u.Path) {
		return nil, false
	}
	return u, true
}

func itemPermalink(it Item, id string, shortcode bool, profile string) string {
	for _, k := range linkKeys {
		raw := stringValue(it[k])
		u, ok := postLink(raw)
		if ok && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https") {
			return raw
		}
	}
	if shortcode {
		return PostURL(id)
	}
	return ProfileURL(profile)
}

func itemCaption(it Item) string {
	for _, k := range captionKeys {
		switch v := it[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case map[string]any:
			if s := strings.TrimSpace(stringValue(v["text"])); s != "" {
				return s
			}
		}
	}
	if edges, ok := lookup(it, "edge_media_to_caption", "edges").([]any); ok {
		for _, e := range edges {
			if s := strings.TrimSpace(stringValue(lookup(asMap(e), "node", "text"))); s != "" {
				return s
			}
		}
	}
	return ""
}

func itemAuthor(it Item, profile string) string {
	if v := firstString(it, "ownerUsername"); v != "" {
		return v
	}
	if v := strings.TrimSpace(stringValue(lookup(it, "owner", "username"))); v != "" {
		return v
	}
	if v := firstString(it, "username"); v != "" {
		return v
	}
	return profile
}

func itemTime(it Item) (time.Time, bool) {
	for _, k := range timeKeys {
		if t, ok := parseTime(it[k]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return unixTime(f)
		}
	case float64:
		return unixTime(x)
	case int64:
		return unixTime(float64(x))
	case int:
		return unixTime(float64(x))
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return unixTime(f)
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", time.RFC1123Z, time.RFC1123} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func unixTime(f float64) (time.Time, bool) {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	if f > 1e12 {
		return time.UnixMilli(int64(f)), true
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)), true
}

// itemMedia lists the item's own image then video, then every child in
// document order, deduplicated by resolved URL.
func itemMedia(it Item) []MediaItem {
	var out []MediaItem
	seen := make(map[string]struct{})
	add := func(raw string, isVideo bool) {
		u := resolveMediaURL(raw)
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, MediaItem{URL: u, IsVideo: isVideo})
	}

	var walk func(node Item, depth int)
	walk = func(node Item, depth int) {
		if node == nil || depth > 3 {
			return
		}
		add(firstString(node, imageKeys...), false)
		if u := stringValue(lookup(node, "image_versions2", "candidates", 0, "url")); u != "" {
			add(u, false)
		}
		add(firstString(node, videoKeys...), true)
		if u := stringValue(lookup(node, "video_versions", 0, "url")); u != "" {
			add(u, true)
		}

		for _, k := range childKeys {
			children, _ := node[k].([]any)
			for _, c := range children {
				switch child := c.(type) {
				case string:
					add(child, isLikelyVideoURL(child))
				case map[string]any:
					walk(child, depth+1)
				}
			}
		}
		if edges, ok := lookup(node, "edge_sidecar_to_children", "edges").([]any); ok {
			for _, e := range edges {
				walk(asMap(asMap(e)["node"]), depth+1)
			}
		}
	}
	walk(it, 0)
	return out
}

func resolveMediaURL(raw string) string {
	s := html.UnescapeString(strings.TrimSpace(raw))
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return ""
	}
	return s
}

func isLikelyVideoURL(raw string) bool {
	u := strings.ToLower(strings.TrimSpace(raw))
	return strings.Contains(u, ".mp4") || strings.Contains(u, "/v/t16/") || strings.Contains(u, "/video/")
}

func firstString(it Item, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(stringValue(it[k])); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	default:
		return ""
	}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// lookup walks nested maps (string keys) and slices (int keys).
func lookup(v any, path ...any) any {
	cur := v
	for _, p := range path {
		switch key := p.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil
			}
			cur = m[key]
		case int:
			s, ok := cur.([]any)
			if !ok || key < 0 || key >= len(s) {
				return nil
			}
			cur = s[key]
		default:
			return nil
		}
	}
	return cur
}

// decodeItems decodes a JSON body keeping numbers as json.Number.
func decodeItems(body []byte) ([]Item, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	switch v := raw.(type) {
	case []any:
		out := make([]Item, 0, len(v))
		for _, e := range v {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out, nil
	case map[string]any:
		return []Item{v}, nil
	default:
		return nil, fmt.Errorf("unexpected json %T", raw)
	}
}

func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("empty json object")
	}
	return out, nil
}
