package source

import (
	"strings"
	"time"
)

// MediaItem is one remote asset of a post.
type MediaItem struct {
	URL     string `json:"url"`
	IsVideo bool   `json:"is_video"`
}

// Post is the normalized latest post of a profile. Only ID survives across runs.
type Post struct {
	ID           string      `json:"id"`
	AuthorHandle string      `json:"author_handle"`
	Caption      string      `json:"caption"`
	CreatedAt    time.Time   `json:"created_at"`
	Permalink    string      `json:"permalink"`
	Media        []MediaItem `json:"media"`
}

func (p Post) Images() []MediaItem {
	out := make([]MediaItem, 0, len(p.Media))
	for _, m := range p.Media {
		if !m.IsVideo {
			out = append(out, m)
		}
	}
	return out
}

func (p Post) Videos() []MediaItem {
	out := make([]MediaItem, 0, len(p.Media))
	for _, m := range p.Media {
		if m.IsVideo {
			out = append(out, m)
		}
	}
	return out
}

// ProfileURL is the public profile page of handle.
func ProfileURL(handle string) string {
	return "https://www.instagram.com/" + strings.TrimPrefix(strings.TrimSpace(handle), "@") + "/"
}

// PostURL is the canonical post link for a shortcode.
func PostURL(shortcode string) string {
	return "https://www.instagram.com/p/" + strings.TrimSpace(shortcode) + "/"
}

// NormalizeProfile strips whitespace and a leading "@".
func NormalizeProfile(profile string) string {
	return strings.TrimPrefix(strings.TrimSpace(profile), "@")
}
