package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/internal/fetchers/instagram-fetcher/source"
	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/pkg/api/discord"
	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/pkg/media"
)

const (
	noCaption      = "No caption provided."
	truncateMarker = "…"
	embedColor     = 0xE1306C
)

// MessageOptions are the optional webhook identity overrides.
type MessageOptions struct {
	Username  string
	AvatarURL string
}

// WebhookClient delivers one message; *discord.Client in production.
type WebhookClient interface {
	Execute(ctx context.Context, msg discord.Message, files []discord.File) error
}

// Publisher renders posts into Discord webhook messages and delivers them.
type Publisher struct {
	client    WebhookClient
	opts      MessageOptions
	logPrefix string
}

func NewPublisher(client WebhookClient, opts MessageOptions, logPrefix string) *Publisher {
	return &Publisher{client: client, opts: opts, logPrefix: logPrefix}
}

// Publish sends post with assets attached. When Discord rejects the upload as
// too large the message is sent once more without attachments, linking the
// remote media instead.
func (p *Publisher) Publish(ctx context.Context, post source.Post, assets []media.Asset) error {
	msg, files := BuildMessage(post, assets, p.opts)
	err := p.client.Execute(ctx, msg, files)
	if err == nil {
		log.Printf("%s published id=%s attachments=%d", p.logPrefix, post.ID, len(files))
		return nil
	}

	var de *discord.DeliveryError
	if len(files) == 0 || !errors.As(err, &de) || de.StatusCode != http.StatusRequestEntityTooLarge {
		return err
	}
	log.Printf("%s attachments rejected (status=%d), retrying without files id=%s", p.logPrefix, de.StatusCode, post.ID)
	msg, _ = BuildMessage(post, nil, p.opts)
	if err := p.client.Execute(ctx, msg, nil); err != nil {
		return err
	}
	log.Printf("%s published id=%s attachments=0 (degraded)", p.logPrefix, post.ID)
	return nil
}

// Preview renders the message that Publish would send without attachments.
func (p *Publisher) Preview(post source.Post) ([]byte, error) {
	msg, _ := BuildMessage(post, nil, p.opts)
	return json.MarshalIndent(msg, "", "  ")
}

// BuildMessage shapes the webhook message and the attachment list.
func BuildMessage(post source.Post, assets []media.Asset, opts MessageOptions) (discord.Message, []discord.File) {
	handle := strings.TrimPrefix(strings.TrimSpace(post.AuthorHandle), "@")
	link := strings.TrimSpace(post.Permalink)
	if link == "" {
		link = source.ProfileURL(handle)
	}

	embed := discord.Embed{
		Title:       truncate(fmt.Sprintf("New Instagram post from @%s", handle), discord.MaxEmbedTitle),
		URL:         link,
		Description: noCaption,
		Color:       embedColor,
		Footer:      &discord.EmbedFooter{Text: truncate("Shortcode: "+post.ID, discord.MaxEmbedFooterLength)},
	}
	if caption := strings.TrimSpace(post.Caption); caption != "" {
		embed.Description = truncate(caption, discord.MaxEmbedDescription)
	}
	if !post.CreatedAt.IsZero() {
		embed.Timestamp = post.CreatedAt.UTC().Format(time.RFC3339)
	}

	files := make([]discord.File, 0, len(assets))
	var localImage string
	for _, a := range assets {
		files = append(files, discord.File{Name: a.Filename(), Path: a.LocalPath, ContentType: a.ContentType})
		if localImage == "" && a.IsImage() {
			localImage = a.Filename()
		}
	}
	switch {
	case localImage != "":
		embed.Image = &discord.EmbedMedia{URL: discord.AttachmentURL(localImage)}
	default:
		if images := post.Images(); len(images) > 0 {
			embed.Image = &discord.EmbedMedia{URL: images[0].URL}
		}
	}
	if videos := post.Videos(); len(videos) > 0 {
		embed.Video = &discord.EmbedMedia{URL: videos[0].URL}
	}

	msg := discord.Message{
		Content:         buildContent(handle, link, post.Media),
		Username:        strings.TrimSpace(opts.Username),
		AvatarURL:       strings.TrimSpace(opts.AvatarURL),
		Embeds:          []discord.Embed{embed},
		AllowedMentions: &discord.AllowedMentions{Parse: []string{}},
	}
	return msg, files
}

// buildContent lists media links until the content limit is reached.
func buildContent(handle, link string, items []source.MediaItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📸 **Instagram update from @%s**\nPost: %s", handle, link)
	if len(items) > 0 {
		header := "\nMedia links:"
		if utf8.RuneCountInString(b.String()+header) <= discord.MaxContentLength {
			b.WriteString(header)
			for i, m := range items {
				line := fmt.Sprintf("\n%d. %s", i+1, m.URL)
				if utf8.RuneCountInString(b.String())+utf8.RuneCountInString(line) > discord.MaxContentLength {
					break
				}
				b.WriteString(line)
			}
		}
	}
	return truncate(b.String(), discord.MaxContentLength)
}

// truncate cuts s to at most limit runes, ending with a visible marker.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	keep := limit - utf8.RuneCountInString(truncateMarker)
	if keep < 0 {
		keep = 0
	}
	return strings.TrimRightFunc(string(r[:keep]), unicode.IsSpace) + truncateMarker
}
