package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/internal/fetchers/instagram-fetcher/source"
	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/pkg/media"
	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/pkg/state"
)

// Outcome names how a run ended successfully.
type Outcome string

const (
	OutcomeSkipped        Outcome = "skipped"
	OutcomePublished      Outcome = "published"
	OutcomeDryRun         Outcome = "dry-run"
	OutcomeFetchTolerated Outcome = "fetch-tolerated"
)

type PostFetcher interface {
	FetchLatest(ctx context.Context, profile string) (source.Post, error)
}

type MediaDownloader interface {
	Download(ctx context.Context, dir string, items []media.Item, limitCount int, limitBytes int64) ([]media.Asset, error)
}

type PostPublisher interface {
	Publish(ctx context.Context, post source.Post, assets []media.Asset) error
	Preview(post source.Post) ([]byte, error)
}

// Bridge runs one fetch, decide, publish cycle.
type Bridge struct {
	Profile   string
	Fetcher   PostFetcher
	Store     state.Store
	Media     MediaDownloader
	Publisher PostPublisher

	Force             bool
	DryRun            bool
	SkipOnFetchErrors bool
	MaxMediaFiles     int
	MaxDownloadBytes  int64

	// TempDir is the parent of the per-run media directory; empty means os.TempDir().
	TempDir   string
	Now       func() time.Time
	LogPrefix string
}

// Run executes one cycle. State is written only after a successful publish
// or a dry run; every other path leaves it untouched.
func (b *Bridge) Run(ctx context.Context) (Outcome, error) {
	now := b.Now
	if now == nil {
		now = time.Now
	}

	log.Printf("%s phase=fetching profile=%s", b.LogPrefix, b.Profile)
	post, err := b.Fetcher.FetchLatest(ctx, b.Profile)
	if err != nil {
		if ctx.Err() == nil && b.SkipOnFetchErrors {
			log.Printf("%s phase=done outcome=%s err=%q", b.LogPrefix, OutcomeFetchTolerated, err.Error())
			return OutcomeFetchTolerated, nil
		}
		log.Printf("%s phase=fetch-failed err=%q", b.LogPrefix, err.Error())
		return "", fmt.Errorf("fetch latest post: %w", err)
	}

	prev := b.Store.Load(ctx)
	log.Printf("%s phase=deciding id=%s last_seen=%q force=%t", b.LogPrefix, post.ID, prev.LastSeenID, b.Force)
	if !b.Force && !prev.Empty() && prev.LastSeenID == post.ID {
		log.Printf("%s phase=done outcome=%s id=%s", b.LogPrefix, OutcomeSkipped, post.ID)
		return OutcomeSkipped, nil
	}

	outcome := OutcomePublished
	if b.DryRun {
		payload, err := b.Publisher.Preview(post)
		if err != nil {
			return "", fmt.Errorf("render preview: %w", err)
		}
		log.Printf("%s dry run, webhook payload:\n%s", b.LogPrefix, payload)
		outcome = OutcomeDryRun
	} else {
		log.Printf("%s phase=publishing id=%s media=%d", b.LogPrefix, post.ID, len(post.Media))
		if err := b.publish(ctx, post); err != nil {
			log.Printf("%s phase=publish-failed id=%s err=%q", b.LogPrefix, post.ID, err.Error())
			return "", err
		}
	}

	if err := b.Store.Save(ctx, state.RunState{LastSeenID: post.ID, UpdatedAt: now().UTC()}); err != nil {
		return "", fmt.Errorf("save state: %w", err)
	}
	log.Printf("%s phase=done outcome=%s id=%s", b.LogPrefix, outcome, post.ID)
	return outcome, nil
}

func (b *Bridge) publish(ctx context.Context, post source.Post) error {
	dir, err := os.MkdirTemp(b.TempDir, "instagram_media_")
	if err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}
	defer os.RemoveAll(dir)

	items := make([]media.Item, 0, len(post.Media))
	for _, m := range post.Media {
		items = append(items, media.Item{URL: m.URL, IsVideo: m.IsVideo})
	}
	assets, err := b.Media.Download(ctx, dir, items, b.MaxMediaFiles, b.MaxDownloadBytes)
	if err != nil {
		return fmt.Errorf("download media: %w", err)
	}
	if err := b.Publisher.Publish(ctx, post, assets); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
