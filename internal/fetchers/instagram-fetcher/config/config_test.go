package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("", nil, envMap(map[string]string{"DISCORD_WEBHOOK_URL": "https://discord.com/api/webhooks/1/x"}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Profile != DefaultProfile || cfg.StateFile != DefaultStateFile {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.MaxMediaFiles != 4 || cfg.MaxDownloadMB != 8 || cfg.FetchTimeoutSec != 90 || !cfg.SkipOnFetchErrors {
		t.Fatalf("limits=%+v", cfg)
	}
	if strings.Join(cfg.ProviderOrder, ",") != "apify,web" {
		t.Fatalf("order=%v", cfg.ProviderOrder)
	}
	if cfg.Isolation != IsolationProcess || cfg.ApifyActor != "apify/instagram-scraper" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.MaxDownloadBytes() != 8*1024*1024 {
		t.Fatalf("bytes=%d", cfg.MaxDownloadBytes())
	}
}

func TestLoad_Precedence(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.yaml")
	yamlText := `
profile: from_yaml
webhook_url: https://discord.com/api/webhooks/1/yaml
max_media_files: 2
provider_order: [rss, picuki]
rss_feed_url: https://bridge.example.com/{profile}
dry_run: true
`
	if err := os.WriteFile(path, []byte(yamlText), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	if err := fs.Parse([]string{"--max-media-files=3", "--dry-run=false"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	env := envMap(map[string]string{
		"INSTAGRAM_USERNAME":   "@from_env",
		"MAX_MEDIA_FILES":      "9",
		"PROVIDER_ORDER":       "instaloader, apify ,web",
		"SKIP_ON_FETCH_ERRORS": "false",
		"FETCH_PROXY":          "",
	})
	cfg, err := Load(path, fs, env)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Profile != "from_env" {
		t.Fatalf("profile=%q, env should beat yaml", cfg.Profile)
	}
	if cfg.WebhookURL != "https://discord.com/api/webhooks/1/yaml" {
		t.Fatalf("webhook=%q", cfg.WebhookURL)
	}
	if cfg.MaxMediaFiles != 3 {
		t.Fatalf("max media=%d, flag should beat env", cfg.MaxMediaFiles)
	}
	if cfg.DryRun {
		t.Fatalf("dry run should be cleared by flag")
	}
	if cfg.SkipOnFetchErrors {
		t.Fatalf("skip on fetch errors should be false")
	}
	if got := strings.Join(cfg.ProviderOrder, ","); got != "web,apify" {
		t.Fatalf("order=%q (aliases resolved, duplicates dropped)", got)
	}
	if cfg.Credentials().RSSFeedURL != "https://bridge.example.com/{profile}" {
		t.Fatalf("creds=%+v", cfg.Credentials())
	}
}

func TestLoad_ConfigFileFromEnv(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("dry_run: true\nprovider_order: picuki\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load("", nil, envMap(map[string]string{EnvConfigFile: path}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.DryRun || len(cfg.ProviderOrder) != 1 || cfg.ProviderOrder[0] != "picuki" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoad_Clamps(t *testing.T) {
	t.Parallel()

	cfg, err := Load("", nil, envMap(map[string]string{
		"DRY_RUN":               "true",
		"MAX_MEDIA_FILES":       "0",
		"MAX_DOWNLOAD_MB":       "-5",
		"FETCH_TIMEOUT_SECONDS": "3",
	}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxMediaFiles != 1 || cfg.MaxDownloadMB != 1 || cfg.FetchTimeoutSec != MinFetchTimeoutSec {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]map[string]string{
		"webhook required": {},
		"bad webhook":      {"DISCORD_WEBHOOK_URL": "ftp://example.com/hook"},
		"unknown provider": {"DRY_RUN": "1", "PROVIDER_ORDER": "apify,tiktok"},
		"empty order":      {"DRY_RUN": "1", "PROVIDER_ORDER": " , "},
		"bad isolation":    {"DRY_RUN": "1", "FETCH_ISOLATION": "thread"},
		"bad backend":      {"DRY_RUN": "1", "STATE_BACKEND": "redis"},
		"bad bool":         {"DRY_RUN": "maybe"},
		"bad int":          {"DRY_RUN": "1", "MAX_MEDIA_FILES": "four"},
	}
	for name, env := range cases {
		if _, err := Load("", nil, envMap(env)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseBool(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"1", "TRUE", "yes", " on "} {
		if v, err := ParseBool(s); err != nil || !v {
			t.Fatalf("ParseBool(%q)=%v,%v", s, v, err)
		}
	}
	for _, s := range []string{"0", "false", "No", "off", ""} {
		if v, err := ParseBool(s); err != nil || v {
			t.Fatalf("ParseBool(%q)=%v,%v", s, v, err)
		}
	}
}
