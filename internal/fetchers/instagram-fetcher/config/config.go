package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/internal/fetchers/instagram-fetcher/source"
	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/pkg/runtime"
	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/pkg/state"
)

const (
	DefaultProfile         = "HashtagUtd"
	DefaultStateFile       = ".cache/instagram_last_post.json"
	DefaultMaxMediaFiles   = 4
	DefaultMaxDownloadMB   = 8
	DefaultFetchTimeoutSec = 90

	MinFetchTimeoutSec = 10

	IsolationProcess   = "process"
	IsolationGoroutine = "goroutine"

	EnvConfigFile = "CONFIG_FILE"
)

// ProviderList accepts a YAML sequence or a comma separated string.
type ProviderList []string

func (p *ProviderList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*p = cleanList(list)
		return nil
	case yaml.ScalarNode:
		*p = SplitList(value.Value)
		return nil
	default:
		return fmt.Errorf("provider_order: expected list or string")
	}
}

type Config struct {
	Profile      string `yaml:"profile"`
	WebhookURL   string `yaml:"webhook_url"`
	StateFile    string `yaml:"state_file"`
	StateBackend string `yaml:"state_backend"`

	ForcePost         bool `yaml:"force_post"`
	DryRun            bool `yaml:"dry_run"`
	MaxMediaFiles     int  `yaml:"max_media_files"`
	MaxDownloadMB     int  `yaml:"max_download_mb"`
	FetchTimeoutSec   int  `yaml:"fetch_timeout_seconds"`
	SkipOnFetchErrors bool `yaml:"skip_on_fetch_errors"`

	ProviderOrder ProviderList `yaml:"provider_order"`
	Isolation     string       `yaml:"isolation"`

	ApifyToken      string `yaml:"apify_token"`
	ApifyActor      string `yaml:"apify_actor"`
	SessionID       string `yaml:"session_id"`
	FlareSolverrURL string `yaml:"flaresolverr_url"`
	RSSFeedURL      string `yaml:"rss_feed_url"`
	FetchProxy      string `yaml:"fetch_proxy"`

	WebhookUsername  string `yaml:"webhook_username"`
	WebhookAvatarURL string `yaml:"webhook_avatar_url"`
}

func Default() Config {
	return Config{
		Profile:           DefaultProfile,
		StateFile:         DefaultStateFile,
		StateBackend:      state.BackendAuto,
		MaxMediaFiles:     DefaultMaxMediaFiles,
		MaxDownloadMB:     DefaultMaxDownloadMB,
		FetchTimeoutSec:   DefaultFetchTimeoutSec,
		SkipOnFetchErrors: true,
		ProviderOrder:     ProviderList{source.ProviderApify, source.ProviderWeb},
		Isolation:         IsolationProcess,
		ApifyActor:        source.DefaultApifyActor,
	}
}

// Credentials returns the provider secrets carried by cfg.
func (c Config) Credentials() source.Credentials {
	return source.Credentials{
		ApifyToken:      c.ApifyToken,
		ApifyActor:      c.ApifyActor,
		SessionID:       c.SessionID,
		FlareSolverrURL: c.FlareSolverrURL,
		RSSFeedURL:      c.RSSFeedURL,
	}
}

func (c Config) MaxDownloadBytes() int64 {
	return int64(c.MaxDownloadMB) * 1024 * 1024
}

// field ties one setting to its env var and flag; set parses the raw string.
type field struct {
	name  string
	env   string
	usage string
	kind  string
	set   func(c *Config, raw string) error
}

func stringField(name, env, usage string, ptr func(*Config) *string) field {
	return field{name: name, env: env, usage: usage, kind: "string", set: func(c *Config, raw string) error {
		*ptr(c) = strings.TrimSpace(raw)
		return nil
	}}
}

func boolField(name, env, usage string, ptr func(*Config) *bool) field {
	return field{name: name, env: env, usage: usage, kind: "bool", set: func(c *Config, raw string) error {
		v, err := ParseBool(raw)
		if err != nil {
			return err
		}
		*ptr(c) = v
		return nil
	}}
}

func intField(name, env, usage string, ptr func(*Config) *int) field {
	return field{name: name, env: env, usage: usage, kind: "int", set: func(c *Config, raw string) error {
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		*ptr(c) = v
		return nil
	}}
}

var fields = []field{
	stringField("instagram-username", "INSTAGRAM_USERNAME", "Instagram profile to watch", func(c *Config) *string { return &c.Profile }),
	stringField("discord-webhook-url", "DISCORD_WEBHOOK_URL", "Discord webhook URL (required unless --dry-run)", func(c *Config) *string { return &c.WebhookURL }),
	stringField("state-file", "STATE_FILE", "path of the last-seen state file", func(c *Config) *string { return &c.StateFile }),
	stringField("state-backend", "STATE_BACKEND", "state backend: auto, json or sqlite", func(c *Config) *string { return &c.StateBackend }),
	boolField("force-post", "FORCE_POST", "publish even if the latest post was already seen", func(c *Config) *bool { return &c.ForcePost }),
	boolField("dry-run", "DRY_RUN", "fetch and decide but do not publish", func(c *Config) *bool { return &c.DryRun }),
	intField("max-media-files", "MAX_MEDIA_FILES", "maximum number of attachments", func(c *Config) *int { return &c.MaxMediaFiles }),
	intField("max-download-mb", "MAX_DOWNLOAD_MB", "maximum size of one attachment in MiB", func(c *Config) *int { return &c.MaxDownloadMB }),
	intField("fetch-timeout-seconds", "FETCH_TIMEOUT_SECONDS", "hard deadline per provider attempt", func(c *Config) *int { return &c.FetchTimeoutSec }),
	boolField("skip-on-fetch-errors", "SKIP_ON_FETCH_ERRORS", "exit successfully when every provider fails", func(c *Config) *bool { return &c.SkipOnFetchErrors }),
	{name: "provider-order", env: "PROVIDER_ORDER", usage: "comma separated provider order (" + strings.Join(source.Names(), ",") + ")", kind: "string",
		set: func(c *Config, raw string) error {
			c.ProviderOrder = SplitList(raw)
			return nil
		}},
	stringField("isolation", "FETCH_ISOLATION", "fetch isolation: process or goroutine", func(c *Config) *string { return &c.Isolation }),
	stringField("apify-api-token", "APIFY_API_TOKEN", "Apify API token", func(c *Config) *string { return &c.ApifyToken }),
	stringField("apify-actor", "APIFY_ACTOR", "Apify actor name", func(c *Config) *string { return &c.ApifyActor }),
	stringField("instagram-session-id", "INSTAGRAM_SESSION_ID", "Instagram sessionid cookie for the web provider", func(c *Config) *string { return &c.SessionID }),
	stringField("flaresolverr-url", "FLARESOLVERR_URL", "FlareSolverr endpoint for the imginn provider", func(c *Config) *string { return &c.FlareSolverrURL }),
	stringField("rss-feed-url", "RSS_FEED_URL", "feed URL for the rss provider, {profile} is substituted", func(c *Config) *string { return &c.RSSFeedURL }),
	stringField("fetch-proxy", "FETCH_PROXY", "proxy for provider requests (http, https, socks5)", func(c *Config) *string { return &c.FetchProxy }),
	stringField("discord-username", "DISCORD_USERNAME", "override the webhook display name", func(c *Config) *string { return &c.WebhookUsername }),
	stringField("discord-avatar-url", "DISCORD_AVATAR_URL", "override the webhook avatar", func(c *Config) *string { return &c.WebhookAvatarURL }),
}

// BindFlags registers one flag per setting. Flag defaults are zero values;
// only flags the user changed are applied by ApplyFlags.
func BindFlags(fs *pflag.FlagSet) {
	for _, f := range fields {
		usage := f.usage + " (env " + f.env + ")"
		switch f.kind {
		case "bool":
			fs.Bool(f.name, false, usage)
		case "int":
			fs.Int(f.name, 0, usage)
		default:
			fs.String(f.name, "", usage)
		}
	}
}

// LoadFile merges a YAML file into cfg. Keys absent from the file keep their value.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with every non-empty environment variable.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var errs []error
	for _, f := range fields {
		raw, ok := lookup(f.env)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		if err := f.set(cfg, raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.env, err))
		}
	}
	return errors.Join(errs...)
}

// ApplyFlags overrides cfg with the flags set on the command line.
func ApplyFlags(cfg *Config, fs *pflag.FlagSet) error {
	var errs []error
	for _, f := range fields {
		flag := fs.Lookup(f.name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := f.set(cfg, flag.Value.String()); err != nil {
			errs = append(errs, fmt.Errorf("--%s: %w", f.name, err))
		}
	}
	return errors.Join(errs...)
}

// Load resolves the full precedence chain: defaults, YAML file, environment,
// then changed flags. An empty configPath falls back to $CONFIG_FILE.
func Load(configPath string, fs *pflag.FlagSet, lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := Default()

	path := strings.TrimSpace(configPath)
	if path == "" {
		if v, ok := lookup(EnvConfigFile); ok {
			path = strings.TrimSpace(v)
		}
	}
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if fs != nil {
		if err := ApplyFlags(&cfg, fs); err != nil {
			return Config{}, err
		}
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize trims values, canonicalizes provider names and clamps limits.
func (c *Config) Normalize() {
	c.Profile = source.NormalizeProfile(c.Profile)
	c.WebhookURL = strings.TrimSpace(c.WebhookURL)
	c.StateBackend = strings.ToLower(strings.TrimSpace(c.StateBackend))
	if c.StateBackend == "" {
		c.StateBackend = state.BackendAuto
	}
	c.Isolation = strings.ToLower(strings.TrimSpace(c.Isolation))
	if c.Isolation == "" {
		c.Isolation = IsolationProcess
	}
	if strings.TrimSpace(c.StateFile) == "" {
		c.StateFile = DefaultStateFile
	}
	c.MaxMediaFiles = max(1, c.MaxMediaFiles)
	c.MaxDownloadMB = max(1, c.MaxDownloadMB)
	c.FetchTimeoutSec = max(MinFetchTimeoutSec, c.FetchTimeoutSec)

	order := make(ProviderList, 0, len(c.ProviderOrder))
	seen := make(map[string]struct{}, len(c.ProviderOrder))
	for _, p := range c.ProviderOrder {
		name, ok := source.Canonical(p)
		if !ok {
			// Kept as-is so Validate can name it.
			order = append(order, p)
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		order = append(order, name)
	}
	c.ProviderOrder = order
}

func (c Config) Validate() error {
	if c.Profile == "" {
		return errors.New("INSTAGRAM_USERNAME is required")
	}
	if c.WebhookURL == "" && !c.DryRun {
		return errors.New("DISCORD_WEBHOOK_URL is required unless --dry-run is used")
	}
	if c.WebhookURL != "" {
		if err := runtime.ValidateHTTPURL(c.WebhookURL); err != nil {
			return fmt.Errorf("DISCORD_WEBHOOK_URL invalid: %w", err)
		}
	}
	if len(c.ProviderOrder) == 0 {
		return errors.New("PROVIDER_ORDER is empty")
	}
	for _, p := range c.ProviderOrder {
		if _, ok := source.Canonical(p); !ok {
			return fmt.Errorf("unsupported provider in PROVIDER_ORDER: %s (supported: %s)", p, strings.Join(source.Names(), ","))
		}
	}
	switch c.Isolation {
	case IsolationProcess, IsolationGoroutine:
	default:
		return fmt.Errorf("unsupported isolation %q (process or goroutine)", c.Isolation)
	}
	switch c.StateBackend {
	case state.BackendAuto, state.BackendJSON, state.BackendSQLite:
	default:
		return fmt.Errorf("unsupported state backend %q", c.StateBackend)
	}
	return nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(raw string) ProviderList {
	return cleanList(strings.Split(raw, ","))
}

func cleanList(in []string) ProviderList {
	out := make(ProviderList, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParseBool accepts the usual spellings used in CI environment files.
func ParseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "y", "yes", "on":
		return true, nil
	case "0", "f", "false", "n", "no", "off", "":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", raw)
	}
}
