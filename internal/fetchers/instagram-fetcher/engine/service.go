package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/internal/fetchers/instagram-fetcher/config"
	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/pkg/api/discord"
	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/pkg/media"
	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/pkg/runtime"
	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/pkg/state"
	"github.com/MPZeko/Hashtag-Community-Discord-Instagram-Updates/pkg/x/httpx"
)

const (
	logPrefix = "[ig-bridge]"

	webhookTimeout = 60 * time.Second
	mediaTimeout   = 60 * time.Second
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

// RunService runs the command line; a non-nil error means a non-zero exit.
func RunService() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCommand().ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "instagram-fetcher",
		Short:         "Post the newest Instagram post of a profile to a Discord webhook",
		Long:          "instagram-fetcher fetches the latest post of one Instagram profile through an ordered chain of providers and publishes it to a Discord webhook when it has not been published before.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == WorkerCommand || runtime.IsDotEnvDisabled() {
				return nil
			}
			return runtime.LoadDotEnv(logPrefix)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, cmd.Flags(), nil)
			if err != nil {
				return err
			}
			return runBridge(cmd.Context(), cfg)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (env "+config.EnvConfigFile+")")
	config.BindFlags(root.Flags())

	root.AddCommand(newWorkerCommand(), newStateCommand(&configPath), newVersionCommand())
	return root
}

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:    WorkerCommand,
		Short:  "Run one provider call read from stdin (internal)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunFetchWorker(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), nil, logPrefix)
		},
	}
}

func newStateCommand(configPath *string) *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect the persisted last-seen state",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the last published post id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadStateConfig(*configPath, cmd.Flags())
			if err != nil {
				return err
			}
			store, err := state.Open(cfg.StateFile, cfg.StateBackend, logPrefix)
			if err != nil {
				return err
			}
			defer store.Close()

			st := store.Load(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "state_file=%s\n", state.ResolvePath(cfg.StateFile))
			if st.Empty() {
				fmt.Fprintln(out, "last_seen_id=")
				return nil
			}
			fmt.Fprintf(out, "last_seen_id=%s\n", st.LastSeenID)
			if !st.UpdatedAt.IsZero() {
				fmt.Fprintf(out, "updated_at=%s\n", st.UpdatedAt.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
	show.Flags().String("state-file", "", "path of the last-seen state file (env STATE_FILE)")
	show.Flags().String("state-backend", "", "state backend: auto, json or sqlite (env STATE_BACKEND)")
	stateCmd.AddCommand(show)
	return stateCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "instagram-fetcher %s (%s)\n", Version, Commit)
		},
	}
}

// loadStateConfig resolves only what locating the state needs, so inspecting
// state works without a webhook or credentials.
func loadStateConfig(configPath string, fs *pflag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if configPath == "" {
		configPath = os.Getenv(config.EnvConfigFile)
	}
	if configPath != "" {
		if err := config.LoadFile(configPath, &cfg); err != nil {
			return config.Config{}, err
		}
	}
	if err := config.ApplyEnv(&cfg, nil); err != nil {
		return config.Config{}, err
	}
	if err := config.ApplyFlags(&cfg, fs); err != nil {
		return config.Config{}, err
	}
	cfg.Normalize()
	return cfg, nil
}

func runBridge(ctx context.Context, cfg config.Config) error {
	log.Printf("%s starting profile=%s providers=%v isolation=%s dry_run=%t force=%t", logPrefix, cfg.Profile, []string(cfg.ProviderOrder), cfg.Isolation, cfg.DryRun, cfg.ForcePost)

	store, err := state.Open(cfg.StateFile, cfg.StateBackend, logPrefix)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer store.Close()

	var executor Executor = &ProcessExecutor{LogPrefix: logPrefix}
	if cfg.Isolation == config.IsolationGoroutine {
		executor = &InProcessExecutor{}
	}

	mediaClient, err := httpx.NewClient(httpx.ClientOptions{Timeout: mediaTimeout, Proxy: cfg.FetchProxy})
	if err != nil {
		return fmt.Errorf("media client: %w", err)
	}
	webhookClient, err := httpx.NewClient(httpx.ClientOptions{Timeout: webhookTimeout})
	if err != nil {
		return fmt.Errorf("webhook client: %w", err)
	}

	bridge := &Bridge{
		Profile: cfg.Profile,
		Fetcher: &Chain{
			Order:       cfg.ProviderOrder,
			Credentials: cfg.Credentials(),
			Proxy:       cfg.FetchProxy,
			Executor:    executor,
			Timeout:     time.Duration(cfg.FetchTimeoutSec) * time.Second,
			LogPrefix:   logPrefix,
		},
		Store: store,
		Media: media.NewFetcher(mediaClient, httpx.RandomBrowserUserAgent(), logPrefix),
		Publisher: NewPublisher(
			discord.NewClient(cfg.WebhookURL, discord.ClientOptions{HTTPClient: webhookClient, LogPrefix: logPrefix}),
			MessageOptions{Username: cfg.WebhookUsername, AvatarURL: cfg.WebhookAvatarURL},
			logPrefix,
		),
		Force:             cfg.ForcePost,
		DryRun:            cfg.DryRun,
		SkipOnFetchErrors: cfg.SkipOnFetchErrors,
		MaxMediaFiles:     cfg.MaxMediaFiles,
		MaxDownloadBytes:  cfg.MaxDownloadBytes(),
		LogPrefix:         logPrefix,
	}
	_, err = bridge.Run(ctx)
	return err
}
