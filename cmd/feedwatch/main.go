package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/good-yellow-bee/feedwatch/internal/alerting"
	"github.com/good-yellow-bee/feedwatch/internal/api"
	"github.com/good-yellow-bee/feedwatch/internal/metrics"
	"github.com/good-yellow-bee/feedwatch/internal/notifier"
	"github.com/good-yellow-bee/feedwatch/internal/storage"
	"github.com/good-yellow-bee/feedwatch/pkg/config"
)

var (
	configFile string
	httpAddr   string
	dbPath     string
	seedFile   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "feedwatch",
	Short: "FeedWatch - keyword alerting over feed items",
	Long: `FeedWatch matches incoming feed items against keyword alert rules,
records triggers, and dispatches notifications via browser, sound,
email and webhook channels.`,
	RunE: runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.VersionString())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP API listen address")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&seedFile, "seed", "", "YAML file of alert definitions")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadServeConfig() (*Config, error) {
	var cfg *Config

	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	// Override with CLI flags
	if httpAddr != "" {
		cfg.Server.Address = httpAddr
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if seedFile != "" {
		cfg.Seed.File = seedFile
	}
	cfg.Verbose = verbose

	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}

	// Auto-create data directory
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Printf("database initialized at %s", cfg.Database.Path)

	dispatcher := buildDispatcher(cfg)
	defer dispatcher.Close()

	engine := alerting.NewEngine(store, dispatcher)
	defer engine.Close()
	engine.StartMonitoring()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Seed.File != "" {
		alerts, err := alerting.LoadSeedFile(cfg.Seed.File)
		if err != nil {
			return fmt.Errorf("load seed file: %w", err)
		}
		created, err := alerting.Seed(ctx, engine, alerts)
		if err != nil {
			return fmt.Errorf("seed alerts: %w", err)
		}
		log.Printf("seeded %d alert(s) from %s", created, cfg.Seed.File)

		if cfg.Seed.Watch {
			watcher, err := alerting.NewSeedWatcher(cfg.Seed.File, engine)
			if err != nil {
				return fmt.Errorf("create seed watcher: %w", err)
			}
			if err := watcher.Start(ctx); err != nil {
				return fmt.Errorf("start seed watcher: %w", err)
			}
			defer watcher.Stop()
		}
	}

	apiServer, err := api.New(&api.Config{
		Address:        cfg.Server.Address,
		RateLimitPerIP: cfg.Server.RateLimitPerIP,
		Verbose:        cfg.Verbose,
	}, engine)
	if err != nil {
		return fmt.Errorf("create API server: %w", err)
	}

	metricsServer := metrics.NewServer(cfg.Server.MetricsAddress)

	log.Printf("starting feedwatch %s", config.Version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return apiServer.Run(gctx)
	})
	g.Go(func() error {
		return metricsServer.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	log.Printf("feedwatch stopped")
	return nil
}

// buildDispatcher wires the notification channels the configuration
// enables. Browser and sound channels need a host surface and are
// registered by embedding applications, not the server binary.
func buildDispatcher(cfg *Config) *notifier.Dispatcher {
	d := notifier.NewDispatcherWithRateLimit(notifier.RateLimitConfig{
		MaxPerWindow: cfg.Notifications.MaxPerMinute,
		Window:       time.Minute,
		Enabled:      true,
	})

	webhookCfg := notifier.WebhookConfig{
		AllowInsecure: cfg.Webhook.AllowInsecure,
	}
	if n := cfg.Webhook.PerDestinationPerMinute; n > 0 {
		webhookCfg.PerDestination = rate.Every(time.Minute / time.Duration(n))
		webhookCfg.Burst = n
	}
	d.Register(notifier.NewWebhookChannel(webhookCfg))

	if cfg.Email.Host != "" {
		email, err := notifier.NewEmailChannel(notifier.EmailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		}, cfg.Email.Fallback)
		if err != nil {
			log.Printf("email channel disabled: %v", err)
		} else {
			d.Register(email)
		}
	}

	return d
}
