// cmd/serve.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/norelabs/dashsrv/internal/config"
	"github.com/norelabs/dashsrv/internal/dashboard"
	"github.com/norelabs/dashsrv/internal/heartbeat"
	"github.com/norelabs/dashsrv/internal/history"
	"github.com/norelabs/dashsrv/internal/status"
)

// pruneEvery is how often old history samples are deleted.
const pruneEvery = time.Hour

// writeMargin is added to the worst-case refresh time for encoding and the
// local hardware sample.
const writeMargin = 5 * time.Second

var servePushInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the status dashboard",
	Long: `Loads the configuration file and serves the JSON status API, the WebSocket
feed and the static dashboard until interrupted.

When redis.url is set the mesh report is also published to Redis, and when
history.path is set every fresh game server query is recorded in SQLite.`,
	Example: `  # Serve with ./dashsrv.yaml (written with defaults if missing)
  dashsrv serve

  # Serve another config with debug logging
  dashsrv serve --config /etc/dashsrv.yaml --debug`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	node := nodeName(cfg)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *history.Store
	var recorder status.Recorder
	var historySource dashboard.HistorySource
	if cfg.History.Path != "" {
		store, err = history.OpenStore(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		recorder, historySource = store, store
		fmt.Printf("   - History: %s (retention %s)\n", cfg.History.Path, cfg.History.Retention())
	}

	svc := newStatusService(cfg, node, recorder)

	var publisher *heartbeat.RedisPublisher
	if cfg.Redis.URL != "" {
		publisher, err = heartbeat.NewRedisPublisher(heartbeat.RedisPublisherConfig{
			RedisURL:      cfg.Redis.URL,
			RedisPassword: cfg.Redis.Password,
			NodeName:      node,
			Interval:      cfg.Redis.Interval(),
			Channel:       cfg.Redis.Channel,
			DebugFunc:     Debug,
		}, svc)
		if err != nil {
			return fmt.Errorf("redis publisher: %w", err)
		}
		defer publisher.Close()
		fmt.Printf("   - Publishing to %s every %s\n", publisher.PubSubChannel(), publisher.Interval())
	}

	server := dashboard.NewServer(dashboard.Config{
		Host:           cfg.HostIP,
		Port:           cfg.HostPort,
		Version:        Version,
		StaticDir:      cfg.StaticDir,
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
		PushInterval:   servePushInterval,
		WriteTimeout:   cfg.ResponseBudget() + writeMargin,
		Debug:          cfg.Debug || debugMode,
	}, svc, historySource, nil)

	goodColor.Printf("dashsrv %s (%s) serving %d game, %d media, %d peer(s)\n",
		Version, node, len(svc.GameServers()), len(svc.MediaServers()), len(cfg.ServersOfType(config.TypeDashboard)))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	if publisher != nil {
		g.Go(func() error {
			return publisher.Start(gctx)
		})
	}
	if store != nil {
		g.Go(func() error {
			return pruneLoop(gctx, store, cfg.History.Retention(), pruneEvery)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Println("dashsrv stopped")
	return nil
}

type pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// pruneLoop deletes samples older than retention now and then every interval
// until ctx is cancelled. Failures are reported and retried next round.
func pruneLoop(ctx context.Context, p pruner, retention, every time.Duration) error {
	prune := func() {
		n, err := p.Prune(ctx, time.Now().Add(-retention))
		switch {
		case err != nil && ctx.Err() == nil:
			warnColor.Printf("   - Warning: history prune failed: %v\n", err)
		case n > 0:
			Debug("pruned %d history sample(s)", n)
		}
	}

	prune()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			prune()
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().DurationVar(&servePushInterval, "push-interval", dashboard.DefaultPushInterval, "WebSocket update interval")
}
