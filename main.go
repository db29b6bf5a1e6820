// Command replaybot watches Twitch chat for replay codes and unit names and
// answers with game summaries and unit cards.
//
// It:
//   - Loads configuration (bot.toml and environment) and initializes structured logging.
//   - Loads the unit catalog and opens the replay cache (directory or Postgres).
//   - Joins the configured channels and handles channel messages and whispers.
//   - Exposes a minimal HTTP server with /healthz, /readyz and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/replaybot/bot"
	"github.com/onnwee/replaybot/chat"
	"github.com/onnwee/replaybot/config"
	"github.com/onnwee/replaybot/db"
	"github.com/onnwee/replaybot/replay"
	"github.com/onnwee/replaybot/server"
	"github.com/onnwee/replaybot/telemetry"
	"github.com/onnwee/replaybot/twitchapi"
	"github.com/onnwee/replaybot/unit"
)

func main() {
	// Local dev convenience only; production relies on real env
	_ = godotenv.Load(".env")

	setupLogging()

	if err := run(); err != nil {
		slog.Error("replaybot exited with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		format = "text"
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("replaybot", "1.0.0")
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdownTracing()

	catalog, err := unit.LoadCatalog(cfg.Unit.Catalog)
	if err != nil {
		return err
	}
	slog.Info("unit catalog loaded", slog.Int("units", len(catalog)), slog.String("path", cfg.Unit.Catalog))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var checks []server.Check
	storage, closeStorage, err := openStorage(ctx, cfg, &checks)
	if err != nil {
		return err
	}
	defer closeStorage()

	fetcher, err := newFetcher(ctx, cfg)
	if err != nil {
		return err
	}
	store := replay.NewStore(storage, fetcher)
	defer store.Wait()

	var sinkOpts []chat.SinkOption
	sinkOpts = append(sinkOpts, chat.WithRate(cfg.Chat.MessagesPerSecond, 1))
	if w, botID, err := whisperClient(ctx, cfg); err != nil {
		slog.Warn("whisper replies disabled", slog.Any("err", err), slog.String("component", "twitchapi"))
	} else if w != nil {
		sinkOpts = append(sinkOpts, chat.WithWhispers(w, botID))
	}

	// The bridge owns the connection the sink posts through, so the
	// orchestrator is attached after both exist.
	forward := &forwardHandler{}
	bridge, sink := chat.NewBridge(cfg.Twitch.Username, cfg.Twitch.OAuthToken, cfg.Twitch.Channels, forward, sinkOpts...)
	forward.next = bot.New(bot.Config{
		ReplayLinkURL:  cfg.Replay.LinkURL,
		UnitLinkURL:    cfg.Unit.LinkURL,
		UnitImageURL:   cfg.Unit.ImageURL,
		MaxCodes:       cfg.Replay.MaxPerMessage,
		MaxUnits:       cfg.Unit.MaxPerMessage,
		ReplayInterval: cfg.ReplayInterval(),
		UnitInterval:   cfg.UnitInterval(),
		IgnoredWords:   cfg.Replay.IgnoredWords,
		IgnoredAliases: cfg.Unit.IgnoredAliases,
	}, catalog, store, sink)

	checks = append(checks, server.Check{Name: "catalog", Fn: func(context.Context) error {
		if len(catalog) == 0 {
			return errors.New("unit catalog empty")
		}
		return nil
	}})
	checks = append(checks, server.Check{Name: "chat", Fn: func(context.Context) error {
		if !bridge.Connected() {
			return errors.New("chat not connected")
		}
		return nil
	}})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx, cfg.HTTPAddr, server.NewMux(checks...))
	})
	g.Go(func() error {
		return bridge.Run(gctx)
	})
	slog.Info("replaybot started", slog.Any("channels", cfg.Twitch.Channels), slog.String("http_addr", cfg.HTTPAddr))

	err = g.Wait()
	slog.Info("shutting down", slog.Int("pending_placeholders", sink.Pending()))
	return err
}

// forwardHandler hands chat messages to the orchestrator once it is built.
type forwardHandler struct {
	next chat.Handler
}

func (f *forwardHandler) HandleMessage(ctx context.Context, msg bot.Message) {
	f.next.HandleMessage(ctx, msg)
}

func openStorage(ctx context.Context, cfg *config.Config, checks *[]server.Check) (replay.Storage, func(), error) {
	switch cfg.Replay.CacheBackend {
	case "postgres":
		database, err := db.Connect(ctx, cfg.Replay.DBDsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, nil, fmt.Errorf("migrate db: %w", err)
		}
		cache := &db.ReplayCache{DB: database}
		db.StartPruneJob(ctx, cache, cfg.Replay.CachePruneInterval.Duration, cfg.Replay.CacheMaxAge.Duration)
		*checks = append(*checks, server.Check{Name: "database", Fn: cache.Ping})
		closeFn := func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}
		return cache, closeFn, nil
	default:
		fst, err := replay.NewFileStorage(cfg.Replay.CacheDir)
		if err != nil {
			return nil, nil, err
		}
		return fst, func() {}, nil
	}
}

func newFetcher(ctx context.Context, cfg *config.Config) (replay.Fetcher, error) {
	if cfg.Replay.FetchBackend == "gcs" {
		return replay.NewGCSFetcher(ctx, cfg.Replay.GCSBucket, cfg.Replay.GCSObject)
	}
	return &replay.HTTPFetcher{
		URLTemplate: cfg.Replay.DataURL,
		HTTPClient:  &http.Client{Timeout: cfg.Replay.FetchTimeout.Duration},
	}, nil
}

// whisperClient returns nil when no client id is configured. The bot's user
// id is looked up with an app token when a client secret is available.
func whisperClient(ctx context.Context, cfg *config.Config) (chat.Whisperer, string, error) {
	if cfg.Twitch.ClientID == "" {
		return nil, "", nil
	}
	helix := twitchapi.NewHelixClient(ctx, cfg.Twitch.ClientID, twitchapi.UserTokenSource(cfg.Twitch.OAuthToken))
	lookup := helix
	if cfg.Twitch.ClientSecret != "" {
		ts, err := twitchapi.AppCredentials{ClientID: cfg.Twitch.ClientID, ClientSecret: cfg.Twitch.ClientSecret}.TokenSource(ctx)
		if err != nil {
			return nil, "", err
		}
		lookup = twitchapi.NewHelixClient(ctx, cfg.Twitch.ClientID, ts)
	}
	lctx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()
	botID, err := lookup.GetUserID(lctx, cfg.Twitch.Username)
	if err != nil {
		return nil, "", fmt.Errorf("lookup bot user id: %w", err)
	}
	return helix, botID, nil
}
