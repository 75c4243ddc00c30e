package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"inputfeed/config"
	"inputfeed/internal/archive"
	"inputfeed/internal/auth"
	"inputfeed/internal/capture"
	"inputfeed/internal/console"
	"inputfeed/internal/handler"
	"inputfeed/internal/input"
	"inputfeed/internal/redis"
	"inputfeed/internal/repository"
	"inputfeed/internal/server"
	"inputfeed/internal/storage"
	"inputfeed/internal/websocket"
	"inputfeed/pkg/database"
	"inputfeed/pkg/logger"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const usage = `
inputfeed - global input event relay

Usage:
  inputfeed [flags] [command]

Commands:
  run         Decode capture payloads and deliver them to the console,
              websocket viewers and (optionally) a Redis channel
  token       Mint a stream token for /v1/stream

Flags:
  -subject string   Token subject (default "viewer")
  -types string     Comma separated event types the token may stream (default all)

Configuration is read from the environment and an optional .env file.

Examples:
  capture-hook | inputfeed run
  INPUT_SOURCE=redis inputfeed run
  JWT_SECRET=s3cret inputfeed -subject dashboard -types KeyPress,KeyRelease token
`

func main() {
	subject := flag.String("subject", "viewer", "Token subject")
	types := flag.String("types", "", "Comma separated event types the token may stream")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	command := "run"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg := config.LoadConfig()

	switch command {
	case "run":
		if err := runRelay(cfg); err != nil {
			log.Fatalf("relay stopped: %v", err)
		}
	case "token":
		if err := mintToken(cfg, *subject, *types); err != nil {
			log.Fatalf("failed to mint token: %v", err)
		}
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runRelay(cfg *config.Config) error {
	l, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy, err := input.ParsePolicy(cfg.DispatchPolicy)
	if err != nil {
		return err
	}
	registry := input.NewRegistry(input.WithPolicy(policy))

	format, err := console.ParseFormat(cfg.ConsoleFormat)
	if err != nil {
		return err
	}
	var printer *console.Printer
	if format != console.FormatOff {
		printer = console.NewPrinter(os.Stdout, console.Options{
			Format:       format,
			Types:        cfg.ConsoleTypes,
			MoveInterval: time.Duration(cfg.ConsoleMoveIntervalMS) * time.Millisecond,
		})
		registry.Register(printer.Callback())
		if cfg.ConsoleStatsSec > 0 {
			go printer.RunStats(ctx, time.Duration(cfg.ConsoleStatsSec)*time.Second)
		}
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)
	registry.Register(hub.Callback())

	var tokens *auth.TokenService
	if cfg.JWTSecret != "" {
		tokens, err = auth.NewTokenService(cfg.JWTSecret, time.Duration(cfg.TokenTTLMin)*time.Minute)
		if err != nil {
			return err
		}
	} else {
		l.Warnf("JWT_SECRET is empty, /v1/stream accepts anonymous viewers")
	}

	routes := server.Routes{Registry: registry, Hub: hub}
	var viewers websocket.ViewerTracker

	var client *goredis.Client
	if cfg.InputSource == "redis" || cfg.RedisPublishChannel != "" {
		client = redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()

		pinger := redis.NewPinger(client)
		if err := pinger.Ping(ctx); err != nil {
			return fmt.Errorf("connect to redis at %s:%s: %w", cfg.RedisHost, cfg.RedisPort, err)
		}
		store := redis.NewViewerStore(client, 0)
		viewers = store
		routes.Redis = pinger
		routes.Viewers = store
		if cfg.StreamRateLimit > 0 {
			routes.Limiter = redis.NewStreamLimiter(client, cfg.StreamRateLimit, time.Minute)
		}
		if cfg.RedisPublishChannel != "" {
			registry.Register(redis.NewPublisher(client, cfg.RedisPublishChannel).Callback())
		}
	}

	if cfg.ArchiveBucket != "" {
		store, err := storage.NewClient(ctx, storage.S3Config{
			Region:    cfg.ArchiveRegion,
			Bucket:    cfg.ArchiveBucket,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Endpoint:  cfg.ArchiveEndpoint,
		})
		if err != nil {
			return fmt.Errorf("init recording archive: %w", err)
		}
		recorder := archive.NewRecorder(store, archive.Options{
			Prefix:     cfg.ArchivePrefix,
			MaxRecords: cfg.ArchiveMaxRecords,
			Interval:   time.Duration(cfg.ArchiveFlushSec) * time.Second,
			Logger:     l,
		})
		registry.Register(recorder.Callback())
		archiveDone := make(chan struct{})
		go func() {
			recorder.Run(ctx)
			close(archiveDone)
		}()
		defer func() {
			stop()
			<-archiveDone
		}()
		l.Infof("recording to s3://%s/%s/%s", cfg.ArchiveBucket, cfg.ArchivePrefix, recorder.Session())
	}

	authz := websocket.NewAuthorizer(tokens)
	routes.Stream = websocket.NewHandler(authz, hub, viewers, l)

	if cfg.EventLogDriver != "" {
		db, err := database.Open(ctx, cfg.EventLogDriver, cfg.EventLogDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := repository.InitSchema(ctx, db); err != nil {
			return err
		}
		dialect := repository.Postgres
		if cfg.EventLogDriver == database.DriverSQLite {
			dialect = repository.SQLite
		}
		events := repository.NewEventRepository(db, dialect)
		registry.Register(repository.EventLogCallback(events, uuid.NewString(), 2*time.Second))
		routes.Events = handler.NewEventsHandler(events, authz)
	}

	var source capture.Source
	switch cfg.InputSource {
	case "stdin":
		source = capture.NewLineSource(os.Stdin)
	case "redis":
		source = redis.NewSubscriber(client, cfg.RedisCapturePattern)
	default:
		return fmt.Errorf("unknown INPUT_SOURCE %q", cfg.InputSource)
	}

	runner, err := capture.NewRunner(capture.Options{
		Source:             source,
		Registry:           registry,
		Logger:             l,
		SkipMalformed:      cfg.SkipMalformed,
		SkipCallbackErrors: cfg.SkipCallbackErrors,
	})
	if err != nil {
		return err
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(routes)
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Run(ctx) }()

	l.Logger.Info("relay started",
		zap.String("source", cfg.InputSource),
		zap.String("policy", policy.String()),
		zap.Int("callbacks", registry.Len()),
	)

	out := awaitRunner(ctx, runner)
	res, runErr := out.res, out.err
	stop()
	if err := <-serveErr; err != nil {
		l.Errorf("http server: %v", err)
	}

	if printer != nil {
		for tag, n := range printer.Counts() {
			l.Debugf("printed %d %s events", n, tag)
		}
		if cfg.ConsoleStatsSec > 0 {
			_ = printer.WriteStats()
		}
	}
	l.Logger.Info("relay finished",
		zap.Int("received", res.Received),
		zap.Int("delivered", res.Delivered),
		zap.Int("malformed", res.Malformed),
		zap.Int("callback_errors", res.CallbackErrors),
	)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

type runOutcome struct {
	res capture.Result
	err error
}

// awaitRunner runs r until it finishes or ctx is cancelled. A source blocked
// in a read that ignores ctx (a terminal stdin) gets one second to notice.
func awaitRunner(ctx context.Context, r *capture.Runner) runOutcome {
	done := make(chan runOutcome, 1)
	go func() {
		res, err := r.Run(ctx)
		done <- runOutcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
	}
	select {
	case out := <-done:
		return out
	case <-time.After(time.Second):
		return runOutcome{err: ctx.Err()}
	}
}

func mintToken(cfg *config.Config, subject, types string) error {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, time.Duration(cfg.TokenTTLMin)*time.Minute)
	if err != nil {
		return err
	}
	var allowed []string
	for _, t := range strings.Split(types, ",") {
		if t = strings.TrimSpace(t); t == "" {
			continue
		}
		if !input.Tag(t).Known() {
			return fmt.Errorf("unknown event type %q", t)
		}
		allowed = append(allowed, t)
	}
	token, err := tokens.Issue(subject, allowed)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
