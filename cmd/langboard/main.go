// langboard runs the bot trigger and dispatch engine: the admin API
// server, the background dispatch worker, and the cron fire command
// installed in crontab entries.
//
// Wiring is environment-driven: MAIN_DATABASE_URL selects the SQLite
// store (in-memory store without it), CACHE_TYPE=redis selects the Redis
// broker and cache-backed broadcast queue, and BROADCAST_DIR selects the
// file-backed broadcast spool.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	engine "github.com/langboard/engine"
	"github.com/langboard/engine/api"
	"github.com/langboard/engine/broadcast"
	"github.com/langboard/engine/schedule"
	"github.com/langboard/engine/store/memory"
	"github.com/langboard/engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return errors.New("a command is required")
	}

	switch os.Args[1] {
	case "serve":
		return runServe(os.Args[2:])
	case "run:broker":
		return runBroker(os.Args[2:])
	case "run:bot:cron":
		return runCron(os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", os.Args[1])
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: langboard <command> [flags]

commands:
  serve              run the admin API server
  run:broker         run the dispatch worker pool
  run:bot:cron SPEC  fire schedules due for the given cron spec`)
}

// env collects the environment-driven configuration.
type env struct {
	databaseURL  string
	cacheType    string
	redisURL     string
	environment  string
	broadcastDir string
	crontabPath  string
	projectName  string
	workers      int
}

func readEnv() env {
	e := env{
		databaseURL:  os.Getenv("MAIN_DATABASE_URL"),
		cacheType:    os.Getenv("CACHE_TYPE"),
		redisURL:     os.Getenv("REDIS_URL"),
		environment:  os.Getenv("ENVIRONMENT"),
		broadcastDir: os.Getenv("BROADCAST_DIR"),
		crontabPath:  os.Getenv("CRONTAB_PATH"),
		projectName:  os.Getenv("PROJECT_NAME"),
	}
	if e.redisURL == "" {
		e.redisURL = "redis://localhost:6379/0"
	}
	if e.projectName == "" {
		e.projectName = "langboard"
	}
	if n, err := strconv.Atoi(os.Getenv("WORKER")); err == nil && n > 0 {
		e.workers = n
	}
	return e
}

func newLogger(e env) *slog.Logger {
	var handler slog.Handler
	if e.environment == "development" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}
	return slog.New(handler).With("service", e.projectName)
}

// buildEngine assembles an Engine from the environment. The returned
// cleanup closes the store and any Redis connection.
func buildEngine(ctx context.Context, e env, logger *slog.Logger, extra ...engine.Option) (*engine.Engine, func(), error) {
	opts := []engine.Option{engine.WithLogger(logger)}
	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if e.databaseURL != "" {
		st, err := sqlite.Open(ctx, e.databaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { st.Close() })
		opts = append(opts, engine.WithStore(st))
	} else {
		opts = append(opts, engine.WithStore(memory.New()))
	}

	var client redis.UniversalClient
	if e.cacheType == "redis" {
		redisOpts, err := redis.ParseURL(e.redisURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		c := redis.NewClient(redisOpts)
		cleanups = append(cleanups, func() { c.Close() })
		client = c
		opts = append(opts, engine.WithRedisBroker(client))
	}

	switch {
	case client != nil:
		opts = append(opts, engine.WithBroadcast(broadcast.NewCache(client, logger)))
	case e.broadcastDir != "":
		spool, err := broadcast.NewSpool(e.broadcastDir, true, logger)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		opts = append(opts, engine.WithBroadcast(spool))
	}

	if e.crontabPath != "" {
		opts = append(opts, engine.WithCronBackend(schedule.NewCrontab(e.crontabPath)))
	}
	if exe, err := os.Executable(); err == nil {
		opts = append(opts, engine.WithCronCommand(exe+" run:bot:cron"))
	}
	if e.workers > 0 {
		opts = append(opts, engine.WithConcurrency(e.workers))
	}
	opts = append(opts, extra...)

	eng, err := engine.New(opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return eng, cleanup, nil
}

func runServe(args []string) error {
	flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	addr := flagSet.String("addr", ":8080", "listen address for the admin API")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	e := readEnv()
	logger := newLogger(e)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, cleanup, err := buildEngine(ctx, e, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// Re-align crontab entries with the schedules that survived restart.
	if err := eng.Reconciler().Reconcile(ctx); err != nil {
		logger.Error("schedule reconcile failed", "error", err)
	}

	eng.Start(ctx)
	defer eng.Stop()

	server := &http.Server{
		Addr:              *addr,
		Handler:           api.NewHandler(eng, nil, nil, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin api listening", "addr", *addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runBroker(args []string) error {
	flagSet := pflag.NewFlagSet("run:broker", pflag.ContinueOnError)
	concurrency := flagSet.Int("concurrency", 0, "number of dispatch workers (default: WORKER env or 8)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	e := readEnv()
	logger := newLogger(e)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var extra []engine.Option
	if *concurrency > 0 {
		extra = append(extra, engine.WithConcurrency(*concurrency))
	}

	eng, cleanup, err := buildEngine(ctx, e, logger, extra...)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("dispatch worker started")
	eng.Start(ctx)
	<-ctx.Done()
	eng.Stop()
	logger.Info("dispatch worker stopped")
	return nil
}

func runCron(args []string) error {
	flagSet := pflag.NewFlagSet("run:bot:cron", pflag.ContinueOnError)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return errors.New("run:bot:cron requires exactly one cron spec argument")
	}
	interval := flagSet.Arg(0)

	e := readEnv()
	logger := newLogger(e)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, cleanup, err := buildEngine(ctx, e, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// The in-process broker must be draining for memory-backed setups;
	// with the Redis broker this enqueues for the worker pool instead.
	eng.Start(ctx)
	defer eng.Stop()

	return eng.Firer().FireDue(ctx, interval)
}
