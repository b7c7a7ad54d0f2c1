package serverrun

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	cfgpkg "github.com/marcusmattus/gami-protocol-mcp/internal/config"
	"github.com/marcusmattus/gami-protocol-mcp/internal/runtime"
	httpserver "github.com/marcusmattus/gami-protocol-mcp/internal/server/http"
	logpkg "github.com/marcusmattus/gami-protocol-mcp/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// small wrapper to allow testing; replaced by os.Getenv at build time
var getenv = func(key string) string { return os.Getenv(key) }

type Options struct {
	// HTTPAddr overrides Config.ListenAddr when set.
	HTTPAddr string
	Config   cfgpkg.Config
}

// Run starts the relay and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	// Be robust to callers that don't pass a signal-aware context. We layer
	// a local signal context over the provided one.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := opts.HTTPAddr
	if addr == "" {
		addr = opts.Config.ListenAddr
	}

	// Build process-wide logger using env/ApplyConfig; defaults: level=info, format=text
	cfg := &logpkg.Config{
		Level:  getenvDefault("RELAY_LOG_LEVEL", "info"),
		Format: getenvDefault("RELAY_LOG_FORMAT", "text"),
	}
	procLogger, err := logpkg.ApplyConfig(cfg)
	if err != nil {
		lvl := logpkg.InfoLevel
		if l, e := logpkg.ParseLevel(cfg.Level); e == nil {
			lvl = l
		}
		procLogger = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}

	// Redirect stdlib logs (e.g., net/http) to our logger
	logpkg.RedirectStdLog(procLogger)

	rt, err := runtime.Open(runtime.Options{Config: opts.Config, Logger: procLogger})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	procLogger.Info("Starting relay server",
		logpkg.Str("http", addr),
		logpkg.Str("instance", rt.InstanceID().Short()),
		logpkg.Bool("bus", rt.BusEnabled()),
		logpkg.Str("channel", opts.Config.Bus.Channel),
		logpkg.Int("ring_capacity", opts.Config.Ring.Capacity),
		logpkg.Int("queue_bound", opts.Config.Subscriber.QueueBound),
		logpkg.Str("level", cfg.Level),
		logpkg.Str("format", cfg.Format),
	)

	hsrv := httpserver.New(rt, procLogger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, addr); err != nil && sctx.Err() == nil {
			procLogger.Error("http server error", logpkg.Err(err))
		}
	}()

	<-sctx.Done()
	// Shut down the server before the runtime so in-flight sessions end
	// cleanly ahead of dispatcher close.
	hsrv.Close()
	wg.Wait()
	return nil
}
