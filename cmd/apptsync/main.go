package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"apptsync/internal/batch"
	"apptsync/internal/codec"
	"apptsync/internal/config"
	"apptsync/internal/directory"
	"apptsync/internal/identity"
	appLog "apptsync/internal/log"
	"apptsync/internal/model"
	"apptsync/internal/upstream"
	"apptsync/internal/visibility"
	"apptsync/internal/web"
)

const (
	version         = "0.1.0"
	shutdownTimeout = 15 * time.Second
)

type flagConfig struct {
	configPath string
	listen     string
	logLevel   string
	once       bool
	days       int
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI flags override the config file when set.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.logLevel != "" {
		conf.Log.Level = flags.logLevel
	}
	appLog.Init(conf.Log.Level, conf.Log.Format)
	appLog.Info("apptsync starting", "version", version)

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone", err)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"refresh", conf.RefreshCron,
		"default_duration", conf.DefaultDuration().String(),
		"upstream", appLog.RedactURL(conf.Upstream.BaseURL),
		"cache_path", conf.Upstream.CachePath,
		"basic_auth", conf.BasicAuth != nil,
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cache *upstream.Cache
	if conf.Upstream.CachePath != "" {
		cache, err = upstream.OpenCache(conf.Upstream.CachePath)
		if err != nil {
			appLog.Error("failed to open upstream cache", err, "path", conf.Upstream.CachePath)
			os.Exit(1)
		}
		defer cache.Close()
	}

	client, err := upstream.New(upstream.Options{
		BaseURL: conf.Upstream.BaseURL,
		Token:   conf.Upstream.Token,
		Timeout: conf.UpstreamTimeout(),
		Cache:   cache,
	})
	if err != nil {
		appLog.Error("failed to create upstream client", err)
		os.Exit(1)
	}

	dir := directory.New(client)

	if flags.once {
		if err := runOnce(ctx, conf, loc, client, dir, flags.days); err != nil {
			appLog.Error("one-shot sync failed", err)
			os.Exit(1)
		}
		return
	}

	if err := dir.Start(ctx, conf.RefreshCron); err != nil {
		appLog.Error("failed to start staff directory refresher", err)
		os.Exit(1)
	}
	defer dir.Stop()

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           web.NewServer(conf, loc, client, dir).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("graceful shutdown failed", err)
			_ = srv.Close()
		}
	}

	appLog.Info("apptsync exiting")
}

// runOnce refreshes the staff directory, evaluates the next days of
// appointments once and logs a summary of what would be shown.
func runOnce(ctx context.Context, conf *config.Config, loc *time.Location, client *upstream.Client, dir *directory.Directory, days int) error {
	if err := dir.Refresh(ctx); err != nil {
		appLog.Error("staff refresh failed; continuing without names", err)
	}

	win := visibility.DaysFrom(time.Now(), loc, days)
	list, err := client.ListAppointments(ctx, win.Start, win.End)
	if err != nil {
		return err
	}

	resolver := identity.NewResolver(
		identity.NewPrefixValidator(conf.Identity.Prefix, conf.Identity.MinLength),
		conf.Phone.CountryCode,
	)
	mapper := batch.New(codec.New(loc, conf.DefaultClientLabel), resolver)
	decoded := mapper.DecodeRaw(list.Records)
	apps := dir.Snapshot().Enrich(decoded.Appointments)

	results := visibility.New(loc, conf.DefaultDuration()).
		EvaluateAll(apps, win.Start, win.End, model.FilterConfig{StaffSelectionMode: model.StaffModeAll})

	hidden := map[model.Reason]int{}
	for _, r := range results {
		if !r.Renderable {
			hidden[r.Reason]++
		}
	}
	for reason, n := range hidden {
		appLog.Info("hidden appointments", "reason", string(reason), "count", n)
	}
	appLog.Info("one-shot sync completed",
		"range_start", win.Start.Format(time.RFC3339),
		"range_end", win.End.Format(time.RFC3339),
		"total", len(results),
		"renderable", len(visibility.Renderable(results)),
		"rejected", len(decoded.Rejected),
		"from_cache", list.FromCache,
	)
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVarP(&cfg.configPath, "config", "c", "/etc/apptsync/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch and evaluate the upcoming window once, log a summary and exit")
	flag.IntVar(&cfg.days, "days", 7, "Window length in days for --once")

	flag.Parse()

	return cfg
}
