package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"classcal/internal/config"
	"classcal/internal/ics"
	appLog "classcal/internal/log"
	"classcal/internal/publish"
	"classcal/internal/recurrence"
	"classcal/internal/storage"
	"classcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	describe   string
	export     string
}

func main() {
	flags := parseFlags()

	// -describe needs neither config nor storage.
	if flags.describe != "" {
		os.Exit(runDescribe(flags.describe))
	}

	appLog.Info("classcal starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if lvl, err := appLog.ParseLevel(conf.LogLevel); err == nil {
		appLog.SetLevel(lvl)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"database_path", conf.DatabasePath,
		"all_day_rule", conf.AllDayRule,
		"publish_cron", conf.Publish.Cron,
		"export", flags.export,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := storage.Open(ctx, conf.DatabasePath)
	if err != nil {
		appLog.Error("failed to open database", err, "path", conf.DatabasePath)
		os.Exit(1)
	}
	defer db.Close()
	events := storage.NewEventRepository(db)

	if flags.export != "" {
		if err := runExport(ctx, conf, events, flags.export); err != nil {
			appLog.Error("export failed", err, "path", flags.export)
			os.Exit(1)
		}
		return
	}

	publisher := publish.New(events, conf.Publish, conf.Location())
	if err := publisher.Start(); err != nil {
		appLog.Error("failed to start publisher", err)
		os.Exit(1)
	}
	defer publisher.Stop()

	fetcher := ics.NewFetcher(filepath.Join(filepath.Dir(conf.DatabasePath), "ics-cache"), nil)
	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           web.NewServer(conf, events, fetcher).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP server shutdown failed", err)
	}
	appLog.Info("classcal exiting")
}

// runDescribe prints the English text of an encoded rule.
func runDescribe(text string) int {
	rule, err := recurrence.Decode(text)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(recurrence.Describe(rule))
	return 0
}

// runExport writes the feed for every stored event to path once.
func runExport(ctx context.Context, conf *config.Config, events *storage.EventRepository, path string) error {
	all, err := events.List(ctx, time.Time{}, time.Time{})
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := ics.Write(&buf, all, ics.ExportOptions{
		Name:     conf.Publish.CalendarName,
		Location: conf.Location(),
	}); err != nil {
		return err
	}
	if path == "-" {
		_, err := os.Stdout.Write(buf.Bytes())
		return err
	}
	if err := config.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return err
	}
	appLog.Info("feed exported", "path", path, "events", len(all))
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/classcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.describe, "describe", "", "Print the English description of an encoded rule and exit")
	flag.StringVar(&cfg.export, "export", "", "Write the iCalendar feed to this path (- for stdout) and exit")

	flag.Parse()

	return cfg
}
