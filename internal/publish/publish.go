// Package publish periodically writes the iCalendar feed to disk so it can be
// served by any static file server.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"classcal/internal/config"
	"classcal/internal/ics"
	appLog "classcal/internal/log"
	"classcal/internal/model"
)

// EventLister is the storage view the publisher needs.
type EventLister interface {
	List(ctx context.Context, from, to time.Time) ([]model.Event, error)
}

// Publisher runs the feed export on a cron schedule.
type Publisher struct {
	events EventLister
	cfg    config.PublishConfig
	loc    *time.Location

	cron *cron.Cron

	mu      sync.Mutex // serializes RunOnce
	lastRun time.Time
	lastErr error
}

// New creates a Publisher. Start must be called to begin scheduling.
func New(events EventLister, cfg config.PublishConfig, loc *time.Location) *Publisher {
	if loc == nil {
		loc = time.UTC
	}
	return &Publisher{
		events: events,
		cfg:    cfg,
		loc:    loc,
		cron:   cron.New(cron.WithLocation(loc)),
	}
}

// Start schedules the export and runs it once immediately in the background.
// An empty cron expression disables publishing.
func (p *Publisher) Start() error {
	if p.cfg.Cron == "" {
		appLog.Info("feed publishing disabled")
		return nil
	}
	if p.cfg.Path == "" {
		return errors.New("publish: path is empty")
	}

	_, err := p.cron.AddFunc(p.cfg.Cron, func() {
		p.RunOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("publish: scheduling %q: %w", p.cfg.Cron, err)
	}

	go p.RunOnce(context.Background())

	p.cron.Start()
	appLog.Info("feed publisher started", "cron", p.cfg.Cron, "path", p.cfg.Path)
	return nil
}

// Stop waits for a running export to finish.
func (p *Publisher) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
	appLog.Info("feed publisher stopped")
}

// RunOnce exports every stored event and replaces the feed file.
func (p *Publisher) RunOnce(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.publish(ctx)
	p.lastRun = time.Now()
	p.lastErr = err
	if err != nil {
		appLog.Error("feed publish failed", err, "path", p.cfg.Path)
	}
	return err
}

// LastRun reports when RunOnce last finished and its error.
func (p *Publisher) LastRun() (time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRun, p.lastErr
}

func (p *Publisher) publish(ctx context.Context) error {
	events, err := p.events.List(ctx, time.Time{}, time.Time{})
	if err != nil {
		return fmt.Errorf("publish: listing events: %w", err)
	}

	var buf bytes.Buffer
	if err := ics.Write(&buf, events, ics.ExportOptions{
		Name:     p.cfg.CalendarName,
		Location: p.loc,
	}); err != nil {
		return fmt.Errorf("publish: rendering feed: %w", err)
	}

	if err := config.WriteFileAtomic(p.cfg.Path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("publish: writing %s: %w", p.cfg.Path, err)
	}

	appLog.Info("feed published", "path", p.cfg.Path, "events", len(events), "bytes", buf.Len())
	return nil
}
