/**
 * @description
 * Cancellable periodic task behind the notification refresh. It is started on the
 * authenticated transition and stopped on logout or workspace teardown.
 *
 * @dependencies
 * - github.com/robfig/cron/v3: runs the fetch on an "@every" schedule.
 */
package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPollInterval is the notification refresh period.
const DefaultPollInterval = 30 * time.Second

// PollObserver receives the outcome of every poll.
type PollObserver interface {
	PollCompleted(err error)
}

// Poller runs fetch immediately on Start and then on a fixed interval until Stop.
type Poller struct {
	mu       sync.Mutex
	cron     *cron.Cron
	running  sync.WaitGroup
	interval time.Duration
	fetch    func(ctx context.Context) error
	logger   *slog.Logger
	observer PollObserver
}

func NewPoller(interval time.Duration, fetch func(ctx context.Context) error, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{interval: interval, fetch: fetch, logger: logger}
}

func (p *Poller) SetObserver(o PollObserver) { p.observer = o }

// Started reports whether the poller is running.
func (p *Poller) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cron != nil
}

// Start is a no-op when already started.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(p.logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	if _, err := c.AddFunc("@every "+p.interval.String(), p.run); err != nil {
		p.logger.Error("failed to schedule notification poll", "error", err)
		return
	}
	c.Start()
	p.cron = c

	p.running.Add(1)
	go func() {
		defer p.running.Done()
		p.run()
	}()
}

// Stop halts the schedule and waits for a fetch in progress. Stopping twice is safe.
func (p *Poller) Stop() {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	p.running.Wait()
}

func (p *Poller) run() {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()
	err := p.fetch(ctx)
	if err != nil {
		p.logger.Warn("notification poll failed", "error", err)
	}
	if p.observer != nil {
		p.observer.PollCompleted(err)
	}
}
