package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/birabittoh/pr-manager/internal/api"
	"github.com/birabittoh/pr-manager/internal/health"
	"github.com/birabittoh/pr-manager/internal/logging"
	"github.com/birabittoh/pr-manager/internal/publications"
	"github.com/birabittoh/pr-manager/internal/workflow"
)

// DefaultPollInterval is the refresh cadence used when Options leaves it unset.
const DefaultPollInterval = 30 * time.Second

// View names the visible dashboard panel.
type View string

// Dashboard views.
const (
	ViewWorkflow     View = "workflow"
	ViewPublications View = "publications"
)

// ParseView maps a configuration value to a View.
func ParseView(value string) (View, bool) {
	switch View(value) {
	case ViewWorkflow, ViewPublications:
		return View(value), true
	default:
		return "", false
	}
}

// Remote is the subset of the API client the controller triggers directly.
type Remote interface {
	QueueDownload(ctx context.Context, req api.DownloadRequest) (api.DownloadResult, error)
	Check(ctx context.Context) ([]json.RawMessage, error)
}

// Options configures a Controller.
type Options struct {
	PollInterval time.Duration
	View         View
	Logger       *slog.Logger
}

// TickReport lists which kinds a Tick started. A kind is skipped when it is
// hidden, not needed, or a request of that kind is still outstanding.
type TickReport struct {
	Health       bool
	Workflow     bool
	Publications bool
}

// Controller owns the refresh cadence and turns intents into store and pager calls.
type Controller struct {
	store   *publications.Store
	pager   *workflow.Pager
	monitor *health.Monitor
	remote  Remote
	logger  *slog.Logger

	interval time.Duration

	mu               sync.Mutex
	view             View
	pendingFirstPage bool

	healthInFlight       atomic.Int32
	workflowInFlight     atomic.Int32
	publicationsInFlight atomic.Int32

	changes chan struct{}
	wg      sync.WaitGroup
}

// New wires a controller over its collaborators.
func New(store *publications.Store, pager *workflow.Pager, monitor *health.Monitor, remote Remote, opts Options) *Controller {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	view := opts.View
	if _, ok := ParseView(string(view)); !ok {
		view = ViewWorkflow
	}
	c := &Controller{
		store:    store,
		pager:    pager,
		monitor:  monitor,
		remote:   remote,
		logger:   logging.NewComponentLogger(opts.Logger, "dashboard"),
		interval: interval,
		view:     view,
		changes:  make(chan struct{}, 1),
	}
	store.OnChange(c.notify)
	return c
}

// Store returns the publication cache.
func (c *Controller) Store() *publications.Store { return c.store }

// Pager returns the workflow pager.
func (c *Controller) Pager() *workflow.Pager { return c.pager }

// Monitor returns the health monitor.
func (c *Controller) Monitor() *health.Monitor { return c.monitor }

// Changes signals that rendered state changed. Signals are coalesced.
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

// View returns the visible panel.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// SetView switches the visible panel without loading anything.
func (c *Controller) SetView(view View) {
	c.mu.Lock()
	changed := c.view != view
	c.view = view
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// Run ticks once immediately and then every poll interval until ctx is done.
// It waits for in-flight ticks before returning.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer c.wg.Wait()

	c.goTick(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.goTick(ctx)
		}
	}
}

func (c *Controller) goTick(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Tick(ctx)
	}()
}

// Tick polls health, reloads the workflow window when it is visible, and
// reloads publications when the cache is missing or marked stale. It blocks
// until the kinds it started finish.
func (c *Controller) Tick(ctx context.Context) TickReport {
	var report TickReport
	var wg sync.WaitGroup

	if start(&c.healthInFlight) {
		report.Health = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer c.healthInFlight.Add(-1)
			c.monitor.Poll(ctx)
			c.notify()
		}()
	}

	if c.View() == ViewWorkflow && start(&c.workflowInFlight) {
		report.Workflow = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer c.workflowInFlight.Add(-1)
			if err := c.loadWorkflow(ctx); err != nil {
				c.logger.Debug("workflow poll failed", logging.Error(err))
			}
		}()
	}

	if (c.store.NeedsRefresh() || !c.store.Loaded()) && start(&c.publicationsInFlight) {
		report.Publications = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer c.publicationsInFlight.Add(-1)
			if err := c.store.Refresh(ctx); err != nil {
				c.logger.Debug("publication poll failed", logging.Error(err))
			}
		}()
	}

	wg.Wait()
	return report
}

// start claims an idle in-flight counter.
func start(counter *atomic.Int32) bool {
	return counter.CompareAndSwap(0, 1)
}

// loadWorkflow reloads the current window, or page 1 when a check scheduled it.
// The page 1 request stays pending until a load of it lands.
func (c *Controller) loadWorkflow(ctx context.Context) error {
	c.mu.Lock()
	firstPage := c.pendingFirstPage
	c.mu.Unlock()

	var err error
	if firstPage {
		_, search := c.pager.Query()
		_, err = c.pager.Load(ctx, 1, search)
		if err == nil {
			c.mu.Lock()
			c.pendingFirstPage = false
			c.mu.Unlock()
		}
	} else {
		_, err = c.pager.Refresh(ctx)
	}
	c.notify()
	if errors.Is(err, workflow.ErrStaleResultDiscarded) {
		return nil
	}
	return err
}

// resync reloads publications and, when visible, the workflow window in
// parallel. It reports whether either reload failed.
func (c *Controller) resync(ctx context.Context) bool {
	var g errgroup.Group
	g.Go(func() error {
		c.publicationsInFlight.Add(1)
		defer c.publicationsInFlight.Add(-1)
		return c.store.Refresh(ctx)
	})
	if c.View() == ViewWorkflow {
		g.Go(func() error {
			c.workflowInFlight.Add(1)
			defer c.workflowInFlight.Add(-1)
			return c.loadWorkflow(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Warn("re-sync after change failed; showing last known state", logging.Error(err))
		return true
	}
	return false
}

func (c *Controller) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}
