package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/birabittoh/pr-manager/internal/api"
	"github.com/birabittoh/pr-manager/internal/logging"
)

// ErrStaleResultDiscarded is returned by Load when a later Load was issued
// before this one resolved. The window is left untouched.
var ErrStaleResultDiscarded = errors.New("workflow result superseded by a newer request")

// DefaultPageSize is used when the pager is built with a non-positive size.
const DefaultPageSize = 20

// Source fetches one page of workflow entries.
type Source interface {
	Workflow(ctx context.Context, page, limit int, search string) (api.WorkflowPage, error)
}

// Resolver maps publication names to display labels.
type Resolver interface {
	Label(name string) (string, bool)
}

// Window is the most recently applied page of workflow entries.
type Window struct {
	Entries    []api.WorkflowEntry
	Page       int
	TotalPages int
	Search     string
	Stale      bool
	LoadedAt   time.Time
}

// Pager tracks the current workflow page and search term.
type Pager struct {
	source   Source
	resolver Resolver
	pageSize int
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	ticket uint64
	page   int
	search string
	window Window
	loaded bool
}

// New builds a pager reading from source and labelling rows through resolver.
func New(source Source, resolver Resolver, pageSize int, logger *slog.Logger) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{
		source:   source,
		resolver: resolver,
		pageSize: pageSize,
		logger:   logging.NewComponentLogger(logger, "workflow"),
		now:      time.Now,
		page:     1,
		window:   Window{Page: 1},
	}
}

// PageSize returns the number of entries requested per page.
func (p *Pager) PageSize() int {
	return p.pageSize
}

// Load requests page with search and applies the result if no later Load was issued meanwhile.
// On failure the previous window stays in place, marked stale.
func (p *Pager) Load(ctx context.Context, page int, search string) (Window, error) {
	if page < 1 {
		page = 1
	}
	search = strings.TrimSpace(search)

	p.mu.Lock()
	p.ticket++
	ticket := p.ticket
	p.page = page
	p.search = search
	p.mu.Unlock()

	result, err := p.source.Workflow(ctx, page, p.pageSize, search)

	p.mu.Lock()
	defer p.mu.Unlock()
	if ticket != p.ticket {
		p.logger.Debug("discarding superseded workflow result",
			logging.Int(logging.FieldPage, page),
			logging.String(logging.FieldSearch, search),
		)
		return Window{}, ErrStaleResultDiscarded
	}
	if err != nil {
		p.window.Stale = true
		p.logger.Warn("workflow load failed; keeping previous window",
			logging.Int(logging.FieldPage, page),
			logging.String(logging.FieldSearch, search),
			logging.Error(err),
		)
		return p.copyWindowLocked(), err
	}

	total := result.TotalPages
	if total < 0 {
		total = 0
	}
	p.window = Window{
		Entries:    append([]api.WorkflowEntry(nil), result.Workflows...),
		Page:       page,
		TotalPages: total,
		Search:     search,
		LoadedAt:   p.now(),
	}
	p.loaded = true
	return p.copyWindowLocked(), nil
}

// SetPage loads page n keeping the current search.
func (p *Pager) SetPage(ctx context.Context, n int) (Window, error) {
	_, search := p.Query()
	return p.Load(ctx, n, search)
}

// Search loads term, returning to page 1 only when the term changed.
func (p *Pager) Search(ctx context.Context, term string) (Window, error) {
	page, current := p.Query()
	term = strings.TrimSpace(term)
	if term != current {
		page = 1
	}
	return p.Load(ctx, page, term)
}

// Refresh reloads the current page and search.
func (p *Pager) Refresh(ctx context.Context) (Window, error) {
	page, search := p.Query()
	return p.Load(ctx, page, search)
}

// Next loads the following page, or returns the current window on the last page.
func (p *Pager) Next(ctx context.Context) (Window, error) {
	controls := p.Controls()
	if !controls.NextEnabled {
		return p.Window(), nil
	}
	return p.SetPage(ctx, controls.Page+1)
}

// Prev loads the preceding page, or returns the current window on page 1.
func (p *Pager) Prev(ctx context.Context) (Window, error) {
	controls := p.Controls()
	if !controls.PrevEnabled {
		return p.Window(), nil
	}
	return p.SetPage(ctx, controls.Page-1)
}

// Query returns the most recently requested page and search term.
func (p *Pager) Query() (int, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page, p.search
}

// Loaded reports whether any load has succeeded.
func (p *Pager) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

// Window returns a copy of the current window.
func (p *Pager) Window() Window {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copyWindowLocked()
}

func (p *Pager) copyWindowLocked() Window {
	out := p.window
	out.Entries = append([]api.WorkflowEntry(nil), p.window.Entries...)
	return out
}
