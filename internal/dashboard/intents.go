package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/birabittoh/pr-manager/internal/api"
	"github.com/birabittoh/pr-manager/internal/logging"
	"github.com/birabittoh/pr-manager/internal/publications"
	"github.com/birabittoh/pr-manager/internal/remote"
	"github.com/birabittoh/pr-manager/internal/workflow"
)

// Kind names a user intent.
type Kind string

// Intent kinds accepted by Dispatch.
const (
	IntentAdd      Kind = "add"
	IntentEdit     Kind = "edit"
	IntentDelete   Kind = "delete"
	IntentToggle   Kind = "toggle"
	IntentDownload Kind = "download"
	IntentCheck    Kind = "check"
	IntentShow     Kind = "show"
	IntentSearch   Kind = "search"
	IntentPage     Kind = "page"
	IntentRefresh  Kind = "refresh"
)

// Intent is one user action. Only the fields relevant to Kind are read.
type Intent struct {
	Kind    Kind
	Name    string
	Input   publications.Input
	Patch   publications.Patch
	Enabled bool
	Dates   []string
	View    View
	Search  string
	Page    int
}

// Outcome reports what a dispatched intent did.
type Outcome struct {
	Message     string
	Publication api.Publication
	Queued      int
	Discovered  int
	// Stale is set when the action succeeded but a follow-up reload failed.
	Stale bool
}

// ErrUnknownIntent is returned for an unrecognised Kind.
var ErrUnknownIntent = errors.New("unknown intent")

// Dispatch performs intent. Mutation failures are returned as-is so the
// caller can surface them; follow-up reload failures only mark the outcome stale.
func (c *Controller) Dispatch(ctx context.Context, intent Intent) (Outcome, error) {
	logger := logging.WithContext(ctx, c.logger).With(logging.String("intent", string(intent.Kind)))
	logger.Debug("dispatching intent", logging.Publication(intent.Name))

	var (
		out Outcome
		err error
	)
	switch intent.Kind {
	case IntentAdd:
		out, err = c.add(ctx, intent)
	case IntentEdit:
		out, err = c.edit(ctx, intent)
	case IntentDelete:
		out, err = c.remove(ctx, intent)
	case IntentToggle:
		out, err = c.toggle(ctx, intent)
	case IntentDownload:
		out, err = c.download(ctx, intent)
	case IntentCheck:
		out, err = c.check(ctx)
	case IntentShow:
		out, err = c.show(ctx, intent)
	case IntentSearch:
		out, err = c.readWorkflow(ctx, func(ctx context.Context) (workflow.Window, error) {
			return c.pager.Search(ctx, intent.Search)
		})
	case IntentPage:
		out, err = c.readWorkflow(ctx, func(ctx context.Context) (workflow.Window, error) {
			return c.pager.SetPage(ctx, intent.Page)
		})
	case IntentRefresh:
		out = c.refresh(ctx)
	default:
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownIntent, intent.Kind)
	}
	if err != nil {
		logger.Info("intent failed", logging.Publication(intent.Name), logging.Error(err))
	}
	c.notify()
	return out, err
}

func (c *Controller) add(ctx context.Context, intent Intent) (Outcome, error) {
	pub, err := c.store.Add(ctx, intent.Input)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Message:     fmt.Sprintf("Added %s", pub.Label()),
		Publication: pub,
		Stale:       c.resync(ctx),
	}, nil
}

func (c *Controller) edit(ctx context.Context, intent Intent) (Outcome, error) {
	if err := c.store.Update(ctx, intent.Name, intent.Patch); err != nil {
		return Outcome{}, err
	}
	pub, _ := c.store.Get(intent.Name)
	return Outcome{
		Message:     fmt.Sprintf("Updated %s", pub.Label()),
		Publication: pub,
		Stale:       c.resync(ctx),
	}, nil
}

func (c *Controller) remove(ctx context.Context, intent Intent) (Outcome, error) {
	label := api.DeriveDisplayName(intent.Name)
	if pub, ok := c.store.Get(intent.Name); ok {
		label = pub.Label()
	}
	if err := c.store.Remove(ctx, intent.Name); err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Message: fmt.Sprintf("Deleted %s", label),
		Stale:   c.resync(ctx),
	}, nil
}

func (c *Controller) toggle(ctx context.Context, intent Intent) (Outcome, error) {
	if err := c.store.SetEnabled(ctx, intent.Name, intent.Enabled); err != nil {
		if !errors.Is(err, publications.ErrMutationPending) {
			if refreshErr := c.store.Refresh(ctx); refreshErr != nil {
				c.logger.Debug("refresh after failed toggle", logging.Error(refreshErr))
			}
		}
		return Outcome{}, err
	}
	pub, _ := c.store.Get(intent.Name)
	state := "Disabled"
	if intent.Enabled {
		state = "Enabled"
	}
	return Outcome{
		Message:     fmt.Sprintf("%s %s", state, pub.Label()),
		Publication: pub,
		Stale:       c.resync(ctx),
	}, nil
}

func (c *Controller) download(ctx context.Context, intent Intent) (Outcome, error) {
	const op = "queue download"
	name := strings.TrimSpace(intent.Name)
	if name == "" {
		return Outcome{}, remote.Invalid(op, "publication is required")
	}
	dates, err := api.WireDates(intent.Dates)
	if err != nil {
		return Outcome{}, remote.Invalid(op, err.Error())
	}

	result, err := c.remote.QueueDownload(ctx, api.DownloadRequest{PublicationName: name, Dates: dates})
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{
		Message: fmt.Sprintf("Queued %d download(s) for %s", result.Count, c.label(name)),
		Queued:  result.Count,
	}
	if c.View() == ViewWorkflow {
		c.workflowInFlight.Add(1)
		defer c.workflowInFlight.Add(-1)
		out.Stale = c.loadWorkflow(ctx) != nil
	}
	return out, nil
}

func (c *Controller) check(ctx context.Context) (Outcome, error) {
	items, err := c.remote.Check(ctx)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Discovered: len(items)}
	if len(items) == 0 {
		out.Message = "No new items found"
		return out, nil
	}
	out.Message = fmt.Sprintf("Found %d new item(s)", len(items))

	if c.View() != ViewWorkflow {
		c.mu.Lock()
		c.pendingFirstPage = true
		c.mu.Unlock()
		return out, nil
	}
	c.workflowInFlight.Add(1)
	defer c.workflowInFlight.Add(-1)
	_, search := c.pager.Query()
	if _, err := c.pager.Load(ctx, 1, search); err != nil && !errors.Is(err, workflow.ErrStaleResultDiscarded) {
		c.logger.Warn("reload after check failed", logging.Error(err))
		out.Stale = true
	}
	return out, nil
}

// show switches views, loading the newly visible panel if it is missing or a
// check left page 1 pending.
func (c *Controller) show(ctx context.Context, intent Intent) (Outcome, error) {
	view, ok := ParseView(string(intent.View))
	if !ok {
		return Outcome{}, remote.Invalid("show view", fmt.Sprintf("unknown view %q", intent.View))
	}
	c.SetView(view)

	switch view {
	case ViewWorkflow:
		c.mu.Lock()
		pending := c.pendingFirstPage
		c.mu.Unlock()
		if pending || !c.pager.Loaded() {
			c.workflowInFlight.Add(1)
			defer c.workflowInFlight.Add(-1)
			if err := c.loadWorkflow(ctx); err != nil {
				return Outcome{Stale: true}, err
			}
		}
	case ViewPublications:
		if !c.store.Loaded() || c.store.NeedsRefresh() {
			c.publicationsInFlight.Add(1)
			defer c.publicationsInFlight.Add(-1)
			if err := c.store.Refresh(ctx); err != nil {
				return Outcome{Stale: true}, err
			}
		}
	}
	return Outcome{}, nil
}

// readWorkflow runs a pager read. A superseded result is not an error.
func (c *Controller) readWorkflow(ctx context.Context, load func(context.Context) (workflow.Window, error)) (Outcome, error) {
	c.workflowInFlight.Add(1)
	defer c.workflowInFlight.Add(-1)
	window, err := load(ctx)
	if errors.Is(err, workflow.ErrStaleResultDiscarded) {
		return Outcome{}, nil
	}
	if err != nil {
		return Outcome{Stale: window.Stale}, err
	}
	return Outcome{}, nil
}

// refresh reloads every visible kind now, bypassing the in-flight guards.
func (c *Controller) refresh(ctx context.Context) Outcome {
	c.monitor.Poll(ctx)
	return Outcome{Stale: c.resync(ctx)}
}

func (c *Controller) label(name string) string {
	if label, ok := c.store.Label(name); ok {
		return label
	}
	return api.DeriveDisplayName(name)
}
