package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/birabittoh/pr-manager/internal/dashboard"
	"github.com/birabittoh/pr-manager/internal/publications"
)

const watchHelp = "n/p page · /term search · v switch view · c check · r refresh · enable|disable <name> · get <pub> <date>... · q quit"

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var viewFlag string
	var search string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard that polls the pipeline and accepts line commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var view dashboard.View
			if viewFlag != "" {
				parsed, ok := dashboard.ParseView(viewFlag)
				if !ok {
					return fmt.Errorf("unknown view %q (want workflow or publications)", viewFlag)
				}
				view = parsed
			}

			lock := flock.New(cfg.WatchLockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire watch lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another prmanager watch is already running (lock %s)", cfg.WatchLockPath())
			}
			defer func() { _ = lock.Unlock() }()

			controller, err := ctx.newController(view)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			session := &watchSession{
				controller: controller,
				baseURL:    cfg.API.BaseURL,
				out:        cmd.OutOrStdout(),
				colorize:   shouldColorize(cmd.OutOrStdout()),
			}
			if strings.TrimSpace(search) != "" {
				session.dispatch(runCtx, dashboard.Intent{Kind: dashboard.IntentSearch, Search: search})
			}
			return session.run(runCtx, stop, cmd.InOrStdin(), cfg.CountdownTick())
		},
	}

	cmd.Flags().StringVar(&viewFlag, "view", "", "Initial view: workflow or publications (default from config)")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Initial workflow search term")
	return cmd
}

type watchSession struct {
	controller *dashboard.Controller
	baseURL    string
	out        io.Writer
	colorize   bool

	mu      sync.Mutex
	message string
	wg      sync.WaitGroup
}

func (s *watchSession) run(ctx context.Context, stop context.CancelFunc, in io.Reader, tick time.Duration) error {
	if tick <= 0 {
		tick = time.Second
	}
	done := make(chan error, 1)
	go func() { done <- s.controller.Run(ctx) }()

	lines := make(chan string)
	go readLines(in, lines)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	s.render()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return <-done
		case <-s.controller.Changes():
			s.render()
		case <-ticker.C:
			s.render()
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if s.handle(ctx, line) {
				stop()
			}
		}
	}
}

func readLines(in io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

// handle interprets one input line. It reports whether the session should end.
func (s *watchSession) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	intent, quit, err := parseWatchCommand(line, s.controller)
	if quit {
		return true
	}
	if err != nil {
		s.setMessage(err.Error())
		s.render()
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatch(ctx, intent)
	}()
	return false
}

func (s *watchSession) dispatch(ctx context.Context, intent dashboard.Intent) {
	out, err := s.controller.Dispatch(ctx, intent)
	switch {
	case errors.Is(err, context.Canceled):
		return
	case errors.Is(err, publications.ErrMutationPending):
		s.setMessage("still waiting on the previous change to that publication")
	case err != nil:
		s.setMessage("error: " + err.Error())
	case out.Stale:
		s.setMessage(strings.TrimSpace(out.Message + " (view may be out of date)"))
	case out.Message != "":
		s.setMessage(out.Message)
	}
}

// parseWatchCommand maps an input line to an intent.
func parseWatchCommand(line string, controller *dashboard.Controller) (dashboard.Intent, bool, error) {
	if strings.HasPrefix(line, "/") {
		return dashboard.Intent{Kind: dashboard.IntentSearch, Search: strings.TrimPrefix(line, "/")}, false, nil
	}
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "q", "quit", "exit":
		return dashboard.Intent{}, true, nil
	case "n", "next", "p", "prev":
		if controller.View() != dashboard.ViewWorkflow {
			return dashboard.Intent{}, false, errors.New("paging applies to the workflow view")
		}
		controls := controller.Pager().Controls()
		if strings.HasPrefix(strings.ToLower(fields[0]), "n") {
			if !controls.NextEnabled {
				return dashboard.Intent{}, false, errors.New("already on the last page")
			}
			return dashboard.Intent{Kind: dashboard.IntentPage, Page: controls.Page + 1}, false, nil
		}
		if !controls.PrevEnabled {
			return dashboard.Intent{}, false, errors.New("already on the first page")
		}
		return dashboard.Intent{Kind: dashboard.IntentPage, Page: controls.Page - 1}, false, nil
	case "v", "view":
		next := dashboard.ViewPublications
		if controller.View() == dashboard.ViewPublications {
			next = dashboard.ViewWorkflow
		}
		return dashboard.Intent{Kind: dashboard.IntentShow, View: next}, false, nil
	case "c", "check":
		return dashboard.Intent{Kind: dashboard.IntentCheck}, false, nil
	case "r", "refresh":
		return dashboard.Intent{Kind: dashboard.IntentRefresh}, false, nil
	case "enable", "disable":
		if len(fields) != 2 {
			return dashboard.Intent{}, false, fmt.Errorf("usage: %s <name>", fields[0])
		}
		return dashboard.Intent{Kind: dashboard.IntentToggle, Name: fields[1], Enabled: fields[0] == "enable"}, false, nil
	case "get", "download":
		if len(fields) < 3 {
			return dashboard.Intent{}, false, fmt.Errorf("usage: %s <publication> <date>...", fields[0])
		}
		return dashboard.Intent{Kind: dashboard.IntentDownload, Name: fields[1], Dates: fields[2:]}, false, nil
	}
	return dashboard.Intent{}, false, fmt.Errorf("unknown command %q", fields[0])
}

func (s *watchSession) setMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

func (s *watchSession) render() {
	s.mu.Lock()
	message := s.message
	s.mu.Unlock()

	screen := renderWatchScreen(s.controller, s.baseURL, time.Now(), s.colorize, message)
	if s.colorize {
		fmt.Fprint(s.out, ansiClear)
	}
	fmt.Fprintln(s.out, screen)
}

func renderWatchScreen(controller *dashboard.Controller, baseURL string, now time.Time, colorize bool, message string) string {
	snap := controller.Monitor().Snapshot()
	lines := renderSectionHeader("Pipeline", colorize)
	lines = append(lines, healthLines(snap, baseURL, now, colorize)...)
	if threads := threadLines(snap, colorize); len(threads) > 0 {
		lines = append(lines, threads...)
	}
	lines = append(lines, "")

	switch controller.View() {
	case dashboard.ViewPublications:
		lines = append(lines, renderSectionHeader("Publications", colorize)...)
		store := controller.Store()
		switch {
		case !store.Loaded():
			lines = append(lines, "Loading publications…")
		case store.Len() == 0:
			lines = append(lines, "No publications configured")
		default:
			lines = append(lines, publicationsTable(store.List()))
		}
		if store.NeedsRefresh() {
			lines = append(lines, "(list may be out of date)")
		}
	default:
		pager := controller.Pager()
		window := pager.Window()
		title := "Workflow"
		if window.Search != "" {
			title = fmt.Sprintf("Workflow (search: %s)", window.Search)
		}
		lines = append(lines, renderSectionHeader(title, colorize)...)
		rows := pager.Rows()
		switch {
		case !pager.Loaded() && !window.Stale:
			lines = append(lines, "Loading workflow…")
		case len(rows) == 0:
			lines = append(lines, "No workflow entries")
		default:
			lines = append(lines, workflowTable(rows, pager.Controls()))
		}
		if window.Stale {
			lines = append(lines, "(last refresh failed; showing previous results)")
		}
	}

	lines = append(lines, "")
	if message != "" {
		lines = append(lines, message)
	}
	lines = append(lines, watchHelp)
	return strings.Join(lines, "\n")
}
