package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/birabittoh/pr-manager/internal/api"
	"github.com/birabittoh/pr-manager/internal/logging"
)

// Route names accepted by the test hooks.
const (
	RouteHealth            = "GET /api/health"
	RouteListPublications  = "GET /api/publications"
	RouteCreatePublication = "POST /api/publications"
	RouteUpdatePublication = "PATCH /api/publications/{name}"
	RouteDeletePublication = "DELETE /api/publications/{name}"
	RouteWorkflow          = "GET /api/workflow"
	RouteWorkflowFile      = "GET /api/workflow/{publication}/{date}"
	RouteDownload          = "POST /api/download"
	RouteCheck             = "POST /api/check"
	RouteThreads           = "GET /api/threads"
)

// StatusDropConnection makes FailNext close the connection without a response.
const StatusDropConnection = -1

const (
	defaultLimit            = 20
	defaultCheckInterval    = time.Hour
	uniqueViolationDetail   = "UNIQUE constraint failed: publication.name"
	publicationNotFound     = "Publication not found"
	fileNotFound            = "File not found"
	mockPDFContentType      = "application/pdf"
	mockPDFContentSignature = "%PDF-1.4\n%Mock PDF Document\n"
)

type workflowRecord struct {
	entry   api.WorkflowEntry
	created int64
}

// Server is an in-memory implementation of the pipeline HTTP API.
type Server struct {
	mu            sync.Mutex
	publications  map[string]api.Publication
	workflows     map[string]*workflowRecord
	seq           int64
	checkInterval time.Duration
	nextCheck     time.Time
	threads       []api.Thread
	now           func() time.Time

	latency  map[string]time.Duration
	failures map[string][]int
	hooks    map[string]func(*http.Request)
	requests map[string]int

	logger *slog.Logger
	mux    *http.ServeMux
}

// Option customizes a Server.
type Option func(*Server)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger attaches a request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logging.NewComponentLogger(logger, "mockapi")
	}
}

// WithCheckInterval sets the cadence reported by next_check_in_seconds.
func WithCheckInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.checkInterval = d
		}
	}
}

// New builds an empty backend.
func New(opts ...Option) *Server {
	s := &Server{
		publications:  make(map[string]api.Publication),
		workflows:     make(map[string]*workflowRecord),
		checkInterval: defaultCheckInterval,
		now:           time.Now,
		latency:       make(map[string]time.Duration),
		failures:      make(map[string][]int),
		hooks:         make(map[string]func(*http.Request)),
		requests:      make(map[string]int),
		logger:        logging.NewComponentLogger(nil, "mockapi"),
		threads: []api.Thread{
			{Name: "scheduler", IsAlive: true, Status: "idle"},
			{Name: "downloader", IsAlive: true, Status: "idle"},
			{Name: "ocr_processor", IsAlive: true, Status: "idle"},
			{Name: "uploader", IsAlive: true, Status: "idle"},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.nextCheck = s.now().Add(s.checkInterval)

	mux := http.NewServeMux()
	s.handle(mux, RouteHealth, s.handleHealth)
	s.handle(mux, RouteListPublications, s.handleListPublications)
	s.handle(mux, RouteCreatePublication, s.handleCreatePublication)
	s.handle(mux, RouteUpdatePublication, s.handleUpdatePublication)
	s.handle(mux, RouteDeletePublication, s.handleDeletePublication)
	s.handle(mux, RouteWorkflow, s.handleWorkflow)
	s.handle(mux, RouteWorkflowFile, s.handleWorkflowFile)
	s.handle(mux, RouteDownload, s.handleDownload)
	s.handle(mux, RouteCheck, s.handleCheck)
	s.handle(mux, RouteThreads, s.handleThreads)
	s.mux = mux
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on bind until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, bind string) error {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("mock api listen: %w", err)
	}
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("mock api listening", logging.String("address", listener.Addr().String()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// AddPublication inserts or replaces a publication.
func (s *Server) AddPublication(pub api.Publication) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publications[pub.Name] = pub
}

// AddEntry inserts or replaces a workflow entry; later entries sort first.
func (s *Server) AddEntry(entry api.WorkflowEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertEntryLocked(entry)
}

// Publication returns the stored publication.
func (s *Server) Publication(name string) (api.Publication, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pub, ok := s.publications[name]
	return pub, ok
}

// SetThreads replaces the reported worker threads.
func (s *Server) SetThreads(threads []api.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = append([]api.Thread(nil), threads...)
}

// SetLatency delays every request on route by d.
func (s *Server) SetLatency(route string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency[route] = d
}

// FailNext makes the next request on route answer with status. StatusDropConnection
// closes the connection without a response.
func (s *Server) FailNext(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], status)
}

// SetHook runs fn before every request on route is handled. fn may block.
func (s *Server) SetHook(route string, fn func(*http.Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		delete(s.hooks, route)
		return
	}
	s.hooks[route] = fn
}

// Requests returns how many requests route has received.
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[route]
}

func (s *Server) handle(mux *http.ServeMux, route string, fn http.HandlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[route]++
		delay := s.latency[route]
		hook := s.hooks[route]
		status := 0
		if queue := s.failures[route]; len(queue) > 0 {
			status = queue[0]
			s.failures[route] = queue[1:]
		}
		s.mu.Unlock()

		if hook != nil {
			hook(r)
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		switch {
		case status == StatusDropConnection:
			dropConnection(w)
			return
		case status > 0:
			s.writeError(w, status, http.StatusText(status))
			return
		}
		s.logger.Debug("mock request", logging.String("route", route), logging.String("query", r.URL.RawQuery))
		fn(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	now := s.now()
	for !s.nextCheck.After(now) {
		s.nextCheck = s.nextCheck.Add(s.checkInterval)
	}
	remaining := int(s.nextCheck.Sub(now) / time.Second)
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, api.HealthSnapshot{
		Status:             api.HealthStatusOK,
		Timestamp:          now.Format("2006-01-02T15:04:05.000000"),
		NextCheckInSeconds: remaining,
	})
}

func (s *Server) handleListPublications(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]api.Publication, 0, len(s.publications))
	for _, pub := range s.publications {
		out = append(out, pub)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePublication(w http.ResponseWriter, r *http.Request) {
	var in api.PublicationCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || strings.TrimSpace(in.IssueID) == "" || strings.TrimSpace(in.Language) == "" || in.MaxScale <= 0 {
		s.writeError(w, http.StatusUnprocessableEntity, "name, issue_id, max_scale and language are required")
		return
	}

	s.mu.Lock()
	if _, exists := s.publications[in.Name]; exists {
		s.mu.Unlock()
		s.writeError(w, http.StatusBadRequest, uniqueViolationDetail)
		return
	}
	pub := api.Publication{
		Name:        in.Name,
		DisplayName: strings.TrimSpace(in.DisplayName),
		IssueID:     in.IssueID,
		MaxScale:    in.MaxScale,
		Language:    in.Language,
		Enabled:     true,
	}
	s.publications[pub.Name] = pub
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, pub)
}

func (s *Server) handleUpdatePublication(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var patch api.PublicationPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if patch.MaxScale != nil && *patch.MaxScale <= 0 {
		s.writeError(w, http.StatusUnprocessableEntity, "max_scale must be positive")
		return
	}

	s.mu.Lock()
	pub, ok := s.publications[name]
	if !ok {
		s.mu.Unlock()
		s.writeError(w, http.StatusNotFound, publicationNotFound)
		return
	}
	s.publications[name] = patch.Apply(pub)
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeletePublication(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.mu.Lock()
	_, ok := s.publications[name]
	delete(s.publications, name)
	s.mu.Unlock()
	if !ok {
		s.writeError(w, http.StatusNotFound, publicationNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := positiveInt(query.Get("page"), 1)
	limit := positiveInt(query.Get("limit"), defaultLimit)
	search := strings.ToLower(strings.TrimSpace(query.Get("search")))

	s.mu.Lock()
	records := make([]*workflowRecord, 0, len(s.workflows))
	for _, rec := range s.workflows {
		if search != "" && !s.matchesLocked(rec.entry.PublicationName, search) {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].created > records[j].created })
	entries := make([]api.WorkflowEntry, 0, limit)
	start := (page - 1) * limit
	for i := start; i < len(records) && i < start+limit; i++ {
		entries = append(entries, records[i].entry)
	}
	s.mu.Unlock()

	totalPages := (len(records) + limit - 1) / limit
	s.writeJSON(w, http.StatusOK, api.WorkflowPage{Workflows: entries, TotalPages: totalPages})
}

// matchesLocked is a case-insensitive substring match on the publication name and its label.
func (s *Server) matchesLocked(name, needle string) bool {
	if strings.Contains(strings.ToLower(name), needle) {
		return true
	}
	label := api.DeriveDisplayName(name)
	if pub, ok := s.publications[name]; ok {
		label = pub.Label()
	}
	return strings.Contains(strings.ToLower(label), needle)
}

func (s *Server) handleWorkflowFile(w http.ResponseWriter, r *http.Request) {
	publication := r.PathValue("publication")
	date := r.PathValue("date")

	s.mu.Lock()
	rec, ok := s.workflows[recordKey(publication, date)]
	downloaded := ok && rec.entry.Downloaded
	s.mu.Unlock()
	if !downloaded {
		s.writeError(w, http.StatusNotFound, fileNotFound)
		return
	}

	w.Header().Set("Content-Type", mockPDFContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", publication+"_"+date+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "%s(Mock PDF - %s - %s)\n%%%%EOF\n", mockPDFContentSignature, publication, date)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req api.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	for _, date := range req.Dates {
		if _, err := api.WireDate(date); err != nil || len(date) != len("20060102") {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q, expected YYYYMMDD", date))
			return
		}
	}

	s.mu.Lock()
	if _, ok := s.publications[req.PublicationName]; !ok {
		s.mu.Unlock()
		s.writeError(w, http.StatusNotFound, publicationNotFound)
		return
	}
	for _, date := range req.Dates {
		if _, exists := s.workflows[recordKey(req.PublicationName, date)]; exists {
			continue
		}
		s.upsertEntryLocked(api.WorkflowEntry{
			PublicationName: req.PublicationName,
			Key:             req.PublicationName + "_" + date + ".pdf",
			Date:            date,
		})
	}
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, api.DownloadResult{Status: "queued", Count: len(req.Dates)})
}

// handleCheck discovers every queued entry of an enabled publication and marks it downloaded.
func (s *Server) handleCheck(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	found := make([]api.CheckItem, 0)
	for _, rec := range s.workflows {
		if rec.entry.Downloaded {
			continue
		}
		pub, ok := s.publications[rec.entry.PublicationName]
		if !ok || !pub.Enabled {
			continue
		}
		rec.entry.Downloaded = true
		found = append(found, api.CheckItem{PublicationName: rec.entry.PublicationName, Date: rec.entry.WireDate()})
	}
	s.nextCheck = s.now().Add(s.checkInterval)
	s.mu.Unlock()

	sort.Slice(found, func(i, j int) bool {
		if found[i].PublicationName == found[j].PublicationName {
			return found[i].Date < found[j].Date
		}
		return found[i].PublicationName < found[j].PublicationName
	})
	s.writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleThreads(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := append([]api.Thread(nil), s.threads...)
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) upsertEntryLocked(entry api.WorkflowEntry) {
	s.seq++
	key := recordKey(entry.PublicationName, entry.WireDate())
	if rec, ok := s.workflows[key]; ok {
		rec.entry = entry
		return
	}
	s.workflows[key] = &workflowRecord{entry: entry, created: s.seq}
}

func recordKey(publication, date string) string {
	return publication + "\x00" + date
}

func positiveInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic(http.ErrAbortHandler)
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(http.ErrAbortHandler)
	}
	_ = conn.Close()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response failed", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorBody{Detail: message})
}
