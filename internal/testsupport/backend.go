package testsupport

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/birabittoh/pr-manager/internal/api"
	"github.com/birabittoh/pr-manager/internal/mockapi"
	"github.com/birabittoh/pr-manager/internal/remote"
)

// Backend bundles an in-memory API server with a client pointed at it.
type Backend struct {
	Server *mockapi.Server
	Client *remote.Client
	URL    string
}

// NewBackend starts a mock API for the duration of the test.
func NewBackend(t testing.TB, opts ...mockapi.Option) *Backend {
	t.Helper()

	server := mockapi.New(opts...)
	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)

	client, err := remote.New(srv.URL)
	if err != nil {
		t.Fatalf("remote.New: %v", err)
	}
	return &Backend{Server: server, Client: client, URL: srv.URL}
}

// Publication builds an enabled publication with valid defaults.
func Publication(name string) api.Publication {
	return api.Publication{
		Name:     name,
		IssueID:  "TEST",
		MaxScale: 2,
		Language: "en",
		Enabled:  true,
	}
}

// Entries builds count workflow entries for publication on consecutive days starting at 2024-01-01.
func Entries(publication string, count int) []api.WorkflowEntry {
	out := make([]api.WorkflowEntry, 0, count)
	for i := 0; i < count; i++ {
		date := time.Date(2024, time.January, 1+i, 0, 0, 0, 0, time.UTC).Format("20060102")
		out = append(out, api.WorkflowEntry{
			PublicationName: publication,
			Key:             publication + "_" + date + ".pdf",
			Downloaded:      true,
		})
	}
	return out
}

// AddEntries inserts entries into the server in order.
func (b *Backend) AddEntries(entries ...api.WorkflowEntry) {
	for _, entry := range entries {
		b.Server.AddEntry(entry)
	}
}
