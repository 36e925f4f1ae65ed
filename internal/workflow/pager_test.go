package workflow_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birabittoh/pr-manager/internal/api"
	"github.com/birabittoh/pr-manager/internal/mockapi"
	"github.com/birabittoh/pr-manager/internal/publications"
	"github.com/birabittoh/pr-manager/internal/remote"
	"github.com/birabittoh/pr-manager/internal/testsupport"
	"github.com/birabittoh/pr-manager/internal/workflow"
)

type staticResolver map[string]string

func (r staticResolver) Label(name string) (string, bool) {
	label, ok := r[name]
	return label, ok
}

func TestLoadAppliesWindow(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.AddEntries(testsupport.Entries("daily-times", 3)...)
	pager := workflow.New(backend.Client, nil, 2, nil)

	window, err := pager.Load(context.Background(), 0, "  ")
	require.NoError(t, err)
	assert.Equal(t, 1, window.Page)
	assert.Equal(t, 2, window.TotalPages)
	assert.Equal(t, "", window.Search)
	assert.Len(t, window.Entries, 2)
	assert.False(t, window.Stale)
	assert.True(t, pager.Loaded())
	// Newest first.
	assert.Equal(t, "20240103", window.Entries[0].WireDate())
}

func TestLaterLoadWinsRegardlessOfCompletionOrder(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.AddEntries(testsupport.Entries("alpha", 2)...)
	backend.AddEntries(testsupport.Entries("abacus", 1)...)
	pager := workflow.New(backend.Client, nil, 20, nil)

	arrived := make(chan struct{})
	release := make(chan struct{})
	backend.Server.SetHook(mockapi.RouteWorkflow, func(r *http.Request) {
		if r.URL.Query().Get("search") == "a" {
			close(arrived)
			<-release
		}
	})

	type result struct {
		window workflow.Window
		err    error
	}
	first := make(chan result, 1)
	go func() {
		window, err := pager.Load(context.Background(), 1, "a")
		first <- result{window, err}
	}()
	<-arrived

	second, err := pager.Load(context.Background(), 1, "ab")
	require.NoError(t, err)
	assert.Equal(t, "ab", second.Search)
	require.Len(t, second.Entries, 1)

	close(release)
	stale := <-first
	assert.True(t, errors.Is(stale.err, workflow.ErrStaleResultDiscarded))

	final := pager.Window()
	assert.Equal(t, "ab", final.Search)
	require.Len(t, final.Entries, 1)
	assert.Equal(t, "abacus", final.Entries[0].PublicationName)
}

func TestFailedLoadKeepsPreviousWindowStale(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.AddEntries(testsupport.Entries("daily-times", 3)...)
	pager := workflow.New(backend.Client, nil, 20, nil)

	_, err := pager.Load(context.Background(), 1, "")
	require.NoError(t, err)

	backend.Server.FailNext(mockapi.RouteWorkflow, http.StatusBadGateway)
	window, err := pager.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, window.Stale)
	assert.Len(t, window.Entries, 3)

	window, err = pager.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, window.Stale)
}

func TestSearchResetsPageOnlyWhenTermChanges(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.AddEntries(testsupport.Entries("daily-times", 5)...)
	pager := workflow.New(backend.Client, nil, 2, nil)

	_, err := pager.Search(context.Background(), "daily")
	require.NoError(t, err)
	window, err := pager.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, window.Page)

	window, err = pager.Search(context.Background(), " daily ")
	require.NoError(t, err)
	assert.Equal(t, 2, window.Page)

	window, err = pager.Search(context.Background(), "times")
	require.NoError(t, err)
	assert.Equal(t, 1, window.Page)
	assert.Equal(t, "times", window.Search)

	window, err = pager.SetPage(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "times", window.Search)
	window, err = pager.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, window.Page)
	assert.Equal(t, "times", window.Search)
}

func TestControlsAtBoundaries(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.AddEntries(testsupport.Entries("daily-times", 5)...)
	pager := workflow.New(backend.Client, nil, 2, nil)

	_, err := pager.Load(context.Background(), 1, "")
	require.NoError(t, err)
	controls := pager.Controls()
	assert.True(t, controls.Visible)
	assert.False(t, controls.PrevEnabled)
	assert.True(t, controls.NextEnabled)

	_, err = pager.SetPage(context.Background(), 3)
	require.NoError(t, err)
	controls = pager.Controls()
	assert.True(t, controls.PrevEnabled)
	assert.False(t, controls.NextEnabled)

	before := backend.Server.Requests(mockapi.RouteWorkflow)
	window, err := pager.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, window.Page)
	assert.Equal(t, before, backend.Server.Requests(mockapi.RouteWorkflow))
}

func TestControlsHiddenForSinglePage(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.AddEntries(testsupport.Entries("daily-times", 2)...)
	pager := workflow.New(backend.Client, nil, 20, nil)

	_, err := pager.Load(context.Background(), 1, "")
	require.NoError(t, err)
	controls := pager.Controls()
	assert.False(t, controls.Visible)
	assert.False(t, controls.PrevEnabled)
	assert.False(t, controls.NextEnabled)

	_, err = pager.Search(context.Background(), "nothing-matches")
	require.NoError(t, err)
	assert.False(t, pager.Controls().Visible)
	assert.Empty(t, pager.Rows())
}

func TestRowsJoinWithResolver(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.AddEntries(api.WorkflowEntry{PublicationName: "corriere", Key: "CDSR2024013100", Downloaded: true, OCRProcessed: true})
	backend.AddEntries(api.WorkflowEntry{PublicationName: "weekly-review", Date: "20240130"})
	pager := workflow.New(backend.Client, staticResolver{"corriere": "Corriere della Sera"}, 20, nil)

	_, err := pager.Load(context.Background(), 1, "")
	require.NoError(t, err)
	rows := pager.Rows()
	require.Len(t, rows, 2)

	assert.Equal(t, "Weekly Review", rows[0].Label)
	assert.False(t, rows[0].Resolved)
	assert.Equal(t, "30/01/2024", rows[0].DisplayDate)
	assert.Equal(t, api.StagePending, rows[0].Stage)

	assert.Equal(t, "Corriere della Sera", rows[1].Label)
	assert.True(t, rows[1].Resolved)
	assert.Equal(t, "31/01/2024", rows[1].DisplayDate)
	assert.Equal(t, "CDSR2024013100", rows[1].ID)
	assert.Equal(t, api.StageOCR, rows[1].Stage)
}

func TestRowsFallBackAfterPublicationDeleted(t *testing.T) {
	backend := testsupport.NewBackend(t)
	pub := testsupport.Publication("daily-times")
	pub.DisplayName = "The Daily Times"
	backend.Server.AddPublication(pub)
	backend.AddEntries(testsupport.Entries("daily-times", 1)...)

	store := publications.New(backend.Client, nil)
	require.NoError(t, store.Refresh(context.Background()))
	pager := workflow.New(backend.Client, store, 20, nil)

	_, err := pager.Load(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Equal(t, "The Daily Times", pager.Rows()[0].Label)

	require.NoError(t, store.Remove(context.Background(), "daily-times"))
	_, err = pager.Refresh(context.Background())
	require.NoError(t, err)

	rows := pager.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Daily Times", rows[0].Label)
	assert.False(t, rows[0].Resolved)
}

func TestLoadSurfacesNetworkError(t *testing.T) {
	backend := testsupport.NewBackend(t)
	pager := workflow.New(backend.Client, nil, 20, nil)
	backend.Server.FailNext(mockapi.RouteWorkflow, mockapi.StatusDropConnection)

	window, err := pager.Load(context.Background(), 1, "")
	require.Error(t, err)
	assert.True(t, remote.IsUnavailable(err))
	assert.True(t, window.Stale)
	assert.False(t, pager.Loaded())
}
