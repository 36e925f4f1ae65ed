package publications_test

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
)

func newStore(t *testing.T, pubs ...api.Publication) (*publications.Store, *testsupport.Backend) {
	t.Helper()
	backend := testsupport.NewBackend(t)
	for _, pub := range pubs {
		backend.Server.AddPublication(pub)
	}
	store := publications.New(backend.Client, nil)
	require.NoError(t, store.Refresh(context.Background()))
	return store, backend
}

func TestAddThenListUsesDerivedDisplayName(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.Add(context.Background(), publications.Input{
		Name:     "daily-times",
		IssueID:  "DLTM",
		MaxScale: 3,
		Language: "en",
	})
	require.NoError(t, err)

	list := store.List()
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, "daily-times", got.Name)
	assert.Equal(t, "DLTM", got.IssueID)
	assert.Equal(t, 3, got.MaxScale)
	assert.Equal(t, "en", got.Language)
	assert.True(t, got.Enabled)
	assert.Equal(t, "Daily Times", got.Label())
}

func TestAddValidatesLocally(t *testing.T) {
	store, backend := newStore(t)

	cases := []publications.Input{
		{Name: " ", IssueID: "X", MaxScale: 1, Language: "en"},
		{Name: "a", IssueID: "", MaxScale: 1, Language: "en"},
		{Name: "a", IssueID: "X", MaxScale: 0, Language: "en"},
		{Name: "a", IssueID: "X", MaxScale: 1, Language: " "},
	}
	for _, in := range cases {
		_, err := store.Add(context.Background(), in)
		assert.True(t, remote.IsValidation(err), "input %+v", in)
	}
	assert.Zero(t, backend.Server.Requests(mockapi.RouteCreatePublication))
	assert.Zero(t, store.Len())
}

func TestAddDuplicateIsConflict(t *testing.T) {
	store, backend := newStore(t, testsupport.Publication("daily-times"))

	_, err := store.Add(context.Background(), publications.Input{Name: "daily-times", IssueID: "X", MaxScale: 1, Language: "en"})
	assert.True(t, remote.IsConflict(err))
	assert.Zero(t, backend.Server.Requests(mockapi.RouteCreatePublication))

	// Not cached locally, so the backend rejects it.
	backend.Server.AddPublication(testsupport.Publication("weekly"))
	_, err = store.Add(context.Background(), publications.Input{Name: "weekly", IssueID: "X", MaxScale: 1, Language: "en"})
	assert.True(t, remote.IsConflict(err))
	assert.Contains(t, err.Error(), "UNIQUE constraint failed")
	_, cached := store.Get("weekly")
	assert.False(t, cached)
}

func TestAddRejectionLeavesStoreUnchanged(t *testing.T) {
	store, backend := newStore(t, testsupport.Publication("daily-times"))
	backend.Server.FailNext(mockapi.RouteCreatePublication, http.StatusUnprocessableEntity)

	_, err := store.Add(context.Background(), publications.Input{Name: "weekly", IssueID: "X", MaxScale: 1, Language: "en"})
	require.Error(t, err)
	assert.Equal(t, http.StatusText(http.StatusUnprocessableEntity), err.Error())
	assert.Equal(t, 1, store.Len())
}

func TestListOrdersByLabelCaseInsensitively(t *testing.T) {
	zeta := testsupport.Publication("zeta")
	zeta.DisplayName = "alpha weekly"
	store, _ := newStore(t,
		testsupport.Publication("daily-times"),
		zeta,
		testsupport.Publication("Beta"),
	)

	var names []string
	for _, pub := range store.List() {
		names = append(names, pub.Name)
	}
	assert.Equal(t, []string{"zeta", "Beta", "daily-times"}, names)
}

func TestSetEnabledSucceeds(t *testing.T) {
	store, backend := newStore(t, testsupport.Publication("daily-times"))

	require.NoError(t, store.SetEnabled(context.Background(), "daily-times", false))
	pub, _ := store.Get("daily-times")
	assert.False(t, pub.Enabled)
	assert.False(t, store.NeedsRefresh())

	remotePub, _ := backend.Server.Publication("daily-times")
	assert.False(t, remotePub.Enabled)
}

func TestSetEnabledRollsBackOnFailure(t *testing.T) {
	store, backend := newStore(t, testsupport.Publication("daily-times"))
	backend.Server.FailNext(mockapi.RouteUpdatePublication, http.StatusServiceUnavailable)

	err := store.SetEnabled(context.Background(), "daily-times", false)
	require.Error(t, err)
	pub, _ := store.Get("daily-times")
	assert.True(t, pub.Enabled)
	assert.True(t, store.NeedsRefresh())

	require.NoError(t, store.Refresh(context.Background()))
	assert.False(t, store.NeedsRefresh())
}

func TestSetEnabledIsVisibleBeforeConfirmation(t *testing.T) {
	store, backend := newStore(t, testsupport.Publication("daily-times"))

	arrived := make(chan struct{})
	release := make(chan struct{})
	backend.Server.SetHook(mockapi.RouteUpdatePublication, func(*http.Request) {
		close(arrived)
		<-release
	})

	done := make(chan error, 1)
	go func() {
		done <- store.SetEnabled(context.Background(), "daily-times", false)
	}()

	<-arrived
	pub, _ := store.Get("daily-times")
	assert.False(t, pub.Enabled)
	assert.True(t, store.Pending("daily-times"))

	err := store.SetEnabled(context.Background(), "daily-times", true)
	assert.True(t, errors.Is(err, publications.ErrMutationPending))

	close(release)
	require.NoError(t, <-done)
	assert.False(t, store.Pending("daily-times"))
}

func TestUpdateAppliesAfterConfirmation(t *testing.T) {
	store, backend := newStore(t, testsupport.Publication("daily-times"))

	label := "The Daily Times"
	scale := 5
	require.NoError(t, store.Update(context.Background(), "daily-times", publications.Patch{DisplayName: &label, MaxScale: &scale}))

	pub, _ := store.Get("daily-times")
	assert.Equal(t, "The Daily Times", pub.Label())
	assert.Equal(t, 5, pub.MaxScale)
	remotePub, _ := backend.Server.Publication("daily-times")
	assert.Equal(t, 5, remotePub.MaxScale)
}

func TestUpdateFailureLeavesCache(t *testing.T) {
	store, backend := newStore(t, testsupport.Publication("daily-times"))
	backend.Server.FailNext(mockapi.RouteUpdatePublication, http.StatusBadRequest)

	issue := "NEW1"
	err := store.Update(context.Background(), "daily-times", publications.Patch{IssueID: &issue})
	require.Error(t, err)
	pub, _ := store.Get("daily-times")
	assert.Equal(t, "TEST", pub.IssueID)
}

func TestUpdateUnknownFailsFast(t *testing.T) {
	store, backend := newStore(t)

	issue := "X"
	err := store.Update(context.Background(), "ghost", publications.Patch{IssueID: &issue})
	assert.True(t, errors.Is(err, remote.ErrNotFound))
	assert.Zero(t, backend.Server.Requests(mockapi.RouteUpdatePublication))
}

func TestUpdateRejectsInvalidPatch(t *testing.T) {
	store, _ := newStore(t, testsupport.Publication("daily-times"))

	empty := " "
	zero := 0
	for _, patch := range []publications.Patch{{}, {Language: &empty}, {MaxScale: &zero}} {
		err := store.Update(context.Background(), "daily-times", patch)
		assert.True(t, remote.IsValidation(err))
	}
}

func TestRemoveDropsOnlyOnSuccess(t *testing.T) {
	store, backend := newStore(t, testsupport.Publication("daily-times"))
	backend.Server.FailNext(mockapi.RouteDeletePublication, mockapi.StatusDropConnection)

	err := store.Remove(context.Background(), "daily-times")
	assert.True(t, remote.IsUnavailable(err))
	_, ok := store.Get("daily-times")
	assert.True(t, ok)

	require.NoError(t, store.Remove(context.Background(), "daily-times"))
	_, ok = store.Get("daily-times")
	assert.False(t, ok)
}

func TestRemoveMissingMarksRefresh(t *testing.T) {
	store, backend := newStore(t, testsupport.Publication("daily-times"))
	// Removed behind the store's back.
	require.NoError(t, backend.Client.DeletePublication(context.Background(), "daily-times"))

	err := store.Remove(context.Background(), "daily-times")
	assert.True(t, errors.Is(err, remote.ErrNotFound))
	assert.True(t, store.NeedsRefresh())
	_, ok := store.Get("daily-times")
	assert.True(t, ok)
}

func TestRefreshFailureKeepsCache(t *testing.T) {
	store, backend := newStore(t, testsupport.Publication("daily-times"))
	backend.Server.FailNext(mockapi.RouteListPublications, http.StatusInternalServerError)

	require.Error(t, store.Refresh(context.Background()))
	assert.Equal(t, 1, store.Len())
	assert.True(t, store.Loaded())
}
