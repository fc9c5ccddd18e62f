package session

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroscan-project/neuroscan/internal/api"
)

func newTestGate(t *testing.T, handler http.Handler) *Gate {
	t.Helper()
	store, err := NewCredentialStore(t.TempDir())
	require.NoError(t, err)
	var client *api.Client
	if handler != nil {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		client = api.NewClient(srv.URL, zerolog.Nop())
	} else {
		// Closed server: every call is a transport failure.
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		client = api.NewClient(srv.URL, zerolog.Nop())
	}
	return NewGate(store, client, zerolog.Nop())
}

func TestResolveDestinationIsTotal(t *testing.T) {
	cases := []struct {
		name string
		snap Snapshot
		want Destination
	}{
		{"anonymous", Snapshot{}, DestPublicUpload},
		{"technician", Snapshot{Authenticated: true, Profile: &api.UserProfile{Role: api.RoleTechnician}}, DestTechnician},
		{"doctor", Snapshot{Authenticated: true, Profile: &api.UserProfile{Role: api.RoleDoctor}}, DestDoctor},
		{"role unknown", Snapshot{Authenticated: true}, DestHome},
		{"unrecognized role", Snapshot{Authenticated: true, Profile: &api.UserProfile{Role: "ADMIN"}}, DestHome},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveDestination(tc.snap))
		})
	}
}

func TestRefreshWithoutCredentialIsAnonymous(t *testing.T) {
	gate := newTestGate(t, nil)
	snap := gate.Refresh(context.Background())
	assert.False(t, snap.Authenticated)
	assert.Nil(t, snap.Profile)
}

func TestRefreshResolvesProfile(t *testing.T) {
	gate := newTestGate(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/me/", r.URL.Path)
		require.Equal(t, "Bearer acc", r.Header.Get("Authorization"))
		io.WriteString(w, `{"username":"tech1","role":"TECHNICIAN"}`)
	}))
	require.NoError(t, gate.Login(api.TokenPair{Access: "acc", Refresh: "ref"}))

	snap := gate.Refresh(context.Background())
	assert.True(t, snap.Authenticated)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, api.RoleTechnician, snap.Profile.Role)
	assert.Equal(t, DestTechnician, ResolveDestination(snap))
}

func TestRefreshDegradesToRoleUnknownOnFailure(t *testing.T) {
	gate := newTestGate(t, nil)
	require.NoError(t, gate.Login(api.TokenPair{Access: "acc"}))

	snap := gate.Refresh(context.Background())
	assert.True(t, snap.Authenticated, "credential presence decides authentication")
	assert.Nil(t, snap.Profile, "failed resolution leaves the role unknown")
	assert.Equal(t, DestHome, ResolveDestination(snap))
}

func TestLogoutClearsStateAndBroadcasts(t *testing.T) {
	gate := newTestGate(t, nil)
	sub := gate.Subscribe()
	defer sub.Close()

	require.NoError(t, gate.Login(api.TokenPair{Access: "acc"}))
	event := waitForEvent(t, sub)
	assert.True(t, event.Snapshot.Authenticated)
	assert.NotEmpty(t, event.ID)

	gate.Logout()
	event = waitForEvent(t, sub)
	assert.False(t, event.Snapshot.Authenticated)
	assert.Empty(t, gate.AccessToken())
}

func TestSubscribeCloseIsIdempotentUnderDelivery(t *testing.T) {
	gate := newTestGate(t, nil)
	sub := gate.Subscribe()
	sub.Close()
	sub.Close()
	// A broadcast after close must not panic.
	require.NoError(t, gate.Login(api.TokenPair{Access: "acc"}))
}

func TestSubscriberDropsOldestWhenFull(t *testing.T) {
	sub := newSubscriber(2)
	sub.deliver(Event{ID: "1"})
	sub.deliver(Event{ID: "2"})
	sub.deliver(Event{ID: "3"})
	got := <-sub.ch
	assert.Equal(t, "2", got.ID)
	got = <-sub.ch
	assert.Equal(t, "3", got.ID)
}

func waitForEvent(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case event := <-sub.Events:
		return event
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for session event")
		return Event{}
	}
}

func TestCredentialStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewCredentialStore(dir)
	require.NoError(t, err)

	// Missing file reads as logged out.
	pair, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, pair.Access)

	require.NoError(t, store.Save(api.TokenPair{Access: "acc", Refresh: "ref"}))
	pair, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "acc", pair.Access)
	assert.Equal(t, "ref", pair.Refresh)

	info, err := os.Stat(filepath.Join(dir, "credentials.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear(), "clearing an empty store is fine")
	pair, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, pair.Access)
}
