// internal/session/session.go
//
// The session gate answers "is a user logged in, and what may they see".
// It owns the credential pair, resolves the access token to a profile via
// the backend, and broadcasts credential-change events to subscribers so
// views never poll the credential file directly.

package session

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/neuroscan-project/neuroscan/internal/api"
)

// Destination is a routing decision derived from session state.
type Destination string

const (
	DestPublicUpload Destination = "upload"
	DestTechnician   Destination = "technician"
	DestDoctor       Destination = "doctor"
	DestHome         Destination = "home"
)

// Snapshot is the gate's externally visible state. Authenticated comes from
// credential presence alone; Profile is nil until (and unless) the remote
// lookup succeeds. Authenticated-with-nil-Profile means "logged in, role
// unknown" and hides every role-specific affordance.
type Snapshot struct {
	Authenticated bool
	Profile       *api.UserProfile
}

// Role returns the resolved role, or "" when no profile is held.
func (s Snapshot) Role() api.Role {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.Role
}

// ResolveDestination maps session state to the screen the detection entry
// point should open. Total over every credential state.
func ResolveDestination(s Snapshot) Destination {
	if !s.Authenticated {
		return DestPublicUpload
	}
	switch s.Role() {
	case api.RoleTechnician:
		return DestTechnician
	case api.RoleDoctor:
		return DestDoctor
	default:
		return DestHome
	}
}

// Event is one credential-change notification.
type Event struct {
	ID       string
	Snapshot Snapshot
}

// Subscription is an active listener on the gate.
type Subscription struct {
	Events <-chan Event
	cancel func()
}

// Close terminates the subscription.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

const subscriberCapacity = 8

// Gate tracks the session and fans credential-change events out to
// subscribers.
type Gate struct {
	store  *CredentialStore
	client *api.Client
	log    zerolog.Logger

	mu   sync.RWMutex
	snap Snapshot
	subs map[*subscriber]struct{}
}

// NewGate wires the gate to its credential store and backend client.
func NewGate(store *CredentialStore, client *api.Client, log zerolog.Logger) *Gate {
	return &Gate{
		store:  store,
		client: client,
		log:    log,
		subs:   map[*subscriber]struct{}{},
	}
}

// Snapshot returns the current state without touching the network.
func (g *Gate) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snap
}

// Refresh re-derives session state. No stored credential: unauthenticated,
// no profile. Credential present: authenticated immediately, then one
// who-am-I call; on any failure the profile stays nil while authenticated
// remains true (the console degrades to role-unknown instead of forcing a
// logout). Resolution failures are logged, never surfaced.
func (g *Gate) Refresh(ctx context.Context) Snapshot {
	pair, err := g.store.Load()
	if err != nil {
		g.log.Error().Err(err).Msg("session: credential load failed")
		pair = api.TokenPair{}
	}
	if strings.TrimSpace(pair.Access) == "" {
		g.setSnapshot(Snapshot{})
		return g.Snapshot()
	}

	snap := Snapshot{Authenticated: true}
	profile, err := g.client.Me(ctx, pair.Access)
	if err != nil {
		g.log.Warn().Err(err).Msg("session: profile resolution failed")
	} else {
		snap.Profile = &profile
	}
	g.setSnapshot(snap)
	return g.Snapshot()
}

// AccessToken returns the stored bearer credential, or "" when logged out.
func (g *Gate) AccessToken() string {
	pair, err := g.store.Load()
	if err != nil {
		g.log.Error().Err(err).Msg("session: credential load failed")
		return ""
	}
	return pair.Access
}

// Login stores the freshly issued pair and broadcasts the change. The caller
// follows up with Refresh to resolve the role.
func (g *Gate) Login(pair api.TokenPair) error {
	if err := g.store.Save(pair); err != nil {
		return err
	}
	g.setSnapshot(Snapshot{Authenticated: true})
	return nil
}

// Logout clears the stored credentials, resets in-memory state, and
// broadcasts the change. There is no server-side revocation call.
func (g *Gate) Logout() {
	if err := g.store.Clear(); err != nil {
		g.log.Error().Err(err).Msg("session: credential clear failed")
	}
	g.setSnapshot(Snapshot{})
}

func (g *Gate) setSnapshot(snap Snapshot) {
	g.mu.Lock()
	g.snap = snap
	subs := make([]*subscriber, 0, len(g.subs))
	for sub := range g.subs {
		subs = append(subs, sub)
	}
	g.mu.Unlock()

	event := Event{ID: uuid.NewString(), Snapshot: snap}
	for _, sub := range subs {
		sub.deliver(event)
	}
}

// Subscribe registers for credential-change events. The current snapshot is
// not replayed; call Snapshot for it.
func (g *Gate) Subscribe() Subscription {
	sub := newSubscriber(subscriberCapacity)
	g.mu.Lock()
	g.subs[sub] = struct{}{}
	g.mu.Unlock()
	return Subscription{
		Events: sub.channel(),
		cancel: func() { g.removeSubscriber(sub) },
	}
}

func (g *Gate) removeSubscriber(sub *subscriber) {
	g.mu.Lock()
	delete(g.subs, sub)
	g.mu.Unlock()
	sub.close()
}

type subscriber struct {
	ch      chan Event
	closed  bool
	closeMu sync.Mutex
}

func newSubscriber(capacity int) *subscriber {
	return &subscriber{ch: make(chan Event, capacity)}
}

func (s *subscriber) channel() <-chan Event {
	return s.ch
}

// deliver drops the oldest queued event when the buffer is full; the latest
// session state always wins.
func (s *subscriber) deliver(event Event) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- event:
	default:
		select {
		case <-s.ch:
		default:
		}
		s.ch <- event
	}
}

func (s *subscriber) close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
