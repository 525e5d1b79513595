package command

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ShenPrime/Levelington/internal/domain/platform"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
	"github.com/ShenPrime/Levelington/internal/infrastructure/locking"
	"github.com/ShenPrime/Levelington/internal/infrastructure/persistence/sqlite"
)

const (
	guild shared.CommunityID = "111111111111111111"
	alice shared.MemberID    = "900000000000000001"
	bob   shared.MemberID    = "900000000000000002"
	carol shared.MemberID    = "900000000000000003"
	admin shared.MemberID    = "900000000000000099"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLedger(t *testing.T, provision bool) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	if provision {
		require.NoError(t, store.Provision(context.Background(), guild))
	}
	return store
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) ofType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// fakeRoles is an in-memory RoleManager.
type fakeRoles struct {
	mu       sync.Mutex
	roleID   platform.RoleID
	ensured  int
	members  map[shared.MemberID]*platform.Member
	grants   []shared.MemberID
	revokes  []shared.MemberID
	grantErr error
	fetchErr map[shared.MemberID]error
}

func newFakeRoles(present ...shared.MemberID) *fakeRoles {
	r := &fakeRoles{roleID: "555", members: make(map[shared.MemberID]*platform.Member)}
	for _, id := range present {
		r.members[id] = &platform.Member{ID: id, DisplayName: "member-" + string(id)[15:]}
	}
	return r
}

func (r *fakeRoles) holding(id shared.MemberID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[id].Roles = append(r.members[id].Roles, r.roleID)
}

func (r *fakeRoles) holders() []shared.MemberID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []shared.MemberID
	for id, m := range r.members {
		if m.HasRole(r.roleID) {
			out = append(out, id)
		}
	}
	return out
}

func (r *fakeRoles) EnsureRole(_ context.Context, _ shared.CommunityID, _ string, _ int) (platform.RoleID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensured++
	return r.roleID, nil
}

func (r *fakeRoles) FetchMember(_ context.Context, _ shared.CommunityID, id shared.MemberID) (*platform.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fetchErr[id]; err != nil {
		return nil, err
	}
	m, ok := r.members[id]
	if !ok {
		return nil, shared.ErrEntityGone
	}
	cp := *m
	cp.Roles = append([]platform.RoleID(nil), m.Roles...)
	return &cp, nil
}

func (r *fakeRoles) GrantRole(_ context.Context, _ shared.CommunityID, id shared.MemberID, role platform.RoleID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.grantErr != nil {
		return r.grantErr
	}
	m, ok := r.members[id]
	if !ok {
		return shared.ErrEntityGone
	}
	m.Roles = append(m.Roles, role)
	r.grants = append(r.grants, id)
	return nil
}

func (r *fakeRoles) RevokeRole(_ context.Context, _ shared.CommunityID, id shared.MemberID, role platform.RoleID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return shared.ErrEntityGone
	}
	kept := m.Roles[:0]
	for _, have := range m.Roles {
		if have != role {
			kept = append(kept, have)
		}
	}
	m.Roles = kept
	r.revokes = append(r.revokes, id)
	return nil
}

// fakeChannels is an in-memory ChannelDirectory.
type fakeChannels map[shared.ChannelID]platform.Channel

func (f fakeChannels) Channel(_ context.Context, _ shared.CommunityID, id shared.ChannelID) (*platform.Channel, error) {
	ch, ok := f[id]
	if !ok {
		return nil, shared.ErrEntityGone
	}
	return &ch, nil
}

func (f fakeChannels) Children(_ context.Context, _ shared.CommunityID, category shared.ChannelID) ([]platform.Channel, error) {
	var out []platform.Channel
	for _, ch := range f {
		if ch.ParentID == category {
			out = append(out, ch)
		}
	}
	return out, nil
}

func newLocker() *locking.Local {
	return locking.NewLocal()
}
